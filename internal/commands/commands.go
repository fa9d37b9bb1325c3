package commands

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
)

const prefix = "cmd "

// ErrUsage is wrapped by errors from a command that was given bad arguments.
var ErrUsage = errors.New("usage")

// Command is a subcommand with its own flags and a Run function.
// Flags are defined on FlagSet; Run is called after Parse and can read flag state and FlagSet.Args().
type Command struct {
	Name    string
	Usage   string
	FlagSet *flag.FlagSet
	Run     func() error
}

// Registry holds subcommands by name. Add commands with Register; run with Execute.
type Registry struct {
	cmds map[string]*Command
}

// NewRegistry returns an empty command registry.
func NewRegistry() *Registry {
	return &Registry{cmds: make(map[string]*Command)}
}

// NewFlagSet returns a flag set that reports errors instead of exiting and prints nothing.
func NewFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// Register adds a subcommand. name is the first token of the line (e.g. "connect"); usage is the
// one-line synopsis shown by help. fs may be nil for commands without flags.
func (r *Registry) Register(name, usage string, fs *flag.FlagSet, run func() error) {
	if fs == nil {
		fs = NewFlagSet(name)
	}
	r.cmds[name] = &Command{Name: name, Usage: usage, FlagSet: fs, Run: run}
}

// Parse tokenizes a console line. A leading "cmd " is accepted and stripped. Double or single
// quotes group words into one argument ("load 'My Models/drone.glb'"); an unterminated quote runs
// to the end of the line. Blank lines return nil, false.
func Parse(line string) (args []string, ok bool) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, prefix) {
		line = strings.TrimSpace(line[len(prefix):])
	}
	if line == "" {
		return nil, false
	}
	return split(line), true
}

func split(line string) []string {
	var (
		args  []string
		cur   strings.Builder
		quote rune
		inArg bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args
}

// Execute runs the subcommand in args[0] with args[1:] as flag/positional arguments.
// Flags are reset to their defaults first, so one invocation does not leak into the next.
// Returns an error for unknown command, parse error, or from Run().
func (r *Registry) Execute(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing subcommand")
	}
	name := args[0]
	cmd, ok := r.cmds[name]
	if !ok {
		return fmt.Errorf("unknown command: %s (try help)", name)
	}
	cmd.FlagSet.VisitAll(func(f *flag.Flag) { _ = f.Value.Set(f.DefValue) })
	if err := cmd.FlagSet.Parse(args[1:]); err != nil {
		return fmt.Errorf("%s: %v (%w: %s)", name, err, ErrUsage, cmd.Usage)
	}
	if err := cmd.Run(); err != nil {
		if errors.Is(err, ErrUsage) {
			return fmt.Errorf("%s: %w: %s", name, ErrUsage, cmd.Usage)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.cmds))
	for n := range r.cmds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Help returns one usage line per command, sorted by name.
func (r *Registry) Help() []string {
	var out []string
	for _, n := range r.Names() {
		out = append(out, r.cmds[n].Usage)
	}
	return out
}
