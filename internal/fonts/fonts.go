// Package fonts resolves the HUD font setting to a font file on disk.
package fonts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"
)

// Exts are the font file extensions raylib can load.
var Exts = []string{".ttf", ".otf"}

// ErrNotFont is returned for a file that exists but is not a TrueType/OpenType font.
var ErrNotFont = errors.New("fonts: not a ttf/otf file")

// BaseDirs returns candidate font directories relative to the working directory, so fonts are
// found whether run from the repo root or from cmd/gyroview.
func BaseDirs() []string {
	return []string{"assets/fonts", "../../assets/fonts"}
}

// Finder looks fonts up by path or by family name under Dirs.
type Finder struct {
	Dirs []string
}

// NewFinder returns a finder over BaseDirs.
func NewFinder() *Finder {
	return &Finder{Dirs: BaseDirs()}
}

// Resolve turns a font setting into a file path. An existing path is used as is; anything else
// is matched by name against the fonts under Dirs ("Inter" finds Inter/Inter-Regular.ttf).
// The file's header must identify it as a font.
func (f *Finder) Resolve(pathOrName string) (string, error) {
	pathOrName = strings.TrimSpace(pathOrName)
	if pathOrName == "" {
		return "", os.ErrNotExist
	}
	if st, err := os.Stat(pathOrName); err == nil && !st.IsDir() {
		return pathOrName, checkFont(pathOrName)
	}
	full, err := f.find(pathOrName)
	if err != nil {
		return "", fmt.Errorf("fonts: %s: %w", pathOrName, err)
	}
	return full, checkFont(full)
}

func (f *Finder) find(search string) (string, error) {
	norm := normalize(strings.TrimSuffix(filepath.Base(search), filepath.Ext(search)))
	if norm == "" {
		return "", os.ErrNotExist
	}
	var matches []string
	for _, base := range f.Dirs {
		list, err := ScanDir(base)
		if err != nil {
			continue
		}
		for _, rel := range list {
			if strings.Contains(normalize(rel), norm) {
				matches = append(matches, filepath.Join(base, filepath.FromSlash(rel)))
			}
		}
	}
	if len(matches) == 0 {
		return "", os.ErrNotExist
	}
	// Prefer the regular weight when a family has several files.
	for _, m := range matches {
		if strings.Contains(strings.ToLower(filepath.Base(m)), "regular") {
			return m, nil
		}
	}
	return matches[0], nil
}

// ScanDir returns the font files under dir as slash-separated relative paths, sorted.
// A missing dir yields no fonts.
func ScanDir(dir string) ([]string, error) {
	var out []string
	dir = filepath.Clean(dir)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !hasFontExt(path) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(out)
	return out, err
}

func hasFontExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Exts {
		if ext == e {
			return true
		}
	}
	return false
}

func checkFont(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("fonts: %s: %w", path, err)
	}
	if !filetype.IsFont(head[:n]) {
		return fmt.Errorf("%w: %s", ErrNotFont, path)
	}
	return nil
}

// normalize lowercases and drops spaces, dashes and underscores for fuzzy matching.
func normalize(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(s))
}
