package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment overrides, applied after the file and before command line flags.
const (
	EnvAddress = "GYROVIEW_ADDRESS"
	EnvPort    = "GYROVIEW_PORT"
	EnvModel   = "GYROVIEW_MODEL"
)

// LoadDotEnv reads KEY=VALUE lines from path (e.g. ".env") into the process environment.
// Blank lines and # comments are skipped, surrounding quotes are removed, and variables already
// set in the environment win. A missing file is not an error.
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := parseEnvLine(sc.Text())
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		_ = os.Setenv(key, value)
	}
	return sc.Err()
}

func parseEnvLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")
	key, value, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", false
	}
	value = strings.TrimSpace(value)
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
		value = value[1 : len(value)-1]
	}
	return key, value, true
}

// WithEnv returns c with the GYROVIEW_* overrides from lookup applied. Pass os.LookupEnv.
func (c Config) WithEnv(lookup func(string) (string, bool)) (Config, error) {
	if v, ok := lookup(EnvAddress); ok && v != "" {
		c.Telemetry.Address = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			return c, fmt.Errorf("config: %s=%q is not a port", EnvPort, v)
		}
		c.Telemetry.Port = port
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		c.Model.Path = v
	}
	return c, nil
}
