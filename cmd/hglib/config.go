package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

type appConfig struct {
	repository string
	executable string
	encoding   string
	logFormat  string
	logLevel   string
	configKV   string
	args       []string
}

func parseFlags(argv []string) (*appConfig, bool, error) {
	fs := flag.NewFlagSet("hglib", flag.ContinueOnError)

	repository := fs.String("repository", ".", "Path to the Mercurial working copy")
	executable := fs.String("hg", "hg", "Path to the hg binary")
	encoding := fs.String("encoding", "", "HGENCODING override for the spawned subprocess")
	logFormat := fs.String("log-format", "text", "Log format: text|json")
	logLevel := fs.String("log-level", "warn", "Log level: debug|info|warn|error")
	configKV := fs.String("config", "", "Comma-separated k=v pairs passed to hg as --config")
	showVersion := fs.Bool("version", false, "Print the negotiated hg version and exit")

	if err := fs.Parse(argv); err != nil {
		return nil, false, err
	}

	cfg := &appConfig{
		repository: *repository,
		executable: *executable,
		encoding:   *encoding,
		logFormat:  *logFormat,
		logLevel:   *logLevel,
		configKV:   *configKV,
		args:       fs.Args(),
	}

	set := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = struct{}{} })
	applyEnvOverrides(cfg, set)

	if err := cfg.validate(); err != nil {
		return nil, false, err
	}

	return cfg, *showVersion, nil
}

func (c *appConfig) validate() error {
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.repository == "" {
		return fmt.Errorf("repository must not be empty")
	}
	return nil
}

// parseConfigOverrides turns "k1=v1,k2=v2" into a map; entries missing
// "=" or empty are skipped.
func parseConfigOverrides(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := make(map[string]string)
	for _, kv := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// applyEnvOverrides maps HGLIB_* environment variables onto cfg unless
// the corresponding flag was explicitly set, which always wins.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) {
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["repository"]; !ok {
		if v, ok := get("HGLIB_REPOSITORY"); ok && v != "" {
			c.repository = v
		}
	}
	if _, ok := set["hg"]; !ok {
		if v, ok := get("HGLIB_HG"); ok && v != "" {
			c.executable = v
		}
	}
	if _, ok := set["encoding"]; !ok {
		if v, ok := get("HGLIB_ENCODING"); ok && v != "" {
			c.encoding = v
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("HGLIB_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("HGLIB_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["config"]; !ok {
		if v, ok := get("HGLIB_CONFIG"); ok && v != "" {
			c.configKV = v
		}
	}
}
