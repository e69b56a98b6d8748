// Command hglib is a thin CLI wrapper over the hglib.Session API: it
// opens one command-server session against a repository and runs a
// single subcommand (init/clone/status/log/...) against it, so the
// library can be exercised without writing Go.
package main

import (
	"fmt"
	"os"

	"hglib.dev/hglib"
	"hglib.dev/hglib/commands"
	"hglib.dev/hglib/internal/logging"
)

func main() {
	cfg, showVersion, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logging.Set(logging.New(cfg.logFormat, parseLevel(cfg.logLevel), os.Stderr))

	if len(cfg.args) == 0 && !showVersion {
		fmt.Fprintln(os.Stderr, "usage: hglib [flags] <command> [args...]")
		os.Exit(2)
	}

	if len(cfg.args) > 0 && cfg.args[0] == "init" {
		path := cfg.repository
		if len(cfg.args) > 1 {
			path = cfg.args[1]
		}
		if err := commands.Init(path, commands.InitOptions{Executable: cfg.executable}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	s, err := hglib.Open(cfg.repository,
		hglib.WithExecutable(cfg.executable),
		hglib.WithEncoding(cfg.encoding),
		hglib.WithConfigOverrides(parseConfigOverrides(cfg.configKV)),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer s.Close()

	if showVersion {
		v, err := s.Version()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(v)
		return
	}

	if err := runCommand(s, cfg.args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCommand(s *hglib.Session, args []string) error {
	name, rest := args[0], args[1:]

	switch name {
	case "root":
		root, err := s.Root()
		if err != nil {
			return err
		}
		fmt.Println(root)

	case "status":
		entries, err := commands.Status(s, commands.StatusOptions{Paths: rest})
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%c %s\n", e.Code, e.Path)
		}

	case "log":
		entries, err := commands.Log(s, commands.LogOptions{Paths: rest})
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%d:%s %s\n", e.Revision, e.Node[:12], e.Message)
		}

	case "add":
		if _, err := commands.Add(s, rest...); err != nil {
			return err
		}

	case "commit":
		msg := ""
		if len(rest) > 0 {
			msg = rest[0]
		}
		res, err := commands.Commit(s, msg, commands.CommitOptions{})
		if err != nil {
			return err
		}
		if !res.Committed {
			fmt.Println("nothing changed")
		}

	case "diff":
		out, err := commands.Diff(s, commands.DiffOptions{Paths: rest})
		if err != nil {
			return err
		}
		fmt.Print(out)

	case "heads":
		nodes, err := commands.Heads(s, commands.HeadsOptions{})
		if err != nil {
			return err
		}
		for _, n := range nodes {
			fmt.Println(n)
		}

	default:
		res, err := s.GetCommandOutput(args, nil)
		if err != nil {
			return err
		}
		fmt.Print(res.Stdout)
		if res.Stderr != "" {
			fmt.Fprint(os.Stderr, res.Stderr)
		}
	}

	return nil
}
