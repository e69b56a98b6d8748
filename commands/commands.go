// Package commands assembles argv vectors for common Mercurial
// subcommands, runs them against a *hglib.Session, and parses their
// output into structured results. It is a convenience layer on top of
// hglib.Session.RunCommand/GetCommandOutput; nothing here is required to
// talk to the command server, but it saves every caller from
// re-deriving the same argv conventions and exit-code quirks.
package commands

import (
	"fmt"
	"os/exec"
	"strings"

	"hglib.dev/hglib"
)

// benignExit reports whether code is the well-known "not really an
// error" exit code for the commands that use it (commit, merge, update,
// pull, push, heads all reuse exit code 1 for a command-specific
// non-failure outcome).
func benignExit(code int32) bool { return code == 1 }

// run executes argv and converts any exit code other than 0 or (when
// allowBenign is set) 1 into a *hglib.Error of kind CommandFailed.
func run(s *hglib.Session, argv []string, allowBenign bool) (*hglib.CommandResult, error) {
	res, err := s.GetCommandOutput(argv, nil)
	if err != nil {
		return nil, err
	}
	if res.ExitCode == 0 {
		return res, nil
	}
	if allowBenign && benignExit(res.ExitCode) {
		return res, nil
	}
	return res, &hglib.Error{
		Kind:   hglib.KindCommandFailed,
		Op:     argv[0],
		Err:    fmt.Errorf("exit code %d", res.ExitCode),
		Result: res,
	}
}

func appendFlag(argv []string, flag, value string) []string {
	if value == "" {
		return argv
	}
	return append(argv, flag, value)
}

func joinConfig(overrides map[string]string) string {
	parts := make([]string, 0, len(overrides))
	for k, v := range overrides {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

// InitOptions configures Init.
type InitOptions struct {
	// Executable overrides the hg binary to run. Empty means "hg" on PATH.
	Executable string
}

// Init runs `hg init <path>`, creating a new repository. It shells out
// directly rather than going through a Session because the command
// server itself requires an already-existing repository to attach to.
func Init(path string, opts InitOptions) error {
	exe := opts.Executable
	if exe == "" {
		exe = "hg"
	}
	out, err := exec.Command(exe, "init", path).CombinedOutput()
	if err != nil {
		return fmt.Errorf("hg init %s: %w: %s", path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// CloneOptions configures Clone.
type CloneOptions struct {
	// Executable overrides the hg binary to run. Empty means "hg" on PATH.
	Executable string

	// Revision checks out a specific revision instead of the tip of the
	// default branch.
	Revision string

	// UpdateAfterClone, when false, passes --noupdate so the new clone is
	// left with an empty working copy.
	UpdateAfterClone bool

	// ConfigOverrides are passed as a single --config k1=v1,k2=v2,... flag.
	ConfigOverrides map[string]string
}

// Clone runs `hg clone <source> <dest>`. Like Init, it shells out
// directly since the destination repository doesn't exist yet for a
// command server to attach to.
func Clone(source, dest string, opts CloneOptions) error {
	exe := opts.Executable
	if exe == "" {
		exe = "hg"
	}
	argv := []string{"clone"}
	argv = appendFlag(argv, "--rev", opts.Revision)
	if !opts.UpdateAfterClone {
		argv = append(argv, "--noupdate")
	}
	if len(opts.ConfigOverrides) > 0 {
		argv = append(argv, "--config", joinConfig(opts.ConfigOverrides))
	}
	argv = append(argv, source, dest)

	out, err := exec.Command(exe, argv...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("hg clone %s %s: %w: %s", source, dest, err, strings.TrimSpace(string(out)))
	}
	return nil
}
