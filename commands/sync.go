package commands

import "hglib.dev/hglib"

// PullOptions configures Pull.
type PullOptions struct {
	// Source overrides the default pull path.
	Source string

	// Update runs the equivalent of `hg pull -u`, updating the working
	// copy after a successful pull.
	Update bool
}

// PullResult reports whether Pull retrieved any new changesets. Exit
// code 1 ("no changes found") is not an error: Changed is simply false.
type PullResult struct {
	*hglib.CommandResult
	Changed bool
}

// Pull runs `hg pull`.
func Pull(s *hglib.Session, opts PullOptions) (*PullResult, error) {
	argv := []string{"pull"}
	if opts.Update {
		argv = append(argv, "--update")
	}
	if opts.Source != "" {
		argv = append(argv, opts.Source)
	}

	res, err := run(s, argv, true)
	if err != nil {
		return nil, err
	}
	return &PullResult{CommandResult: res, Changed: res.ExitCode == 0}, nil
}

// PushOptions configures Push.
type PushOptions struct {
	// Destination overrides the default push path.
	Destination string

	// Force passes -f, allowing a push that creates new remote heads.
	Force bool
}

// PushResult reports whether Push sent any new changesets. Exit code 1
// ("nothing to push") is not an error: Pushed is simply false.
type PushResult struct {
	*hglib.CommandResult
	Pushed bool
}

// Push runs `hg push`.
func Push(s *hglib.Session, opts PushOptions) (*PushResult, error) {
	argv := []string{"push"}
	if opts.Force {
		argv = append(argv, "--force")
	}
	if opts.Destination != "" {
		argv = append(argv, opts.Destination)
	}

	res, err := run(s, argv, true)
	if err != nil {
		return nil, err
	}
	return &PushResult{CommandResult: res, Pushed: res.ExitCode == 0}, nil
}

// UpdateOptions configures Update.
type UpdateOptions struct {
	// Revision checks out a specific revision instead of the tip.
	Revision string

	// Clean discards uncommitted changes instead of merging them.
	Clean bool
}

// UpdateResult reports whether Update left the working copy fully
// resolved. Exit code 1 ("unresolved files") is not an error: Clean is
// simply false and the caller is expected to inspect Status.
type UpdateResult struct {
	*hglib.CommandResult
	Clean bool
}

// Update runs `hg update`.
func Update(s *hglib.Session, opts UpdateOptions) (*UpdateResult, error) {
	argv := []string{"update"}
	if opts.Clean {
		argv = append(argv, "--clean")
	}
	argv = appendFlag(argv, "--rev", opts.Revision)

	res, err := run(s, argv, true)
	if err != nil {
		return nil, err
	}
	return &UpdateResult{CommandResult: res, Clean: res.ExitCode == 0}, nil
}

// MergeOptions configures Merge.
type MergeOptions struct {
	// Revision selects the changeset to merge with; empty merges with
	// the working copy's other head.
	Revision string

	// Tool overrides the merge tool Mercurial uses to resolve conflicts.
	Tool string
}

// MergeResult reports whether Merge resolved every file cleanly. Exit
// code 1 ("unresolved conflicts") is not an error: Clean is simply
// false and the caller is expected to inspect Status for the conflicted
// files.
type MergeResult struct {
	*hglib.CommandResult
	Clean bool
}

// Merge runs `hg merge`.
func Merge(s *hglib.Session, opts MergeOptions) (*MergeResult, error) {
	argv := []string{"merge"}
	argv = appendFlag(argv, "--rev", opts.Revision)
	argv = appendFlag(argv, "--tool", opts.Tool)

	res, err := run(s, argv, true)
	if err != nil {
		return nil, err
	}
	return &MergeResult{CommandResult: res, Clean: res.ExitCode == 0}, nil
}
