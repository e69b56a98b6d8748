package commands

import (
	"encoding/xml"
	"fmt"
	"time"

	"hglib.dev/hglib"
)

// LogDate unmarshals the ISO-8601-with-offset timestamps `hg log --style
// xml` emits, e.g. "2024-03-01T12:00:00+00:00".
type LogDate struct {
	time.Time
}

func (d *LogDate) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
	var raw string
	if err := dec.DecodeElement(&raw, &start); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("parse log entry date %q: %w", raw, err)
	}
	d.Time = t
	return nil
}

// ChangedPath is one entry of a Changeset's <paths> block.
type ChangedPath struct {
	Action string `xml:"action,attr"`
	Path   string `xml:",chardata"`
}

// Changeset is one <logentry> of `hg log --style xml` output.
type Changeset struct {
	Revision    int           `xml:"revision,attr"`
	Node        string        `xml:"node,attr"`
	Author      string        `xml:"author"`
	AuthorEmail string        `xml:"author>email,attr"`
	Date        LogDate       `xml:"date"`
	Branch      string        `xml:"branch"`
	Tags        []string      `xml:"tag"`
	Parents     []string      `xml:"parent>node,attr"`
	Message     string        `xml:"msg"`
	Paths       []ChangedPath `xml:"paths>path"`
}

type logDocument struct {
	XMLName xml.Name    `xml:"log"`
	Entries []Changeset `xml:"logentry"`
}

// LogOptions configures Log.
type LogOptions struct {
	// Revset, when non-empty, is passed as --rev.
	Revset string

	// Branch, when non-empty, is passed as --branch.
	Branch string

	// Limit, when positive, is passed as --limit.
	Limit int

	// Paths restricts the log to changesets touching the given files.
	Paths []string
}

// Log runs `hg log --style xml` and parses the result into a slice of
// Changeset, newest first, matching Mercurial's default ordering.
func Log(s *hglib.Session, opts LogOptions) ([]Changeset, error) {
	argv := []string{"log", "--style", "xml"}
	if opts.Revset != "" {
		argv = append(argv, "--rev", opts.Revset)
	}
	argv = appendFlag(argv, "--branch", opts.Branch)
	if opts.Limit > 0 {
		argv = append(argv, "--limit", fmt.Sprint(opts.Limit))
	}
	argv = append(argv, opts.Paths...)

	res, err := run(s, argv, false)
	if err != nil {
		return nil, err
	}

	var doc logDocument
	if err := xml.Unmarshal([]byte(res.Stdout), &doc); err != nil {
		return nil, fmt.Errorf("commands: parse log xml: %w", err)
	}
	return doc.Entries, nil
}
