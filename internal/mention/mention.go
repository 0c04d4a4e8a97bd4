// Package mention hands a written file to the assistant's "mention this
// file" mechanism.
package mention

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
)

// Mode names a Mentioner implementation.
type Mode string

const (
	ModePrint     Mode = "print"
	ModeClipboard Mode = "clipboard"
	ModeNone      Mode = "none"
)

// Mentioner attaches a file to the assistant's context.
type Mentioner interface {
	Mention(ctx context.Context, path string) error
}

// Reference renders path as an "@<path>" mention, relative to workspace when
// path lies inside it. Separators are always forward slashes.
func Reference(workspace, path string) string {
	ref := path
	if workspace != "" {
		if rel, err := filepath.Rel(workspace, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			ref = rel
		}
	}
	return "@" + filepath.ToSlash(ref)
}

// Printer writes one mention line per file to W.
type Printer struct {
	W         io.Writer
	Workspace string
}

// Mention writes the mention reference for path.
func (p Printer) Mention(_ context.Context, path string) error {
	_, err := fmt.Fprintln(p.W, Reference(p.Workspace, path))
	return err
}

// Clipboard copies the mention reference to the system clipboard.
type Clipboard struct {
	Workspace string

	// write defaults to clipboard.WriteAll
	write func(string) error
}

// Mention copies the mention reference for path.
func (c Clipboard) Mention(_ context.Context, path string) error {
	write := c.write
	if write == nil {
		write = clipboard.WriteAll
	}
	if clipboard.Unsupported && c.write == nil {
		return fmt.Errorf("clipboard is not available on this system")
	}
	if err := write(Reference(c.Workspace, path)); err != nil {
		return fmt.Errorf("copy mention to clipboard: %w", err)
	}
	return nil
}

// Nop discards mentions.
type Nop struct{}

// Mention does nothing.
func (Nop) Mention(context.Context, string) error { return nil }

// New returns the Mentioner for mode. Print mode writes to w.
func New(mode Mode, w io.Writer, workspace string) (Mentioner, error) {
	switch mode {
	case ModePrint, "":
		return Printer{W: w, Workspace: workspace}, nil
	case ModeClipboard:
		return Clipboard{Workspace: workspace}, nil
	case ModeNone:
		return Nop{}, nil
	}
	return nil, fmt.Errorf("unknown mention mode %q", mode)
}
