package ops

import (
	"context"
	"io"
	"strings"

	"github.com/hpungsan/codyarch/internal/db"
	"github.com/hpungsan/codyarch/internal/errors"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID          string // required
	IncludeText *bool  // default: true (nil means default)
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	db.Record // embedded (copy, not pointer)

	// Text is the current file content when requested
	Text string `json:"text,omitempty"`

	// FileMissing is set when the indexed file no longer exists on disk
	FileMissing bool `json:"file_missing,omitempty"`
}

// Fetch retrieves an indexed result and, by default, the file's current content.
func Fetch(ctx context.Context, env *Env, input FetchInput) (*FetchOutput, error) {
	database, err := env.index()
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	rec, err := db.GetByID(ctx, database, id)
	if err != nil {
		return nil, err
	}
	output := &FetchOutput{Record: *rec}

	includeText := true
	if input.IncludeText != nil {
		includeText = *input.IncludeText
	}
	if !includeText {
		return output, nil
	}

	text, err := readResultFile(rec.Path)
	if errors.Is(err, errors.ErrFileNotFound) {
		output.FileMissing = true
		return output, nil
	}
	if err != nil {
		return nil, err
	}
	output.Text = text
	return output, nil
}

func readResultFile(path string) (string, error) {
	f, err := openFileNoFollowRead(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", errors.NewFilesystem("read", path, err)
	}
	return string(data), nil
}
