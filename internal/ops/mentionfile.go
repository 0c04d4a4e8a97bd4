package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/codyarch/internal/errors"
	"github.com/hpungsan/codyarch/internal/logging"
	"github.com/hpungsan/codyarch/internal/mention"
)

// MentionFileInput contains parameters for the MentionFile operation.
type MentionFileInput struct {
	Path      string // required
	Workspace string // required
}

// MentionFileOutput contains the result of the MentionFile operation.
type MentionFileOutput struct {
	// Path is the file that was mentioned: the original, or its copy in the temp directory
	Path      string `json:"path"`
	Source    string `json:"source"`
	Copied    bool   `json:"copied"`
	Mention   string `json:"mention"`
	Mentioned bool   `json:"mentioned"`
}

// MentionFile mentions an arbitrary file. Files outside the workspace are
// first copied to <workspace>/.codyarchitect/temp/ so the assistant can read
// them; the copy replaces any earlier one with the same base name.
func MentionFile(ctx context.Context, env *Env, input MentionFileInput) (*MentionFileOutput, error) {
	log := logging.FromContext(ctx)

	if strings.TrimSpace(input.Path) == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	ws, err := checkWorkspace(input.Workspace)
	if err != nil {
		return nil, err
	}

	source, err := filepath.Abs(input.Path)
	if err != nil {
		return nil, errors.NewInvalidRequest("invalid path: " + err.Error())
	}
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(source)
		}
		return nil, errors.NewFilesystem("stat", source, err)
	}
	if info.IsDir() {
		return nil, errors.NewInvalidRequest("path is a directory: " + source)
	}

	out := &MentionFileOutput{Path: source, Source: source}

	if !isWithin(ws, source) {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, errors.NewFilesystem("read", source, err)
		}
		dir := TempDir(ws)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.NewFilesystem("mkdir", dir, err)
		}
		dest := filepath.Join(dir, filepath.Base(source))
		if err := writeFileAtomic(dest, data, 0644); err != nil {
			return nil, err
		}
		out.Path = dest
		out.Copied = true
		log.Info("copied external file", zap.String("source", source), zap.String("path", dest))
	}

	out.Mention = mention.Reference(ws, out.Path)
	if env != nil && env.Mentioner != nil {
		if err := env.Mentioner.Mention(ctx, out.Path); err != nil {
			log.Warn("mention failed", zap.String("path", out.Path), zap.Error(err))
		} else {
			out.Mentioned = true
		}
	}

	return out, nil
}
