package ops

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/hpungsan/codyarch/internal/errors"
	"github.com/hpungsan/codyarch/internal/logging"
)

// CleanTempInput contains parameters for the CleanTemp operation.
type CleanTempInput struct {
	Workspace string // required
}

// CleanTempOutput contains the result of the CleanTemp operation.
type CleanTempOutput struct {
	Path    string `json:"path"`
	Removed int    `json:"removed"`
}

// CleanTemp removes the copies MentionFile made of out-of-workspace files.
func CleanTemp(ctx context.Context, _ *Env, input CleanTempInput) (*CleanTempOutput, error) {
	ws, err := checkWorkspace(input.Workspace)
	if err != nil {
		return nil, err
	}
	dir := TempDir(ws)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &CleanTempOutput{Path: dir}, nil
		}
		return nil, errors.NewFilesystem("read", dir, err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, errors.NewFilesystem("remove", dir, err)
	}

	logging.FromContext(ctx).Info("removed temp copies", zap.String("dir", dir), zap.Int("removed", len(entries)))
	return &CleanTempOutput{Path: dir, Removed: len(entries)}, nil
}
