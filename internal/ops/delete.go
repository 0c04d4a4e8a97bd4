package ops

import (
	"context"
	"os"
	"strings"

	"github.com/hpungsan/codyarch/internal/db"
	"github.com/hpungsan/codyarch/internal/errors"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ID string // required
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
	Path    string `json:"path"`
}

// Delete removes an indexed result's file and its index record.
// A file that is already gone is not an error.
func Delete(ctx context.Context, env *Env, input DeleteInput) (*DeleteOutput, error) {
	database, err := env.index()
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	// Verify it exists (GetByID will return NOT_FOUND if not)
	rec, err := db.GetByID(ctx, database, id)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
		return nil, errors.NewFilesystem("remove", rec.Path, err)
	}

	if err := db.DeleteByID(ctx, database, id); err != nil {
		return nil, err
	}

	return &DeleteOutput{
		Deleted: true,
		ID:      id,
		Path:    rec.Path,
	}, nil
}
