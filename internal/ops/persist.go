package ops

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/codyarch/internal/budget"
	"github.com/hpungsan/codyarch/internal/db"
	"github.com/hpungsan/codyarch/internal/errors"
	"github.com/hpungsan/codyarch/internal/logging"
	"github.com/hpungsan/codyarch/internal/result"
)

// PersistInput contains parameters for the Persist operation.
type PersistInput struct {
	Kind      result.Kind
	Query     string
	RawResult string
	Workspace string        // required, absolute or relative to the working directory
	Limit     *budget.Limit // default: the configured persistence budget
}

// PersistOutput contains the result of the Persist operation.
type PersistOutput struct {
	// ID is the index record ID; empty when no index is configured or indexing failed.
	ID string `json:"id,omitempty"`
	result.Document
}

// Persist assembles, budgets and writes a result document.
//
// The raw result is interpolated into the kind's template, shrunk until it
// measures at or under the limit, and written to
// <workspace>/.codyarchitect/<kind>results/<name>.md, replacing any earlier
// file for the same name. Measurement failures write nothing.
func Persist(ctx context.Context, env *Env, input PersistInput) (*PersistOutput, error) {
	log := logging.FromContext(ctx)

	kind, err := result.ParseKind(string(input.Kind))
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	limit, err := env.resolveLimit(input.Limit)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	workspace, err := checkWorkspace(input.Workspace)
	if err != nil {
		return nil, err
	}

	assembled := result.Assemble(kind, input.Query, input.RawResult)

	m, err := env.measurer(limit.Kind)
	if err != nil {
		log.Error("measurer unavailable", zap.String("metric", string(limit.Kind)), zap.Error(err))
		return nil, errors.NewMeasureFailed(string(limit.Kind), err)
	}
	fitted, err := budget.Fit(assembled, limit.Value, m)
	if err != nil {
		log.Error("measure failed", zap.String("metric", string(limit.Kind)), zap.Error(err))
		return nil, errors.NewMeasureFailed(string(limit.Kind), err)
	}

	if ctx.Err() != nil {
		return nil, errors.NewCancelled("persist")
	}

	dir := ResultDir(workspace, kind.DirName())
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Error("create result directory", zap.String("dir", dir), zap.Error(err))
		return nil, errors.NewFilesystem("mkdir", dir, err)
	}

	name := result.DeriveName(kind, input.Query)
	path := filepath.Join(dir, name+result.FileExt)
	if err := writeFileAtomic(path, []byte(fitted.Content), 0644); err != nil {
		log.Error("write result", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	out := &PersistOutput{
		Document: result.Document{
			Kind:       kind,
			Query:      input.Query,
			Name:       name,
			Path:       path,
			Content:    fitted.Content,
			Chars:      utf8.RuneCountInString(fitted.Content),
			Size:       fitted.Size,
			Limit:      limit,
			Iterations: fitted.Iterations,
		},
	}

	log.Info("persisted result",
		zap.String("kind", string(kind)),
		zap.String("query", input.Query),
		zap.String("path", path),
		zap.Int("size", fitted.Size),
		zap.Stringer("limit", limit),
		zap.Int("iterations", fitted.Iterations),
	)

	if env != nil && env.DB != nil {
		id, err := indexDocument(ctx, env, workspace, &out.Document)
		if err != nil {
			log.Warn("index result", zap.String("path", path), zap.Error(err))
		} else {
			out.ID = id
		}
	}

	return out, nil
}

// indexDocument records doc in the result index and returns its record ID.
func indexDocument(ctx context.Context, env *Env, workspace string, doc *result.Document) (string, error) {
	id, err := generateULID(env.now())
	if err != nil {
		return "", errors.NewInternal(err)
	}
	now := env.now().Unix()
	rec := &db.Record{
		ID:         id,
		Workspace:  workspace,
		Kind:       doc.Kind,
		Query:      doc.Query,
		Name:       doc.Name,
		Path:       doc.Path,
		Chars:      doc.Chars,
		Metric:     doc.Limit.Kind,
		Size:       doc.Size,
		Limit:      doc.Limit.Value,
		Iterations: doc.Iterations,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.Upsert(ctx, env.DB, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// generateULID generates a new ULID.
func generateULID(t time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
