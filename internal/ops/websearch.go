package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/codyarch/internal/budget"
	"github.com/hpungsan/codyarch/internal/errors"
	"github.com/hpungsan/codyarch/internal/logging"
	"github.com/hpungsan/codyarch/internal/mention"
	"github.com/hpungsan/codyarch/internal/progress"
	"github.com/hpungsan/codyarch/internal/result"
)

// WebSearchInput contains parameters for the WebSearch operation.
type WebSearchInput struct {
	Query     string // required
	Site      string // optional, restricts results to one site
	Workspace string // required
	Limit     *budget.Limit
}

// FetchedOutput is returned by operations that fetch, persist and mention a result.
type FetchedOutput struct {
	PersistOutput
	Mention   string `json:"mention,omitempty"`
	Mentioned bool   `json:"mentioned"`
}

// WebSearch searches the web for a query and persists the results as a web document.
func WebSearch(ctx context.Context, env *Env, input WebSearchInput) (*FetchedOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}

	return fetchAndPersist(ctx, env, result.KindWeb, query, input.Workspace, input.Limit, "Searching",
		func(ctx context.Context, f Fetcher) (string, error) {
			return f.Search(ctx, query, input.Site)
		})
}

// fetchAndPersist runs one fetch under a progress indicator, persists the
// text and hands the written path to the mentioner.
func fetchAndPersist(
	ctx context.Context,
	env *Env,
	kind result.Kind,
	query, workspace string,
	limit *budget.Limit,
	label string,
	fetch func(context.Context, Fetcher) (string, error),
) (*FetchedOutput, error) {
	log := logging.FromContext(ctx).With(zap.String("kind", string(kind)), zap.String("query", query))

	// Resolve the workspace before spending a request on a result that cannot be written.
	ws, err := checkWorkspace(workspace)
	if err != nil {
		return nil, err
	}
	fetcher, err := env.fetcher()
	if err != nil {
		return nil, err
	}

	raw, err := func() (string, error) {
		if env.Progress != nil {
			stop := progress.Start(env.Progress, label)
			defer stop()
		}
		return fetch(ctx, fetcher)
	}()
	if err != nil {
		log.Warn("fetch failed", zap.Error(err))
		return nil, err
	}
	fetched := result.SearchResult{Query: query, RawText: raw}
	if fetched.Empty() {
		return nil, errors.NewEmptyResult(query)
	}

	persisted, err := Persist(ctx, env, PersistInput{
		Kind:      kind,
		Query:     fetched.Query,
		RawResult: fetched.RawText,
		Workspace: ws,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	out := &FetchedOutput{PersistOutput: *persisted}
	if env.Mentioner != nil {
		if err := env.Mentioner.Mention(ctx, persisted.Path); err != nil {
			log.Warn("mention failed", zap.String("path", persisted.Path), zap.Error(err))
		} else {
			out.Mentioned = true
		}
	}
	out.Mention = mention.Reference(ws, persisted.Path)
	return out, nil
}
