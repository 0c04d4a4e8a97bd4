package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/codyarch/internal/budget"
	"github.com/hpungsan/codyarch/internal/errors"
	"github.com/hpungsan/codyarch/internal/logging"
	"github.com/hpungsan/codyarch/internal/result"
)

// InlineSearchInput contains parameters for the InlineSearch operation.
type InlineSearchInput struct {
	Query string        // required
	Site  string        // optional
	Limit *budget.Limit // default: the configured provider budget
}

// InlineSearchOutput is a budgeted web document that was not written to disk.
type InlineSearchOutput struct {
	Query      string       `json:"query"`
	Content    string       `json:"content"`
	Size       int          `json:"size"`
	Limit      budget.Limit `json:"limit"`
	Iterations int          `json:"iterations"`
}

// InlineSearch searches the web and returns the assembled, budgeted document
// directly, for callers that attach content inline instead of by file.
func InlineSearch(ctx context.Context, env *Env, input InlineSearchInput) (*InlineSearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}
	fetcher, err := env.fetcher()
	if err != nil {
		return nil, err
	}

	limit := env.config().ProviderLimit()
	if input.Limit != nil {
		limit = *input.Limit
	}
	kind, err := budget.ParseMetric(string(limit.Kind))
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	limit.Kind = kind

	raw, err := fetcher.Search(ctx, query, input.Site)
	if err != nil {
		logging.FromContext(ctx).Warn("inline search failed", zap.String("query", query), zap.Error(err))
		return nil, err
	}

	m, err := env.measurer(limit.Kind)
	if err != nil {
		return nil, errors.NewMeasureFailed(string(limit.Kind), err)
	}
	fitted, err := budget.Fit(result.Assemble(result.KindWeb, query, raw), limit.Value, m)
	if err != nil {
		return nil, errors.NewMeasureFailed(string(limit.Kind), err)
	}

	return &InlineSearchOutput{
		Query:      query,
		Content:    fitted.Content,
		Size:       fitted.Size,
		Limit:      limit,
		Iterations: fitted.Iterations,
	}, nil
}
