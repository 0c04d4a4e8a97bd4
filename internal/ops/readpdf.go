package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/codyarch/internal/budget"
	"github.com/hpungsan/codyarch/internal/errors"
	"github.com/hpungsan/codyarch/internal/result"
)

// ReadPDFInput contains parameters for the ReadPDF operation.
type ReadPDFInput struct {
	URL       string // required
	Workspace string // required
	Limit     *budget.Limit
}

// ReadPDF extracts the text of a PDF (or any page the reader accepts) and
// persists it as a pdf document named after the URL's last path segment.
func ReadPDF(ctx context.Context, env *Env, input ReadPDFInput) (*FetchedOutput, error) {
	target := strings.TrimSpace(input.URL)
	if target == "" {
		return nil, errors.NewInvalidRequest("url is required")
	}

	return fetchAndPersist(ctx, env, result.KindPDF, target, input.Workspace, input.Limit, "Reading PDF",
		func(ctx context.Context, f Fetcher) (string, error) {
			return f.Read(ctx, target)
		})
}
