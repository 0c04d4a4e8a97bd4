package ops

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/hpungsan/codyarch/internal/budget"
	"github.com/hpungsan/codyarch/internal/config"
	"github.com/hpungsan/codyarch/internal/errors"
	"github.com/hpungsan/codyarch/internal/mention"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

var errNoIndex = fmt.Errorf("result index is not configured")

// Fetcher retrieves raw result text from the remote content service.
// *jina.Client satisfies it.
type Fetcher interface {
	Search(ctx context.Context, query, site string) (string, error)
	Read(ctx context.Context, target string) (string, error)
}

// MeasurerFunc returns the measurer for a metric.
type MeasurerFunc func(kind budget.Metric) (budget.Measurer, error)

// PreloadMeasurers builds the token measurer for encoding up front and
// returns a MeasurerFunc that serves both metrics without further loading.
func PreloadMeasurers(encoding string) (MeasurerFunc, error) {
	tokens, err := budget.LoadTokens(encoding)
	if err != nil {
		return nil, err
	}
	return func(kind budget.Metric) (budget.Measurer, error) {
		switch kind {
		case budget.MetricChars:
			return budget.Chars{}, nil
		case budget.MetricTokens:
			return tokens, nil
		}
		return nil, fmt.Errorf("unknown limit kind %q", kind)
	}, nil
}

// Env carries the collaborators shared by operations.
// Only Config is consulted unconditionally; nil optional fields switch off
// the feature they back.
type Env struct {
	Config *config.Config

	// DB is the result index. Optional.
	DB *sql.DB

	// Fetcher is required by WebSearch, ReadPDF and InlineSearch.
	Fetcher Fetcher

	// Mentioner receives written paths. Optional.
	Mentioner mention.Mentioner

	// Progress receives the elapsed-time indicator during fetches. Optional.
	Progress io.Writer

	// Measurer defaults to budget.NewMeasurer with Config.Encoding.
	Measurer MeasurerFunc

	// Now defaults to time.Now.
	Now func() time.Time
}

func (e *Env) config() *config.Config {
	if e == nil || e.Config == nil {
		return config.DefaultConfig()
	}
	return e.Config
}

func (e *Env) measurer(kind budget.Metric) (budget.Measurer, error) {
	if e != nil && e.Measurer != nil {
		return e.Measurer(kind)
	}
	return budget.NewMeasurer(kind, e.config().Encoding)
}

func (e *Env) fetcher() (Fetcher, error) {
	if e == nil || e.Fetcher == nil {
		return nil, errors.NewInternal(fmt.Errorf("no fetcher configured"))
	}
	return e.Fetcher, nil
}

func (e *Env) index() (*sql.DB, error) {
	if e == nil || e.DB == nil {
		return nil, errors.NewInternal(errNoIndex)
	}
	return e.DB, nil
}

func (e *Env) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// resolveLimit returns override when set, else the configured persistence budget.
func (e *Env) resolveLimit(override *budget.Limit) (budget.Limit, error) {
	limit := e.config().Limit()
	if override != nil {
		limit = *override
	}
	kind, err := budget.ParseMetric(string(limit.Kind))
	if err != nil {
		return budget.Limit{}, err
	}
	limit.Kind = kind
	return limit, nil
}
