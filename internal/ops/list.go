package ops

import (
	"context"

	"github.com/hpungsan/codyarch/internal/db"
	"github.com/hpungsan/codyarch/internal/errors"
	"github.com/hpungsan/codyarch/internal/result"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Workspace string // optional filter
	Kind      string // optional filter: "web" or "pdf"
	Limit     int    // default: 20, max: 100
	Offset    int    // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []db.Record `json:"items"`
	Pagination Pagination  `json:"pagination"`
	Sort       string      `json:"sort"`
}

// List retrieves indexed results with pagination, most recently written first.
func List(ctx context.Context, env *Env, input ListInput) (*ListOutput, error) {
	database, err := env.index()
	if err != nil {
		return nil, err
	}

	filter := db.ListFilter{Workspace: input.Workspace}
	if input.Kind != "" {
		kind, err := result.ParseKind(input.Kind)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		filter.Kind = kind
	}

	// Apply limit defaults and bounds
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	// Ensure offset is non-negative
	offset := max(input.Offset, 0)

	items, total, err := db.List(ctx, database, filter, limit, offset)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	if items == nil {
		items = []db.Record{}
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "updated_at_desc",
	}, nil
}
