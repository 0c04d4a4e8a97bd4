package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/codyarch/internal/budget"
)

// decode unmarshals MCP request arguments into a typed struct.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal args: %w", err)
	}
	return result, nil
}

// LimitArgs are the optional budget overrides shared by the writing tools.
type LimitArgs struct {
	LimitKind  string `json:"limit_kind,omitempty"`
	LimitValue *int   `json:"limit_value,omitempty"`
}

// override returns nil when neither field is set, so the configured budget
// applies. A lone field is combined with the configured value for the other.
func (a LimitArgs) override(base budget.Limit) (*budget.Limit, error) {
	if a.LimitKind == "" && a.LimitValue == nil {
		return nil, nil
	}
	limit := base
	if a.LimitKind != "" {
		kind, err := budget.ParseMetric(a.LimitKind)
		if err != nil {
			return nil, err
		}
		limit.Kind = kind
	}
	if a.LimitValue != nil {
		limit.Value = *a.LimitValue
	}
	return &limit, nil
}
