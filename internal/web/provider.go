package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/codyarch/internal/errors"
	"github.com/hpungsan/codyarch/internal/logging"
	"github.com/hpungsan/codyarch/internal/ops"
)

// ProviderName is what the editor shows for this context provider.
const ProviderName = "WebSearch"

// ProviderRequest is the body of a provider call.
type ProviderRequest struct {
	Method string         `json:"method"`
	Params ProviderParams `json:"params"`
}

// ProviderParams carries the fields used by the mentions and items methods.
type ProviderParams struct {
	Query   string `json:"query,omitempty"`
	Message string `json:"message,omitempty"`
}

// MetaResult describes the provider.
type MetaResult struct {
	Name     string       `json:"name"`
	Mentions MentionsMeta `json:"mentions"`
}

// MentionsMeta is the label shown in the mention picker.
type MentionsMeta struct {
	Label string `json:"label"`
}

// Item is one context item returned by mentions and items.
type Item struct {
	Title string `json:"title"`
	UI    ItemUI `json:"ui"`
	AI    ItemAI `json:"ai"`
}

// ItemUI is the editor-facing part of an item.
type ItemUI struct {
	Hover Hover `json:"hover"`
}

// Hover is the tooltip text of an item.
type Hover struct {
	Text string `json:"text"`
}

// ItemAI is the model-facing part of an item.
type ItemAI struct {
	Content string `json:"content"`
}

// HandleProvider handles POST / for the meta, mentions and items methods.
func (h *Handlers) HandleProvider(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req ProviderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("bad provider request", zap.Error(err))
		renderJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request body"})
		return
	}

	var result any
	switch req.Method {
	case "meta":
		result = MetaResult{
			Name:     ProviderName,
			Mentions: MentionsMeta{Label: "Type your search query"},
		}
	case "mentions":
		result = []Item{{
			Title: req.Params.Query,
			UI:    ItemUI{Hover: Hover{Text: ProviderName}},
			AI:    ItemAI{Content: "A web search by the user"},
		}}
	case "items":
		item, err := h.searchItem(r, req.Params)
		if err != nil {
			h.providerError(w, err)
			return
		}
		result = []Item{*item}
	default:
		h.logger.Warn("bad provider method", zap.String("method", req.Method))
		renderJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid method"})
		return
	}

	renderJSON(w, http.StatusOK, map[string]any{"result": result})
}

// searchItem runs a budgeted web search for the message and wraps it as an item.
func (h *Handlers) searchItem(r *http.Request, params ProviderParams) (*Item, error) {
	ctx := logging.WithLogger(r.Context(), h.logger)
	out, err := ops.InlineSearch(ctx, h.env, ops.InlineSearchInput{Query: params.Message})
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(params.Query)
	if title == "" {
		title = out.Query
	}
	h.logger.Info("provider items",
		zap.String("query", out.Query),
		zap.Int("size", out.Size),
		zap.Stringer("limit", out.Limit),
		zap.Int("iterations", out.Iterations),
	)

	return &Item{
		Title: title,
		UI:    ItemUI{Hover: Hover{Text: ProviderName}},
		AI:    ItemAI{Content: out.Content},
	}, nil
}

// providerError reports a failed items call as {"error": message} with the error's status.
func (h *Handlers) providerError(w http.ResponseWriter, err error) {
	aErr, ok := errors.As(err)
	if !ok {
		aErr = errors.NewInternal(err)
	}
	h.logger.Warn("provider items failed", zap.String("code", string(aErr.Code)), zap.Error(err))

	message := aErr.Message
	if aErr.Code == errors.ErrInternal {
		message = "internal error"
	}
	renderJSON(w, aErr.Status, map[string]any{"error": message, "code": aErr.Code})
}
