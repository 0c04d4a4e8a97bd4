package web

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/codyarch/internal/errors"
	"github.com/hpungsan/codyarch/internal/ops"
)

// Handlers contains HTTP route handlers.
type Handlers struct {
	env      *ops.Env
	renderer *Renderer
	logger   *zap.Logger
}

// HandleList handles GET /results: lists indexed results, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	workspace := r.URL.Query().Get("workspace")
	kind := r.URL.Query().Get("kind")

	result, err := ops.List(r.Context(), h.env, ops.ListInput{
		Workspace: workspace,
		Kind:      kind,
		Limit:     parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:    parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "list", ListPageData{
		PageData: PageData{
			Title:   "Results",
			Version: h.renderer.version,
			Nav:     "results",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Workspace:  workspace,
		Kind:       kind,
		Filter:     filterQuery(workspace, kind),
	})
}

// HandleDetail handles GET /results/{id}: renders one persisted document.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("result ID is required"))
		return
	}

	includeText := true
	doc, err := ops.Fetch(r.Context(), h.env, ops.FetchInput{ID: id, IncludeText: &includeText})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "detail", DetailPageData{
		PageData: PageData{
			Title:   doc.Name,
			Version: h.renderer.version,
			Nav:     "results",
		},
		Result:       doc,
		RenderedHTML: renderMarkdown(doc.Text),
	})
}

// HandleDelete handles DELETE /results/{id}: removes the file and its index entry.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("result ID is required"))
		return
	}

	result, err := ops.Delete(r.Context(), h.env, ops.DeleteInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.logger.Info("deleted result", zap.String("id", result.ID), zap.String("path", result.Path))

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/results", http.StatusSeeOther)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// filterQuery re-encodes the list filters for pagination links.
func filterQuery(workspace, kind string) string {
	q := url.Values{}
	if workspace != "" {
		q.Set("workspace", workspace)
	}
	if kind != "" {
		q.Set("kind", kind)
	}
	return q.Encode()
}
