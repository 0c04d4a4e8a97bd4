package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/codyarch/internal/budget"
	"github.com/hpungsan/codyarch/internal/config"
	"github.com/hpungsan/codyarch/internal/db"
	"github.com/hpungsan/codyarch/internal/ops"
)

// stubFetcher returns canned text for every request.
type stubFetcher struct {
	text    string
	queries []string
}

func (f *stubFetcher) Search(_ context.Context, query, site string) (string, error) {
	f.queries = append(f.queries, query+"|"+site)
	return f.text, nil
}

func (f *stubFetcher) Read(_ context.Context, target string) (string, error) {
	f.queries = append(f.queries, target)
	return f.text, nil
}

type testCLI struct {
	deps    *deps
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	fetcher *stubFetcher
	ws      string
}

// setupTestCLI creates a workspace, an index and deps writing to buffers.
func setupTestCLI(t *testing.T) *testCLI {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ws := t.TempDir()
	if err := os.Mkdir(filepath.Join(ws, ".git"), 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.LimitKind = "chars"
	cfg.LimitValue = 5000
	cfg.MentionMode = config.MentionPrint

	tc := &testCLI{
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
		fetcher: &stubFetcher{text: "Title: Go\nURL Source: https://go.dev\nGo is a language."},
		ws:      ws,
	}
	tc.deps = &deps{
		cfg:        cfg,
		db:         database,
		fetcher:    tc.fetcher,
		logger:     zap.NewNop(),
		stdin:      strings.NewReader(""),
		stdout:     tc.stdout,
		stderr:     tc.stderr,
		stdinPiped: func() bool { return true },
		getwd:      func() (string, error) { return ws, nil },
	}
	return tc
}

func (tc *testCLI) run(t *testing.T, args ...string) error {
	t.Helper()
	tc.stdout.Reset()
	return newCLIApp(tc.deps).Run(append([]string{"codyarch"}, args...))
}

func (tc *testCLI) decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(tc.stdout.Bytes(), v); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, tc.stdout.String())
	}
}

// TestCLISearch tests the search command.
func TestCLISearch(t *testing.T) {
	tc := setupTestCLI(t)

	if err := tc.run(t, "search", "--site", "go.dev", "go", "generics"); err != nil {
		t.Fatalf("search command failed: %v", err)
	}

	var output ops.FetchedOutput
	tc.decode(t, &output)

	want := filepath.Join(tc.ws, ".codyarchitect", "webresults", "go generics.md")
	if output.Path != want {
		t.Errorf("path = %q, want %q", output.Path, want)
	}
	if output.ID == "" {
		t.Error("expected index ID")
	}
	if len(tc.fetcher.queries) != 1 || tc.fetcher.queries[0] != "go generics|go.dev" {
		t.Errorf("queries = %v", tc.fetcher.queries)
	}
	if !strings.Contains(tc.stderr.String(), "@.codyarchitect/webresults/go generics.md") {
		t.Errorf("expected mention on stderr, got %q", tc.stderr.String())
	}
}

func TestCLISearch_GlobalLimitFlags(t *testing.T) {
	tc := setupTestCLI(t)
	tc.fetcher.text = strings.Repeat("words and more words ", 200)

	if err := tc.run(t, "--limit-kind", "chars", "--limit", "100", "search", "budget"); err != nil {
		t.Fatalf("search command failed: %v", err)
	}

	var output ops.FetchedOutput
	tc.decode(t, &output)
	if output.Size > 100 {
		t.Errorf("size = %d, want <= 100", output.Size)
	}
	if output.Iterations == 0 {
		t.Error("expected the document to be shrunk")
	}
}

func TestCLIPDF(t *testing.T) {
	tc := setupTestCLI(t)

	if err := tc.run(t, "pdf", "https://arxiv.org/pdf/2401.00001"); err != nil {
		t.Fatalf("pdf command failed: %v", err)
	}

	var output ops.FetchedOutput
	tc.decode(t, &output)
	if output.Name != "2401.00001" {
		t.Errorf("name = %q, want 2401.00001", output.Name)
	}
	if filepath.Base(filepath.Dir(output.Path)) != "pdfresults" {
		t.Errorf("path = %q, want under pdfresults", output.Path)
	}
}

// TestCLIPersist tests the persist command.
func TestCLIPersist(t *testing.T) {
	tc := setupTestCLI(t)
	tc.deps.stdin = strings.NewReader("raw search output")

	if err := tc.run(t, "persist", "--kind", "web", "--query", "stdin query"); err != nil {
		t.Fatalf("persist command failed: %v", err)
	}

	var output ops.PersistOutput
	tc.decode(t, &output)

	data, err := os.ReadFile(output.Path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.HasSuffix(string(data), "raw search output") {
		t.Errorf("file content = %q", data)
	}
}

func TestCLIPersist_RequiresPipedStdin(t *testing.T) {
	tc := setupTestCLI(t)
	tc.deps.stdinPiped = func() bool { return false }

	err := tc.run(t, "persist", "--query", "q")
	if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
		t.Fatalf("error = %v, want INVALID_REQUEST", err)
	}
}

// TestCLIListShowDelete tests the index commands end to end.
func TestCLIListShowDelete(t *testing.T) {
	tc := setupTestCLI(t)

	for _, q := range []string{"alpha", "beta"} {
		if err := tc.run(t, "search", q); err != nil {
			t.Fatalf("search %q failed: %v", q, err)
		}
	}

	if err := tc.run(t, "list"); err != nil {
		t.Fatalf("list command failed: %v", err)
	}
	var list ops.ListOutput
	tc.decode(t, &list)
	if list.Pagination.Total != 2 {
		t.Fatalf("total = %d, want 2", list.Pagination.Total)
	}
	id := list.Items[0].ID

	if err := tc.run(t, "list", "--kind", "pdf"); err != nil {
		t.Fatalf("list command failed: %v", err)
	}
	tc.decode(t, &list)
	if list.Pagination.Total != 0 {
		t.Errorf("pdf total = %d, want 0", list.Pagination.Total)
	}

	if err := tc.run(t, "show", id); err != nil {
		t.Fatalf("show command failed: %v", err)
	}
	var shown ops.FetchOutput
	tc.decode(t, &shown)
	if shown.ID != id || !strings.Contains(shown.Text, "Go is a language.") {
		t.Errorf("show output = %+v", shown)
	}

	if err := tc.run(t, "show", "--no-text", id); err != nil {
		t.Fatalf("show command failed: %v", err)
	}
	shown = ops.FetchOutput{}
	tc.decode(t, &shown)
	if shown.Text != "" {
		t.Error("expected no text with --no-text")
	}

	if err := tc.run(t, "delete", id); err != nil {
		t.Fatalf("delete command failed: %v", err)
	}
	var deleted ops.DeleteOutput
	tc.decode(t, &deleted)
	if !deleted.Deleted {
		t.Error("expected deleted=true")
	}

	err := tc.run(t, "show", id)
	if err == nil || !strings.Contains(err.Error(), "[NOT_FOUND]") {
		t.Errorf("show after delete error = %v, want [NOT_FOUND]", err)
	}
}

func TestCLIMentionAndClean(t *testing.T) {
	tc := setupTestCLI(t)

	outside := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(outside, []byte("# notes"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := tc.run(t, "mention", outside); err != nil {
		t.Fatalf("mention command failed: %v", err)
	}
	var mentioned ops.MentionFileOutput
	tc.decode(t, &mentioned)
	if !mentioned.Copied || mentioned.Mention != "@.codyarchitect/temp/notes.md" {
		t.Errorf("mention output = %+v", mentioned)
	}

	if err := tc.run(t, "clean"); err != nil {
		t.Fatalf("clean command failed: %v", err)
	}
	var cleaned ops.CleanTempOutput
	tc.decode(t, &cleaned)
	if cleaned.Removed != 1 {
		t.Errorf("removed = %d, want 1", cleaned.Removed)
	}
	if _, err := os.Stat(mentioned.Path); !os.IsNotExist(err) {
		t.Errorf("temp copy should be gone, stat err = %v", err)
	}
}

// TestCLIErrorHandling tests error formatting and the no-workspace no-op.
func TestCLIErrorHandling(t *testing.T) {
	tc := setupTestCLI(t)

	t.Run("invalid limit kind", func(t *testing.T) {
		err := tc.run(t, "--limit-kind", "pages", "search", "x")
		if err == nil || !strings.HasPrefix(err.Error(), "[INVALID_REQUEST]") {
			t.Errorf("error = %v, want [INVALID_REQUEST] prefix", err)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		err := tc.run(t, "search")
		if err == nil || !strings.Contains(err.Error(), "query is required") {
			t.Errorf("error = %v, want query is required", err)
		}
	})

	t.Run("no workspace is a no-op", func(t *testing.T) {
		bare := t.TempDir()
		err := tc.run(t, "--workspace", filepath.Join(bare, "missing"), "search", "x")
		if err != nil {
			t.Errorf("error = %v, want nil", err)
		}
		if tc.stdout.Len() != 0 {
			t.Errorf("expected no output, got %q", tc.stdout.String())
		}
	})
}

func TestLimitOverrideNeedsFlags(t *testing.T) {
	tc := setupTestCLI(t)

	if err := tc.run(t, "search", "defaults"); err != nil {
		t.Fatalf("search command failed: %v", err)
	}
	var output ops.FetchedOutput
	tc.decode(t, &output)
	if output.Limit != tc.deps.cfg.Limit() {
		t.Errorf("limit = %v, want configured %v", output.Limit, tc.deps.cfg.Limit())
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"no args", []string{"codyarch"}, false},
		{"known command", []string{"codyarch", "search", "q"}, true},
		{"global flags first", []string{"codyarch", "--workspace", "/tmp/x", "--limit", "10", "pdf", "u"}, true},
		{"help flag", []string{"codyarch", "--help"}, true},
		{"version flag", []string{"codyarch", "-v"}, true},
		{"unknown command", []string{"codyarch", "frobnicate"}, false},
		{"only flags", []string{"codyarch", "--log-level", "debug"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCLIMode(tt.args); got != tt.want {
				t.Errorf("isCLIMode(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"codyarch"}, false},
		{[]string{"codyarch", "help"}, true},
		{[]string{"codyarch", "-h"}, true},
		{[]string{"codyarch", "--version"}, true},
		{[]string{"codyarch", "--workspace", "-h"}, false},
		{[]string{"codyarch", "search", "--help"}, false},
	}

	for _, tt := range tests {
		if got := isHelpOrVersion(tt.args); got != tt.want {
			t.Errorf("isHelpOrVersion(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

// limitContext builds a command context with the global limit flags parsed from args.
func limitContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("serve", flag.ContinueOnError)
	set.String("limit-kind", "", "")
	set.Int("limit", 0, "")
	if err := set.Parse(args); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestProviderConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want budget.Limit
	}{
		{"no flags", nil, budget.Limit{Kind: budget.MetricChars, Value: 30000}},
		{"value keeps provider kind", []string{"--limit", "5000"}, budget.Limit{Kind: budget.MetricChars, Value: 5000}},
		{"kind keeps provider value", []string{"--limit-kind", "tokens"}, budget.Limit{Kind: budget.MetricTokens, Value: 30000}},
		{"both", []string{"--limit-kind", "tokens", "--limit", "900"}, budget.Limit{Kind: budget.MetricTokens, Value: 900}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			got, err := providerConfig(limitContext(t, tc.args...), cfg)
			if err != nil {
				t.Fatalf("providerConfig failed: %v", err)
			}
			if got.ProviderLimit() != tc.want {
				t.Errorf("ProviderLimit() = %v, want %v", got.ProviderLimit(), tc.want)
			}
			if got.Limit() != cfg.Limit() {
				t.Errorf("persistence limit changed to %v", got.Limit())
			}
			if cfg.ProviderLimitValue != 30000 {
				t.Error("providerConfig must not modify the shared config")
			}
		})
	}
}

func TestProviderConfig_InvalidKind(t *testing.T) {
	if _, err := providerConfig(limitContext(t, "--limit-kind", "bytes"), config.DefaultConfig()); err == nil {
		t.Error("expected error for unknown limit kind")
	}
}
