package ops

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hpungsan/codyarch/internal/budget"
	"github.com/hpungsan/codyarch/internal/config"
	"github.com/hpungsan/codyarch/internal/db"
)

// fakeFetcher returns canned text and records what it was asked for.
type fakeFetcher struct {
	mu       sync.Mutex
	text     string
	err      error
	searches []string // "query|site"
	reads    []string
}

func (f *fakeFetcher) Search(_ context.Context, query, site string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, query+"|"+site)
	return f.text, f.err
}

func (f *fakeFetcher) Read(_ context.Context, target string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, target)
	return f.text, f.err
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches) + len(f.reads)
}

// recordingMentioner remembers mentioned paths.
type recordingMentioner struct {
	paths []string
	err   error
}

func (m *recordingMentioner) Mention(_ context.Context, path string) error {
	if m.err != nil {
		return m.err
	}
	m.paths = append(m.paths, path)
	return nil
}

// wordEncoder yields one token per whitespace-separated word.
type wordEncoder struct{}

func (wordEncoder) Encode(text string, _, _ []string) []int {
	return make([]int, len(strings.Fields(text)))
}

type brokenMeasurer struct{}

func (brokenMeasurer) Metric() budget.Metric { return budget.MetricTokens }
func (brokenMeasurer) Measure(string) (int, error) {
	return 0, errors.New("encoding unavailable")
}

// testMeasurers never loads a real BPE vocabulary.
func testMeasurers(kind budget.Metric) (budget.Measurer, error) {
	if kind == budget.MetricTokens {
		return budget.NewTokens(wordEncoder{}), nil
	}
	return budget.NewMeasurer(kind, "")
}

// newTestWorkspace returns a directory marked as a workspace root.
func newTestWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	if err := os.Mkdir(filepath.Join(ws, ".git"), 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	return ws
}

func newTestEnv(t *testing.T) (*Env, *fakeFetcher, *recordingMentioner) {
	t.Helper()
	fetcher := &fakeFetcher{text: "Title: Go\nURL Source: https://go.dev\nGo is a language."}
	mentioner := &recordingMentioner{}
	cfg := config.DefaultConfig()
	cfg.LimitKind = string(budget.MetricChars)
	cfg.LimitValue = 10000
	return &Env{
		Config:    cfg,
		Fetcher:   fetcher,
		Mentioner: mentioner,
		Measurer:  testMeasurers,
	}, fetcher, mentioner
}

func withTestDB(t *testing.T, env *Env) *Env {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	env.DB = database
	return env
}

func charsLimit(n int) *budget.Limit {
	return &budget.Limit{Kind: budget.MetricChars, Value: n}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) failed: %v", path, err)
	}
	return string(data)
}
