// Package budget measures text under a size metric and shrinks it to fit a limit.
package budget

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	// Vocabularies are embedded; measuring never touches the network.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Metric names the unit a Limit is expressed in.
type Metric string

const (
	MetricChars  Metric = "chars"  // runes
	MetricTokens Metric = "tokens" // tokenizer output length
)

// DefaultEncoding is the tokenizer vocabulary used when none is configured.
const DefaultEncoding = "cl100k_base"

// shrinkNumerator / shrinkDenominator is the fraction of runes kept per iteration.
const (
	shrinkNumerator   = 9
	shrinkDenominator = 10
)

// Limit is a size budget.
type Limit struct {
	Kind  Metric `json:"kind"`
	Value int    `json:"value"`
}

// String renders the limit as "<value> <kind>".
func (l Limit) String() string {
	return fmt.Sprintf("%d %s", l.Value, l.Kind)
}

// ParseMetric validates a metric name. Matching is case-insensitive.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case MetricChars:
		return MetricChars, nil
	case MetricTokens:
		return MetricTokens, nil
	}
	return "", fmt.Errorf("unknown limit kind %q (want chars or tokens)", s)
}

// Measurer computes the size of a string under one metric.
type Measurer interface {
	Metric() Metric
	Measure(text string) (int, error)
}

// Chars measures text by rune count.
type Chars struct{}

// Metric returns MetricChars.
func (Chars) Metric() Metric { return MetricChars }

// Measure returns the number of runes in text.
func (Chars) Measure(text string) (int, error) {
	return utf8.RuneCountInString(text), nil
}

// Encoder is the subset of a BPE tokenizer the Tokens measurer needs.
// *tiktoken.Tiktoken satisfies it.
type Encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// Tokens measures text by the number of tokens an Encoder produces.
type Tokens struct {
	enc Encoder
}

// NewTokens wraps an encoder.
func NewTokens(enc Encoder) *Tokens {
	return &Tokens{enc: enc}
}

var (
	tokensMu    sync.Mutex
	tokensCache = map[string]*Tokens{}
)

// LoadTokens returns the measurer for the named tiktoken encoding. Each
// encoding is built once per process from the embedded vocabulary.
func LoadTokens(encoding string) (*Tokens, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	tokensMu.Lock()
	defer tokensMu.Unlock()
	if t, ok := tokensCache[encoding]; ok {
		return t, nil
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	t := NewTokens(enc)
	tokensCache[encoding] = t
	return t, nil
}

// Metric returns MetricTokens.
func (t *Tokens) Metric() Metric { return MetricTokens }

// Measure returns the token count of text. Special tokens are encoded as
// regular text-bearing tokens rather than rejected.
func (t *Tokens) Measure(text string) (int, error) {
	if t == nil || t.enc == nil {
		return 0, fmt.Errorf("tokens measurer has no encoder")
	}
	return len(t.enc.Encode(text, []string{"all"}, nil)), nil
}

// NewMeasurer returns the measurer for kind. encoding is only used for tokens.
func NewMeasurer(kind Metric, encoding string) (Measurer, error) {
	switch kind {
	case MetricChars:
		return Chars{}, nil
	case MetricTokens:
		return LoadTokens(encoding)
	}
	return nil, fmt.Errorf("unknown limit kind %q", kind)
}

// Fitted is the outcome of Fit.
type Fitted struct {
	Content    string
	Size       int // measured size of Content
	Iterations int // number of truncation steps taken
}

// Fit shrinks content until it measures at or under limit.
//
// Each iteration keeps the first floor(runes*0.9) runes. The loop terminates
// because every step strictly shortens a non-empty string and the empty
// string measures zero. A limit of zero or less yields empty content without
// measuring.
func Fit(content string, limit int, m Measurer) (Fitted, error) {
	if limit <= 0 {
		return Fitted{}, nil
	}

	size, err := m.Measure(content)
	if err != nil {
		return Fitted{}, err
	}
	if size <= limit {
		return Fitted{Content: content, Size: size}, nil
	}

	runes := []rune(content)
	iterations := 0
	for size > limit && len(runes) > 0 {
		keep := len(runes) * shrinkNumerator / shrinkDenominator
		runes = runes[:keep]
		iterations++

		size, err = m.Measure(string(runes))
		if err != nil {
			return Fitted{}, err
		}
	}

	return Fitted{
		Content:    string(runes),
		Size:       size,
		Iterations: iterations,
	}, nil
}
