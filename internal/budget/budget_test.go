package budget

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pairEncoder emits one token per two runes, rounding up.
type pairEncoder struct{}

func (pairEncoder) Encode(text string, _ []string, _ []string) []int {
	n := utf8.RuneCountInString(text)
	return make([]int, (n+1)/2)
}

// recordingMeasurer records the rune length of every string it measures.
type recordingMeasurer struct {
	Measurer
	lengths []int
}

func (r *recordingMeasurer) Measure(text string) (int, error) {
	r.lengths = append(r.lengths, utf8.RuneCountInString(text))
	return r.Measurer.Measure(text)
}

type failingMeasurer struct{}

func (failingMeasurer) Metric() Metric { return MetricTokens }
func (failingMeasurer) Measure(string) (int, error) {
	return 0, fmt.Errorf("encoder unavailable")
}

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in      string
		want    Metric
		wantErr bool
	}{
		{"chars", MetricChars, false},
		{"TOKENS", MetricTokens, false},
		{"  tokens ", MetricTokens, false},
		{"bytes", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMetric(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestChars_CountsRunes(t *testing.T) {
	n, err := Chars{}.Measure("héllo, 世界")
	require.NoError(t, err)
	assert.Equal(t, 9, n)
}

func TestTokens_UsesEncoder(t *testing.T) {
	m := NewTokens(pairEncoder{})
	n, err := m.Measure("abcde")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, MetricTokens, m.Metric())
}

func TestTokens_NilEncoder(t *testing.T) {
	_, err := (&Tokens{}).Measure("x")
	require.Error(t, err)
}

func TestNewMeasurer_Chars(t *testing.T) {
	m, err := NewMeasurer(MetricChars, "")
	require.NoError(t, err)
	assert.Equal(t, MetricChars, m.Metric())
}

func TestNewMeasurer_Unknown(t *testing.T) {
	_, err := NewMeasurer("bytes", "")
	require.Error(t, err)
}

func TestFit_ExampleCharsLimit(t *testing.T) {
	assembled := "P:" + strings.Repeat("X", 100)
	require.Equal(t, 102, utf8.RuneCountInString(assembled))

	got, err := Fit(assembled, 50, Chars{})
	require.NoError(t, err)

	assert.LessOrEqual(t, utf8.RuneCountInString(got.Content), 50)
	assert.True(t, strings.HasPrefix(assembled, got.Content), "result must be a prefix of the input")
	// 102 -> 91 -> 81 -> 72 -> 64 -> 57 -> 51 -> 45
	assert.Equal(t, 7, got.Iterations)
	assert.Equal(t, 45, got.Size)
}

func TestFit_UnderBudgetUnchanged(t *testing.T) {
	rec := &recordingMeasurer{Measurer: Chars{}}
	got, err := Fit("short text", 100, rec)
	require.NoError(t, err)

	assert.Equal(t, "short text", got.Content)
	assert.Equal(t, 0, got.Iterations)
	assert.Equal(t, 10, got.Size)
	assert.Len(t, rec.lengths, 1)
}

func TestFit_ExactlyAtBudget(t *testing.T) {
	got, err := Fit(strings.Repeat("a", 40), 40, Chars{})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Iterations)
	assert.Equal(t, 40, got.Size)
}

func TestFit_MonotonicShrink(t *testing.T) {
	rec := &recordingMeasurer{Measurer: NewTokens(pairEncoder{})}
	_, err := Fit(strings.Repeat("word ", 500), 37, rec)
	require.NoError(t, err)

	require.Greater(t, len(rec.lengths), 2)
	for i := 1; i < len(rec.lengths); i++ {
		assert.Less(t, rec.lengths[i], rec.lengths[i-1], "iteration %d did not shrink", i)
	}
}

func TestFit_InvariantAcrossLimits(t *testing.T) {
	inputs := []string{
		"",
		"x",
		strings.Repeat("ab", 10),
		strings.Repeat("日本語テキスト", 300),
		strings.Repeat("The quick brown fox. ", 1000),
	}
	measurers := []Measurer{Chars{}, NewTokens(pairEncoder{})}

	for _, m := range measurers {
		for _, in := range inputs {
			for _, limit := range []int{1, 2, 7, 50, 999, 100000} {
				name := fmt.Sprintf("%s/len=%d/limit=%d", m.Metric(), len(in), limit)
				t.Run(name, func(t *testing.T) {
					got, err := Fit(in, limit, m)
					require.NoError(t, err)

					size, err := m.Measure(got.Content)
					require.NoError(t, err)
					assert.LessOrEqual(t, size, limit)
					assert.Equal(t, size, got.Size)
					assert.True(t, strings.HasPrefix(in, got.Content))
					assert.True(t, utf8.ValidString(got.Content))
				})
			}
		}
	}
}

func TestFit_ZeroAndNegativeLimit(t *testing.T) {
	for _, limit := range []int{0, -1, -1000} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			got, err := Fit(strings.Repeat("z", 64), limit, failingMeasurer{})
			require.NoError(t, err, "measurer must not be consulted for non-positive limits")
			assert.Empty(t, got.Content)
			assert.Equal(t, 0, got.Size)
		})
	}
}

func TestFit_MeasureError(t *testing.T) {
	_, err := Fit("anything", 10, failingMeasurer{})
	require.Error(t, err)
}

func TestFit_EmptyInput(t *testing.T) {
	got, err := Fit("", 5, Chars{})
	require.NoError(t, err)
	assert.Empty(t, got.Content)
	assert.Equal(t, 0, got.Iterations)
}

func TestLimit_String(t *testing.T) {
	assert.Equal(t, "28000 tokens", Limit{Kind: MetricTokens, Value: 28000}.String())
}

func TestLoadTokens_EmbeddedEncoding(t *testing.T) {
	// An empty cache dir forces the vocabulary to come from the embedded loader.
	t.Setenv("TIKTOKEN_CACHE_DIR", t.TempDir())

	m, err := NewMeasurer(MetricTokens, "")
	require.NoError(t, err)
	assert.Equal(t, MetricTokens, m.Metric())

	n, err := m.Measure("hello world")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = m.Measure("")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadTokens_Cached(t *testing.T) {
	first, err := LoadTokens(DefaultEncoding)
	require.NoError(t, err)
	second, err := LoadTokens("")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestLoadTokens_UnknownEncoding(t *testing.T) {
	_, err := LoadTokens("no_such_encoding")
	require.Error(t, err)
}

func TestFit_RealTokens(t *testing.T) {
	m, err := LoadTokens(DefaultEncoding)
	require.NoError(t, err)

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)
	got, err := Fit(text, 100, m)
	require.NoError(t, err)
	assert.LessOrEqual(t, got.Size, 100)
	assert.True(t, strings.HasPrefix(text, got.Content))
	assert.Positive(t, got.Iterations)
}
