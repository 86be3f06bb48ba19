package timecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akiwumi/typemyaudio/internal/types"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seconds float64
		dot     string
		comma   string
	}{
		{seconds: 0, dot: "00:00:00.000", comma: "00:00:00,000"},
		{seconds: 1.5, dot: "00:00:01.500", comma: "00:00:01,500"},
		{seconds: 3725.042, dot: "01:02:05.042", comma: "01:02:05,042"},
		{seconds: 59.9996, dot: "00:01:00.000", comma: "00:01:00,000"},
		{seconds: -2, dot: "00:00:00.000", comma: "00:00:00,000"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.dot, FormatTime(tc.seconds))
		assert.Equal(t, tc.comma, FormatSRT(tc.seconds))
	}
}

func words(tokens ...string) []types.Word {
	out := make([]types.Word, len(tokens))
	for i, tok := range tokens {
		out[i] = types.Word{Word: tok, Start: float64(i), End: float64(i) + 0.5}
	}
	return out
}

func TestMapSentencesCoversEveryWordInOrder(t *testing.T) {
	ws := words("Hello", "there.", "How", "are", "you", "today?")
	got := MapSentences(ws, []string{"Hello there.", "How are you today?"})

	require.Len(t, got, 2)
	assert.Equal(t, types.SentenceTimecode{Sentence: "Hello there.", Start: 0, End: 1.5, StartFmt: "00:00:00.000", EndFmt: "00:00:01.500"}, got[0])
	assert.Equal(t, 2.0, got[1].Start)
	assert.Equal(t, 5.5, got[1].End)

	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].End, got[i].Start)
	}
	assert.Equal(t, ws[0].Start, got[0].Start)
	assert.Equal(t, ws[len(ws)-1].End, got[len(got)-1].End)
}

func TestMapSentencesClampsOverflow(t *testing.T) {
	ws := words("one", "two", "three")
	got := MapSentences(ws, []string{"one two", "three four five", "six"})

	require.Len(t, got, 3)
	assert.Equal(t, 2.0, got[1].Start)
	assert.Equal(t, 2.5, got[1].End)
	assert.Equal(t, 2.0, got[2].Start)
	assert.Equal(t, 2.5, got[2].End)
	for _, s := range got {
		assert.LessOrEqual(t, s.Start, s.End)
	}
}

func TestMapSentencesSkipsBlankAndHandlesNoWords(t *testing.T) {
	assert.Nil(t, MapSentences(nil, []string{"anything"}))

	got := MapSentences(words("a", "b"), []string{"  ", "a b"})
	require.Len(t, got, 1)
	assert.Equal(t, "a b", got[0].Sentence)
}

func TestTranscript(t *testing.T) {
	assert.Equal(t, "Hello there.", Transcript([]types.Word{{Word: " Hello"}, {Word: "there."}}))
}
