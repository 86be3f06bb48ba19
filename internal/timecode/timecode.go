// Package timecode formats media offsets and maps sentences back onto word timestamps.
package timecode

import (
	"fmt"
	"math"
	"strings"

	"github.com/akiwumi/typemyaudio/internal/types"
)

func split(seconds float64) (h, m, s, ms int64) {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	ms = total % 1000
	total /= 1000
	return total / 3600, (total % 3600) / 60, total % 60, ms
}

// FormatTime renders seconds as HH:MM:SS.mmm.
func FormatTime(seconds float64) string {
	h, m, s, ms := split(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// FormatSRT renders seconds as HH:MM:SS,mmm.
func FormatSRT(seconds float64) string {
	h, m, s, ms := split(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// Transcript joins word tokens the way the sentence splitter receives them.
func Transcript(words []types.Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, strings.TrimSpace(w.Word))
	}
	return strings.Join(parts, " ")
}

// MapSentences walks a cursor across words, consuming as many words per sentence as the
// sentence has whitespace-separated tokens. Start and end indices are clamped to the last
// word, so sentences beyond the word list reuse the final timestamp. Returns nil when
// there are no words.
func MapSentences(words []types.Word, sentences []string) []types.SentenceTimecode {
	if len(words) == 0 {
		return nil
	}

	last := len(words) - 1
	out := make([]types.SentenceTimecode, 0, len(sentences))
	cursor := 0
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		n := len(strings.Fields(sentence))
		if n == 0 {
			continue
		}

		start := min(cursor, last)
		end := min(cursor+n-1, last)
		cursor += n

		out = append(out, types.SentenceTimecode{
			Sentence: sentence,
			Start:    words[start].Start,
			End:      words[end].End,
			StartFmt: FormatTime(words[start].Start),
			EndFmt:   FormatTime(words[end].End),
		})
	}
	return out
}
