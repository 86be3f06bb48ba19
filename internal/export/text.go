package export

import (
	"fmt"
	"strings"

	"github.com/akiwumi/typemyaudio/internal/timecode"
	"github.com/akiwumi/typemyaudio/internal/types"
)

const translationDivider = "\n\n--- Translation ---\n\n"

func renderText(doc document) []byte {
	if len(doc.timecoded) > 0 {
		return []byte(strings.Join(doc.timecoded, "\n"))
	}
	out := doc.body
	if doc.translation != "" {
		out += translationDivider + doc.translation
	}
	return []byte(out)
}

// renderSRT numbers segments from 1. Blocks are separated by one blank line.
func renderSRT(segments []types.Segment) []byte {
	blocks := make([]string, 0, len(segments))
	for i, s := range segments {
		blocks = append(blocks, fmt.Sprintf("%d\n%s --> %s\n%s\n",
			i+1, timecode.FormatSRT(s.Start), timecode.FormatSRT(s.End), strings.TrimSpace(s.Text)))
	}
	return []byte(strings.Join(blocks, "\n"))
}
