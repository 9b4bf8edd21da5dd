package delivery

import (
	"strings"
	"unicode"
	"unicode/utf16"
)

const (
	// MessageLimit is the longest text message Telegram accepts.
	MessageLimit = 4096
	// CaptionLimit is the longest media caption Telegram accepts.
	CaptionLimit = 1024
)

// Units measures s the way Telegram does: in UTF-16 code units.
func Units(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

func runeUnits(r rune) int {
	if w := utf16.RuneLen(r); w > 0 {
		return w
	}
	return 1
}

// Chunk splits text into pieces of at most limit units. Pieces break at the
// last whitespace that fits; a single word longer than limit is cut hard.
func Chunk(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 {
		return nil
	}
	runes := []rune(text)
	var out []string
	for len(runes) > 0 {
		units, cut := 0, 0
		for cut < len(runes) {
			w := runeUnits(runes[cut])
			if units+w > limit {
				break
			}
			units += w
			cut++
		}
		if cut == len(runes) {
			out = append(out, string(runes))
			break
		}
		split := cut
		for i := cut; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				split = i
				break
			}
		}
		if split == 0 {
			split = 1
		}
		out = append(out, strings.TrimRightFunc(string(runes[:split]), unicode.IsSpace))
		runes = trimLeftSpace(runes[split:])
	}
	return out
}

func trimLeftSpace(r []rune) []rune {
	i := 0
	for i < len(r) && unicode.IsSpace(r[i]) {
		i++
	}
	return r[i:]
}
