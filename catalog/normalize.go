/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package catalog

import (
	"strings"
)

var glyphs = strings.NewReplacer("♀", "f", "♂", "m")

// Normalize maps raw input to the key used for matching guesses against
// entry names. The result only contains [a-z0-9] and may be empty.
//
// Keys are persisted by legacy records, so the mapping must never change.
// Anything outside ASCII other than the two glyphs is dropped, including
// full-width letters and superscript digits.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	s := strings.ToLower(glyphs.Replace(raw))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	return b.String()
}
