package phoneme

import "strings"

// Formatting convention of the Piper training data. The whole sentence is
// wrapped in the boundary markers and every glyph is separated by the
// separator: "hello world" renders as ^_h_ˈ_ɛ_l_o_ʊ_ _w_ˈ_ɜ_ː_l_d_$.
const (
	StartMarker = "^"
	EndMarker   = "$"
	Separator   = "_"
	WordGlyph   = " "
)

// Format maps each word's ARPAbet tokens through the symbol map and
// serializes the sentence into the separator-delimited boundary-marked
// string the acoustic model expects. Words are joined by a single space
// glyph. Any token without a mapping fails the whole call; a partial string
// would mispronounce silently downstream.
//
// An empty phoneme sequence yields exactly "^_$".
func Format(m *SymbolMap, words [][]Token) (string, error) {
	var ipa strings.Builder
	for i, word := range words {
		if i > 0 {
			ipa.WriteString(WordGlyph)
		}

		for _, tok := range word {
			glyphs, err := m.Lookup(tok)
			if err != nil {
				return "", err
			}

			ipa.WriteString(glyphs)
		}
	}

	runes := []rune(ipa.String())
	parts := make([]string, 0, len(runes)+2)
	parts = append(parts, StartMarker)
	for _, r := range runes {
		parts = append(parts, string(r))
	}
	parts = append(parts, EndMarker)

	return strings.Join(parts, Separator), nil
}
