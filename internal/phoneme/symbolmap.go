// Package phoneme converts ARPAbet phoneme tokens to IPA glyphs and renders
// the separator-delimited symbol string the acoustic model was trained on.
package phoneme

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Token is a single ARPAbet symbol, optionally suffixed with a stress digit
// (0 = unstressed, 1 = primary, 2 = secondary), e.g. "HH" or "EH1".
type Token string

// ParseError reports a malformed line in the mapping file. Synthesis cannot
// proceed without a valid table, so this is fatal at startup.
type ParseError struct {
	Path string
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("symbol map %s:%d: malformed line %q", e.Path, e.Line, e.Text)
}

// UnknownPhonemeError reports an ARPAbet token with no IPA mapping, even
// after stress fallback. The offending token is kept for diagnosis.
type UnknownPhonemeError struct {
	Token Token
}

func (e *UnknownPhonemeError) Error() string {
	return fmt.Sprintf("unknown phoneme %q", string(e.Token))
}

// SymbolMap maps ARPAbet tokens (including stress-marked variants) to IPA
// glyph sequences. Built once at load, read-only afterward; safe to share
// across concurrent synthesis requests.
type SymbolMap struct {
	ipa map[Token]string
}

// LoadSymbolMap reads a line-oriented ARPAbet→IPA table: one token and its
// IPA equivalent per line, whitespace-delimited. Blank lines and lines
// starting with ';' are skipped.
func LoadSymbolMap(path string) (*SymbolMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open symbol map: %w", err)
	}
	defer func() { _ = f.Close() }()

	m := &SymbolMap{ipa: make(map[Token]string, 128)}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, &ParseError{Path: path, Line: lineNo, Text: line}
		}

		m.ipa[Token(strings.ToUpper(fields[0]))] = fields[1]
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read symbol map: %w", err)
	}

	if len(m.ipa) == 0 {
		return nil, fmt.Errorf("symbol map %s contains no entries", path)
	}

	return m, nil
}

// Lookup resolves a token to its IPA glyphs. The fully stressed form wins;
// if it is absent the trailing stress digit is stripped and the base phoneme
// is tried, so unknown stress markers degrade to the unstressed glyphs.
func (m *SymbolMap) Lookup(tok Token) (string, error) {
	key := Token(strings.ToUpper(string(tok)))
	if ipa, ok := m.ipa[key]; ok {
		return ipa, nil
	}

	if base, ok := stripStress(key); ok {
		if ipa, ok := m.ipa[base]; ok {
			return ipa, nil
		}
	}

	return "", &UnknownPhonemeError{Token: tok}
}

// Len reports the number of loaded entries.
func (m *SymbolMap) Len() int {
	return len(m.ipa)
}

func stripStress(tok Token) (Token, bool) {
	s := string(tok)
	if len(s) < 2 {
		return tok, false
	}

	last := rune(s[len(s)-1])
	if !unicode.IsDigit(last) {
		return tok, false
	}

	return Token(s[:len(s)-1]), true
}
