// Package g2p runs grapheme-to-phoneme inference: one encoder pass and a
// greedy autoregressive decoder loop per word, producing ARPAbet tokens.
package g2p

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/example/go-piper-tts/internal/phoneme"
)

// Special tokens of the mini-BART shared vocabulary.
const (
	bosToken = "<s>"
	eosToken = "</s>"
	padToken = "<pad>"
	unkToken = "<unk>"
)

// UnknownTokenError reports an input character outside the G2P vocabulary.
type UnknownTokenError struct {
	Token string
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("unknown g2p input token %q", e.Token)
}

// Vocab is the G2P model's token table. The model shares one ID space
// between input graphemes and output ARPAbet tokens, so a single JSON object
// of token→ID covers both directions. Immutable after load.
type Vocab struct {
	ids    map[string]int64
	tokens map[int64]string

	bosID int64
	eosID int64
	padID int64
}

// LoadVocab reads a flat JSON token→ID table. The special tokens <s>, </s>
// and <pad> must be present.
func LoadVocab(path string) (*Vocab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read g2p vocab: %w", err)
	}

	var ids map[string]int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode g2p vocab %s: %w", path, err)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("g2p vocab %s is empty", path)
	}

	v := &Vocab{
		ids:    ids,
		tokens: make(map[int64]string, len(ids)),
	}
	for tok, id := range ids {
		v.tokens[id] = tok
	}

	for _, special := range []struct {
		name string
		dst  *int64
	}{
		{bosToken, &v.bosID},
		{eosToken, &v.eosID},
		{padToken, &v.padID},
	} {
		id, ok := ids[special.name]
		if !ok {
			return nil, fmt.Errorf("g2p vocab %s missing special token %q", path, special.name)
		}
		*special.dst = id
	}

	return v, nil
}

// Encode maps a word to model input IDs, wrapped in the BOS/EOS markers the
// encoder was trained with. A character with no vocabulary entry fails with
// UnknownTokenError.
func (v *Vocab) Encode(word string) ([]int64, error) {
	runes := []rune(word)
	ids := make([]int64, 0, len(runes)+2)
	ids = append(ids, v.bosID)
	for _, r := range runes {
		id, ok := v.ids[string(r)]
		if !ok {
			return nil, &UnknownTokenError{Token: string(r)}
		}

		ids = append(ids, id)
	}
	ids = append(ids, v.eosID)

	return ids, nil
}

// Decode maps decoder output IDs back to ARPAbet tokens, stripping the
// control tokens. IDs without a vocabulary entry decode to <unk> rather than
// failing; the symbol map rejects them later with the token attached.
func (v *Vocab) Decode(ids []int64) []phoneme.Token {
	out := make([]phoneme.Token, 0, len(ids))
	for _, id := range ids {
		if id == v.bosID || id == v.eosID || id == v.padID {
			continue
		}

		tok, ok := v.tokens[id]
		if !ok {
			tok = unkToken
		}

		out = append(out, phoneme.Token(tok))
	}

	return out
}

// Len reports the vocabulary size.
func (v *Vocab) Len() int {
	return len(v.ids)
}

// BOS returns the beginning-of-sequence ID.
func (v *Vocab) BOS() int64 { return v.bosID }

// EOS returns the end-of-sequence ID.
func (v *Vocab) EOS() int64 { return v.eosID }
