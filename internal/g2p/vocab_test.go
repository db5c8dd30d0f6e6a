package g2p

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/example/go-piper-tts/internal/phoneme"
)

const sampleVocab = `{
	"<s>": 0, "<pad>": 1, "</s>": 2,
	"h": 3, "e": 4, "l": 5, "o": 6, "w": 7, "r": 8, "d": 9,
	"HH": 10, "EH1": 11, "L": 12, "OW0": 13, "W": 14, "ER1": 15, "D": 16
}`

func writeVocab(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "vocab.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write vocab: %v", err)
	}

	return path
}

func loadSampleVocab(t *testing.T) *Vocab {
	t.Helper()

	v, err := LoadVocab(writeVocab(t, sampleVocab))
	if err != nil {
		t.Fatalf("LoadVocab: %v", err)
	}

	return v
}

func TestLoadVocab(t *testing.T) {
	v := loadSampleVocab(t)

	if v.Len() != 17 {
		t.Errorf("Len = %d; want 17", v.Len())
	}

	if v.BOS() != 0 || v.EOS() != 2 {
		t.Errorf("BOS/EOS = %d/%d; want 0/2", v.BOS(), v.EOS())
	}
}

func TestLoadVocabMissingSpecial(t *testing.T) {
	_, err := LoadVocab(writeVocab(t, `{"<s>": 0, "</s>": 2, "h": 3}`))
	if err == nil {
		t.Fatal("expected error for missing <pad>")
	}
}

func TestLoadVocabInvalidJSON(t *testing.T) {
	if _, err := LoadVocab(writeVocab(t, "{")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestEncode(t *testing.T) {
	v := loadSampleVocab(t)

	ids, err := v.Encode("hello")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []int64{0, 3, 4, 5, 5, 6, 2}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Encode(hello) = %v; want %v", ids, want)
	}
}

func TestEncodeUnknownToken(t *testing.T) {
	v := loadSampleVocab(t)

	_, err := v.Encode("héllo")

	var unknown *UnknownTokenError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v; want UnknownTokenError", err)
	}

	if unknown.Token != "é" {
		t.Errorf("offending token = %q; want é", unknown.Token)
	}
}

func TestDecodeStripsControlTokens(t *testing.T) {
	v := loadSampleVocab(t)

	got := v.Decode([]int64{0, 10, 11, 1, 12, 13, 2})
	want := []phoneme.Token{"HH", "EH1", "L", "OW0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode = %v; want %v", got, want)
	}
}

func TestDecodeUnknownIDBecomesUnk(t *testing.T) {
	v := loadSampleVocab(t)

	got := v.Decode([]int64{99})
	if len(got) != 1 || got[0] != "<unk>" {
		t.Errorf("Decode([99]) = %v; want [<unk>]", got)
	}
}
