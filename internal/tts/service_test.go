package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-piper-tts/internal/g2p"
	"github.com/example/go-piper-tts/internal/onnx"
	"github.com/example/go-piper-tts/internal/phoneme"
)

const (
	testVocab = `{
		"<s>": 0, "<pad>": 1, "</s>": 2,
		"h": 3, "e": 4, "l": 5, "o": 6, "w": 7, "r": 8, "d": 9,
		"HH": 10, "EH1": 11, "L": 12, "OW0": 13, "W": 14, "ER1": 15, "D": 16,
		"ZH1": 17
	}`
	testVocabSize = 18

	testSymbolMap = `HH h
EH1 ˈɛ
L l
OW0 oʊ
W w
ER1 ˈɜː
D d
`
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}

	return path
}

// testEncoder mimics the G2P encoder graph shape contract.
func testEncoder() *fakeGraph {
	return &fakeGraph{run: func(_ context.Context, inputs map[string]*onnx.Tensor) (map[string]*onnx.Tensor, error) {
		ids, ok := inputs["input_ids"]
		if !ok {
			return nil, errors.New("missing input_ids")
		}

		seqLen := ids.Shape()[1]
		hidden, err := onnx.NewTensor(make([]float32, seqLen*4), []int64{1, seqLen, 4})
		if err != nil {
			return nil, err
		}

		return map[string]*onnx.Tensor{"last_hidden_state": hidden}, nil
	}}
}

// wordDecoder plays one script per word. A fresh word is detected when the
// decoder input shrinks back to the lone start token.
func wordDecoder(scripts ...[]int64) *fakeGraph {
	word := -1

	return &fakeGraph{run: func(_ context.Context, inputs map[string]*onnx.Tensor) (map[string]*onnx.Tensor, error) {
		ids, ok := inputs["input_ids"]
		if !ok {
			return nil, errors.New("missing input_ids")
		}

		step := int(ids.Shape()[1])
		if step == 1 {
			word++
		}

		if word >= len(scripts) {
			return nil, errors.New("decoder called for more words than scripted")
		}

		script := scripts[word]
		logits := make([]float32, step*testVocabSize)
		for pos := 0; pos < step; pos++ {
			idx := pos
			if idx >= len(script) {
				idx = len(script) - 1
			}

			logits[pos*testVocabSize+int(script[idx])] = 1
		}

		tensor, err := onnx.NewTensor(logits, []int64{1, int64(step), testVocabSize})
		if err != nil {
			return nil, err
		}

		return map[string]*onnx.Tensor{"logits": tensor}, nil
	}}
}

func newTestService(t *testing.T, decoder *fakeGraph, voiceGraph onnx.Graph) *Service {
	t.Helper()

	symbols, err := phoneme.LoadSymbolMap(writeTempFile(t, "arpabet.txt", testSymbolMap))
	if err != nil {
		t.Fatalf("LoadSymbolMap: %v", err)
	}

	vocab, err := g2p.LoadVocab(writeTempFile(t, "vocab.json", testVocab))
	if err != nil {
		t.Fatalf("LoadVocab: %v", err)
	}

	return New(
		symbols,
		g2p.NewEngine(testEncoder(), decoder, vocab, 0),
		NewEngine(voiceGraph, loadSampleVoiceConfig(t)),
		DefaultParams(),
	)
}

func helloWorldDecoder() *fakeGraph {
	return wordDecoder(
		[]int64{10, 11, 12, 13, 2}, // hello → HH EH1 L OW0
		[]int64{14, 15, 12, 16, 2}, // world → W ER1 L D
	)
}

func TestServicePhonemizeHelloWorld(t *testing.T) {
	svc := newTestService(t, helloWorldDecoder(), fakeVoiceGraph(t, 64))

	got, err := svc.Phonemize(context.Background(), "Hello world")
	if err != nil {
		t.Fatalf("Phonemize: %v", err)
	}

	const want = "^_h_ˈ_ɛ_l_o_ʊ_ _w_ˈ_ɜ_ː_l_d_$"
	if got != want {
		t.Errorf("Phonemize = %q; want %q", got, want)
	}
}

func TestServiceSynthesizeEndToEnd(t *testing.T) {
	svc := newTestService(t, helloWorldDecoder(), fakeVoiceGraph(t, 64))

	wave, err := svc.Synthesize(context.Background(), "Hello world")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if len(wave.Samples) == 0 {
		t.Error("no samples produced")
	}

	if wave.SampleRate != 22050 {
		t.Errorf("SampleRate = %d; want 22050", wave.SampleRate)
	}
}

func TestServiceEmptyInput(t *testing.T) {
	svc := newTestService(t, wordDecoder(), fakeVoiceGraph(t, 64))

	got, err := svc.Phonemize(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Phonemize: %v", err)
	}

	if got != "^_$" {
		t.Errorf("Phonemize(empty) = %q; want ^_$", got)
	}
}

func TestServiceUnknownPhonemeAborts(t *testing.T) {
	// The decoder emits ZH1, which the symbol map does not contain —
	// simulates a corrupted decoder output.
	voiceGraph := fakeVoiceGraph(t, 64)
	svc := newTestService(t, wordDecoder([]int64{17, 2}), voiceGraph)

	wave, err := svc.Synthesize(context.Background(), "hello")

	var unknown *phoneme.UnknownPhonemeError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v; want UnknownPhonemeError", err)
	}

	if unknown.Token != "ZH1" {
		t.Errorf("offending token = %q; want ZH1", unknown.Token)
	}

	if wave.Samples != nil {
		t.Error("partial waveform returned on failure")
	}

	if voiceGraph.calls != 0 {
		t.Error("acoustic model invoked despite phonemization failure")
	}
}

func TestServiceInferenceFailurePropagates(t *testing.T) {
	dec := &fakeGraph{run: func(context.Context, map[string]*onnx.Tensor) (map[string]*onnx.Tensor, error) {
		return nil, errors.New("runtime panic")
	}}

	svc := newTestService(t, dec, fakeVoiceGraph(t, 64))

	_, err := svc.Synthesize(context.Background(), "hello")
	if !errors.Is(err, g2p.ErrInference) {
		t.Fatalf("error = %v; want g2p.ErrInference", err)
	}
}

func TestServiceCancelledContext(t *testing.T) {
	svc := newTestService(t, helloWorldDecoder(), fakeVoiceGraph(t, 64))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Synthesize(ctx, "hello world"); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v; want context.Canceled", err)
	}
}
