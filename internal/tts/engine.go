// Package tts tokenizes the formatted symbol string against the acoustic
// model's vocabulary, runs one forward pass, and wires the whole
// text-to-waveform pipeline together.
package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-piper-tts/internal/onnx"
)

// ErrSynthesis marks a failed acoustic-model invocation. Not retried;
// identical inputs produce identical failures.
var ErrSynthesis = errors.New("synthesis failure")

// UnknownSymbolError reports a formatted-string character missing from the
// acoustic model's phoneme_id_map.
type UnknownSymbolError struct {
	Symbol string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown acoustic symbol %q", e.Symbol)
}

// Waveform is the synthesized audio: flat float32 samples plus the declared
// sample rate from the voice config.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration reports the waveform length in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate < 1 {
		return 0
	}

	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// SynthesisParams are the per-call hyperparameters. Negative values fall
// back to the voice config.
type SynthesisParams struct {
	NoiseScale  float64
	LengthScale float64
	NoiseW      float64
	SpeakerID   int
}

// DefaultParams uses the voice config for every hyperparameter.
func DefaultParams() SynthesisParams {
	return SynthesisParams{NoiseScale: -1, LengthScale: -1, NoiseW: -1, SpeakerID: -1}
}

// Engine runs the acoustic model: symbol tokenization plus one forward pass.
type Engine struct {
	graph onnx.Graph
	cfg   VoiceConfig
}

// NewEngine wires a voice graph to its config.
func NewEngine(graph onnx.Graph, cfg VoiceConfig) *Engine {
	return &Engine{graph: graph, cfg: cfg}
}

// Config returns the loaded voice config.
func (e *Engine) Config() VoiceConfig {
	return e.cfg
}

// Tokenize maps every character of the formatted symbol string to acoustic
// model IDs. Every boundary marker, separator, stress mark, and glyph must
// have an entry; a miss fails the whole call with UnknownSymbolError.
func (e *Engine) Tokenize(formatted string) ([]int64, error) {
	ids := make([]int64, 0, len(formatted)*2)
	for _, r := range formatted {
		mapped, ok := e.cfg.PhonemeIDMap[string(r)]
		if !ok {
			return nil, &UnknownSymbolError{Symbol: string(r)}
		}

		ids = append(ids, mapped...)
	}

	return ids, nil
}

// Synthesize tokenizes the formatted string and runs a single forward pass.
// The sample rate of the result comes from the voice config, never from the
// model output.
func (e *Engine) Synthesize(ctx context.Context, formatted string, params SynthesisParams) (Waveform, error) {
	ids, err := e.Tokenize(formatted)
	if err != nil {
		return Waveform{}, err
	}

	if len(ids) == 0 {
		return Waveform{}, fmt.Errorf("%w: tokenization produced no IDs", ErrSynthesis)
	}

	seqLen := int64(len(ids))

	inputTensor, err := onnx.NewTensor(ids, []int64{1, seqLen})
	if err != nil {
		return Waveform{}, fmt.Errorf("build input tensor: %w", err)
	}

	lengthTensor, err := onnx.NewTensor([]int64{seqLen}, []int64{1})
	if err != nil {
		return Waveform{}, fmt.Errorf("build input_lengths tensor: %w", err)
	}

	scalesTensor, err := onnx.NewTensor(e.resolveScales(params), []int64{3})
	if err != nil {
		return Waveform{}, fmt.Errorf("build scales tensor: %w", err)
	}

	inputs := map[string]*onnx.Tensor{
		"input":         inputTensor,
		"input_lengths": lengthTensor,
		"scales":        scalesTensor,
	}

	// Multi-speaker voices take an extra sid tensor; single-speaker graphs
	// are exported without that input.
	if e.cfg.NumSpeakers > 1 {
		sid := int64(0)
		if params.SpeakerID >= 0 {
			sid = int64(params.SpeakerID)
		}

		sidTensor, err := onnx.NewTensor([]int64{sid}, []int64{1})
		if err != nil {
			return Waveform{}, fmt.Errorf("build sid tensor: %w", err)
		}

		inputs["sid"] = sidTensor
	}

	outputs, err := e.graph.Run(ctx, inputs)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}

	outTensor, ok := outputs["output"]
	if !ok {
		return Waveform{}, fmt.Errorf("%w: model returned no output tensor", ErrSynthesis)
	}

	samples, err := onnx.ExtractFloat32(outTensor)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}

	if len(samples) == 0 {
		return Waveform{}, fmt.Errorf("%w: model produced no samples", ErrSynthesis)
	}

	return Waveform{Samples: samples, SampleRate: e.cfg.Audio.SampleRate}, nil
}

// resolveScales applies per-call overrides over the voice config defaults,
// in the tensor order the model expects: noise, length, noise-w.
func (e *Engine) resolveScales(params SynthesisParams) []float32 {
	scales := []float32{
		e.cfg.Inference.NoiseScale,
		e.cfg.Inference.LengthScale,
		e.cfg.Inference.NoiseW,
	}

	if params.NoiseScale >= 0 {
		scales[0] = float32(params.NoiseScale)
	}
	if params.LengthScale >= 0 {
		scales[1] = float32(params.LengthScale)
	}
	if params.NoiseW >= 0 {
		scales[2] = float32(params.NoiseW)
	}

	return scales
}
