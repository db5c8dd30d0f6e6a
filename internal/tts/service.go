package tts

import (
	"context"
	"fmt"

	"github.com/example/go-piper-tts/internal/config"
	"github.com/example/go-piper-tts/internal/g2p"
	"github.com/example/go-piper-tts/internal/onnx"
	"github.com/example/go-piper-tts/internal/phoneme"
	"github.com/example/go-piper-tts/internal/text"
)

// Service is the full text-to-waveform pipeline: normalization, per-word
// G2P, ARPAbet→IPA formatting, and acoustic synthesis. All tables and model
// handles are loaded once at construction and immutable afterward, so one
// Service may serve concurrent requests as long as the underlying ONNX
// runtime supports concurrent Run calls.
type Service struct {
	symbols *phoneme.SymbolMap
	g2p     *g2p.Engine
	engine  *Engine
	params  SynthesisParams

	closers []func()
}

// New assembles a Service from already-loaded parts. Used directly by tests;
// NewService loads everything from configuration.
func New(symbols *phoneme.SymbolMap, g2pEngine *g2p.Engine, acoustic *Engine, params SynthesisParams) *Service {
	return &Service{
		symbols: symbols,
		g2p:     g2pEngine,
		engine:  acoustic,
		params:  params,
	}
}

// NewService loads the symbol map, the G2P vocabulary, the voice config, and
// the three ONNX graphs named in the configuration.
func NewService(cfg config.Config) (*Service, error) {
	info, err := onnx.Bootstrap(cfg.Runtime)
	if err != nil {
		return nil, fmt.Errorf("bootstrap onnx runtime: %w", err)
	}

	symbols, err := phoneme.LoadSymbolMap(cfg.Paths.ArpabetMapPath)
	if err != nil {
		return nil, err
	}

	vocab, err := g2p.LoadVocab(cfg.Paths.G2PVocabPath)
	if err != nil {
		return nil, err
	}

	voiceCfg, err := LoadVoiceConfig(cfg.Paths.ModelConfigPath)
	if err != nil {
		return nil, err
	}

	runnerCfg := onnx.RunnerConfig{LibraryPath: info.LibraryPath}

	var closers []func()
	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}

	encoder, err := onnx.NewRunner("g2p-encoder", cfg.Paths.G2PEncoderPath, runnerCfg)
	if err != nil {
		return nil, err
	}
	closers = append(closers, encoder.Close)

	decoder, err := onnx.NewRunner("g2p-decoder", cfg.Paths.G2PDecoderPath, runnerCfg)
	if err != nil {
		closeAll()
		return nil, err
	}
	closers = append(closers, decoder.Close)

	voice, err := onnx.NewRunner("voice", cfg.Paths.ModelPath, runnerCfg)
	if err != nil {
		closeAll()
		return nil, err
	}
	closers = append(closers, voice.Close)

	svc := New(
		symbols,
		g2p.NewEngine(encoder, decoder, vocab, cfg.Synthesis.MaxDecodeLen),
		NewEngine(voice, voiceCfg),
		SynthesisParams{
			NoiseScale:  cfg.Synthesis.NoiseScale,
			LengthScale: cfg.Synthesis.LengthScale,
			NoiseW:      cfg.Synthesis.NoiseW,
			SpeakerID:   cfg.Synthesis.SpeakerID,
		},
	)
	svc.closers = closers

	return svc, nil
}

// Synthesize runs the whole pipeline with the configured parameters.
func (s *Service) Synthesize(ctx context.Context, input string) (Waveform, error) {
	return s.SynthesizeWithParams(ctx, input, s.params)
}

// SynthesizeWithParams runs the whole pipeline with per-call parameters.
// Every stage error propagates unchanged; no partial waveform is returned.
func (s *Service) SynthesizeWithParams(ctx context.Context, input string, params SynthesisParams) (Waveform, error) {
	formatted, err := s.Phonemize(ctx, input)
	if err != nil {
		return Waveform{}, err
	}

	return s.engine.Synthesize(ctx, formatted, params)
}

// Phonemize runs the text-to-symbol half of the pipeline and returns the
// formatted symbol string handed to the acoustic model.
func (s *Service) Phonemize(ctx context.Context, input string) (string, error) {
	words := text.Normalize(input)

	wordPhonemes := make([][]phoneme.Token, 0, len(words))
	for _, word := range words {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		tokens, err := s.g2p.Infer(ctx, word)
		if err != nil {
			return "", err
		}

		wordPhonemes = append(wordPhonemes, tokens)
	}

	return phoneme.Format(s.symbols, wordPhonemes)
}

// Params returns the configured default synthesis parameters.
func (s *Service) Params() SynthesisParams {
	return s.params
}

// VoiceConfig exposes the loaded voice config (sample rate, language).
func (s *Service) VoiceConfig() VoiceConfig {
	return s.engine.Config()
}

// Close releases the underlying ONNX sessions. Safe to call multiple times.
func (s *Service) Close() {
	for _, fn := range s.closers {
		fn()
	}

	s.closers = nil
}
