package tts

import (
	"encoding/json"
	"fmt"
	"os"
)

// VoiceConfig mirrors the Piper voice .onnx.json sidecar file. The declared
// sample rate is authoritative for the produced waveform; the model output
// carries no rate of its own.
type VoiceConfig struct {
	Audio struct {
		SampleRate int    `json:"sample_rate"`
		Quality    string `json:"quality"`
	} `json:"audio"`
	Inference struct {
		NoiseScale  float32 `json:"noise_scale"`
		LengthScale float32 `json:"length_scale"`
		NoiseW      float32 `json:"noise_w"`
	} `json:"inference"`
	Language struct {
		Code        string `json:"code"`
		NameEnglish string `json:"name_english"`
	} `json:"language"`
	NumSymbols   int                `json:"num_symbols"`
	NumSpeakers  int                `json:"num_speakers"`
	PhonemeIDMap map[string][]int64 `json:"phoneme_id_map"`
}

// LoadVoiceConfig reads and validates a Piper voice config file.
func LoadVoiceConfig(path string) (VoiceConfig, error) {
	var cfg VoiceConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read voice config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode voice config %s: %w", path, err)
	}

	if cfg.Audio.SampleRate < 1 {
		return cfg, fmt.Errorf("voice config %s: sample_rate %d is not a positive integer", path, cfg.Audio.SampleRate)
	}

	if len(cfg.PhonemeIDMap) == 0 {
		return cfg, fmt.Errorf("voice config %s: phoneme_id_map is empty", path)
	}

	return cfg, nil
}
