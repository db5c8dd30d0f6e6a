package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Synthesis SynthesisConfig `mapstructure:"synthesis"`
	Server    ServerConfig    `mapstructure:"server"`
	TTS       TTSConfig       `mapstructure:"tts"`
	LogLevel  string          `mapstructure:"log_level"`
}

type PathsConfig struct {
	G2PEncoderPath  string `mapstructure:"g2p_encoder_path"`
	G2PDecoderPath  string `mapstructure:"g2p_decoder_path"`
	G2PVocabPath    string `mapstructure:"g2p_vocab_path"`
	ArpabetMapPath  string `mapstructure:"arpabet_map_path"`
	ModelPath       string `mapstructure:"model_path"`
	ModelConfigPath string `mapstructure:"model_config_path"`
}

type RuntimeConfig struct {
	Threads        int    `mapstructure:"threads"`
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
}

// SynthesisConfig overrides voice-config hyperparameters. Negative scale
// values mean "use the value from the voice config file".
type SynthesisConfig struct {
	NoiseScale   float64 `mapstructure:"noise_scale"`
	LengthScale  float64 `mapstructure:"length_scale"`
	NoiseW       float64 `mapstructure:"noise_w"`
	SpeakerID    int     `mapstructure:"speaker_id"`
	MaxDecodeLen int     `mapstructure:"max_decode_len"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type TTSConfig struct {
	Backend       string `mapstructure:"backend"`
	PiperCLIPath  string `mapstructure:"piper_cli_path"`
	PiperDataPath string `mapstructure:"piper_data_path"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			G2PEncoderPath:  "models/g2p/encoder_model.onnx",
			G2PDecoderPath:  "models/g2p/decoder_model.onnx",
			G2PVocabPath:    "models/g2p/vocab.json",
			ArpabetMapPath:  "models/arpabet-mapping.txt",
			ModelPath:       "models/voice.onnx",
			ModelConfigPath: "models/voice.onnx.json",
		},
		Runtime: RuntimeConfig{
			Threads:        4,
			ORTLibraryPath: "",
			ORTVersion:     "",
		},
		Synthesis: SynthesisConfig{
			NoiseScale:   -1,
			LengthScale:  -1,
			NoiseW:       -1,
			SpeakerID:    -1,
			MaxDecodeLen: 64,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         2,
			MaxTextBytes:    4096,
			RequestTimeout:  60,
			ShutdownTimeout: 30,
		},
		TTS: TTSConfig{
			Backend:      BackendNative,
			PiperCLIPath: "",
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-g2p-encoder-path", defaults.Paths.G2PEncoderPath, "Path to G2P encoder ONNX model")
	fs.String("paths-g2p-decoder-path", defaults.Paths.G2PDecoderPath, "Path to G2P decoder ONNX model")
	fs.String("paths-g2p-vocab-path", defaults.Paths.G2PVocabPath, "Path to G2P vocabulary JSON")
	fs.String("paths-arpabet-map-path", defaults.Paths.ArpabetMapPath, "Path to ARPAbet-to-IPA mapping file")
	fs.String("paths-model-path", defaults.Paths.ModelPath, "Path to acoustic model ONNX file")
	fs.String("paths-model-config-path", defaults.Paths.ModelConfigPath, "Path to acoustic model .onnx.json config")
	fs.Int("runtime-threads", defaults.Runtime.Threads, "ONNX Runtime intra-op thread count")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.Float64("synthesis-noise-scale", defaults.Synthesis.NoiseScale, "Noise scale override (<0 uses voice config)")
	fs.Float64("synthesis-length-scale", defaults.Synthesis.LengthScale, "Length scale override (<0 uses voice config)")
	fs.Float64("synthesis-noise-w", defaults.Synthesis.NoiseW, "Noise-w override (<0 uses voice config)")
	fs.Int("synthesis-speaker-id", defaults.Synthesis.SpeakerID, "Speaker ID for multi-speaker voices (<0 uses default)")
	fs.Int("synthesis-max-decode-len", defaults.Synthesis.MaxDecodeLen, "Maximum G2P decoder steps per word")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent synthesis requests")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Maximum request text size in bytes")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request synthesis timeout in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period in seconds")
	fs.String("tts-backend", defaults.TTS.Backend, "Synthesis backend (native|piper-cli)")
	fs.String("tts-piper-cli-path", defaults.TTS.PiperCLIPath, "Path to piper executable (piper-cli backend)")
	fs.String("tts-piper-data-path", defaults.TTS.PiperDataPath, "Path to espeak-ng data dir (piper-cli backend)")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("PIPERTTS")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "PIPERTTS_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("pipertts")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.g2p_encoder_path", c.Paths.G2PEncoderPath)
	v.SetDefault("paths.g2p_decoder_path", c.Paths.G2PDecoderPath)
	v.SetDefault("paths.g2p_vocab_path", c.Paths.G2PVocabPath)
	v.SetDefault("paths.arpabet_map_path", c.Paths.ArpabetMapPath)
	v.SetDefault("paths.model_path", c.Paths.ModelPath)
	v.SetDefault("paths.model_config_path", c.Paths.ModelConfigPath)
	v.SetDefault("runtime.threads", c.Runtime.Threads)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("synthesis.noise_scale", c.Synthesis.NoiseScale)
	v.SetDefault("synthesis.length_scale", c.Synthesis.LengthScale)
	v.SetDefault("synthesis.noise_w", c.Synthesis.NoiseW)
	v.SetDefault("synthesis.speaker_id", c.Synthesis.SpeakerID)
	v.SetDefault("synthesis.max_decode_len", c.Synthesis.MaxDecodeLen)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("tts.backend", c.TTS.Backend)
	v.SetDefault("tts.piper_cli_path", c.TTS.PiperCLIPath)
	v.SetDefault("tts.piper_data_path", c.TTS.PiperDataPath)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.g2p_encoder_path", "paths-g2p-encoder-path")
	v.RegisterAlias("paths.g2p_decoder_path", "paths-g2p-decoder-path")
	v.RegisterAlias("paths.g2p_vocab_path", "paths-g2p-vocab-path")
	v.RegisterAlias("paths.arpabet_map_path", "paths-arpabet-map-path")
	v.RegisterAlias("paths.model_path", "paths-model-path")
	v.RegisterAlias("paths.model_config_path", "paths-model-config-path")
	v.RegisterAlias("runtime.threads", "runtime-threads")
	v.RegisterAlias("runtime.ort_library_path", "runtime-ort-library-path")
	v.RegisterAlias("runtime.ort_library_path", "ort-lib")
	v.RegisterAlias("runtime.ort_version", "runtime-ort-version")
	v.RegisterAlias("synthesis.noise_scale", "synthesis-noise-scale")
	v.RegisterAlias("synthesis.length_scale", "synthesis-length-scale")
	v.RegisterAlias("synthesis.noise_w", "synthesis-noise-w")
	v.RegisterAlias("synthesis.speaker_id", "synthesis-speaker-id")
	v.RegisterAlias("synthesis.max_decode_len", "synthesis-max-decode-len")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.workers", "server-workers")
	v.RegisterAlias("server.max_text_bytes", "server-max-text-bytes")
	v.RegisterAlias("server.request_timeout", "server-request-timeout")
	v.RegisterAlias("server.shutdown_timeout", "server-shutdown-timeout")
	v.RegisterAlias("tts.backend", "tts-backend")
	v.RegisterAlias("tts.piper_cli_path", "tts-piper-cli-path")
	v.RegisterAlias("tts.piper_data_path", "tts-piper-data-path")
	v.RegisterAlias("log_level", "log-level")
}
