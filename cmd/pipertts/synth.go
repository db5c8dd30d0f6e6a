package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/example/go-piper-tts/internal/audio"
	"github.com/example/go-piper-tts/internal/config"
	"github.com/example/go-piper-tts/internal/tts"
	"github.com/spf13/cobra"
)

func newSynthCmd() *cobra.Command {
	var text string
	var out string
	var backend string
	var phonemesOnly bool

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize text to WAV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			selectedBackend, err := resolveSynthBackend(backend, cfg.TTS.Backend)
			if err != nil {
				return err
			}
			inputText, err := readSynthText(text, os.Stdin)
			if err != nil {
				return err
			}

			if phonemesOnly {
				return printPhonemes(cmd.Context(), cfg, inputText, os.Stdout)
			}

			var result []byte
			switch selectedBackend {
			case config.BackendNative:
				result, err = synthesizeNative(cmd.Context(), cfg, inputText)
			case config.BackendPiperCLI:
				result, err = synthesizeViaCLI(cmd.Context(), cliOptions{
					ExecutablePath: cfg.TTS.PiperCLIPath,
					ModelPath:      cfg.Paths.ModelPath,
					DataPath:       cfg.TTS.PiperDataPath,
					SpeakerID:      cfg.Synthesis.SpeakerID,
					Text:           inputText,
					Stderr:         os.Stderr,
				})
			default:
				return fmt.Errorf("unsupported backend %q", selectedBackend)
			}
			if err != nil {
				return mapSynthError(err)
			}

			return writeSynthOutput(out, result, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to synthesize (if empty, read from stdin)")
	cmd.Flags().StringVar(&out, "out", "out.wav", "Output WAV path ('-' for stdout)")
	cmd.Flags().StringVar(&backend, "backend", "", "Synthesis backend override (native|piper-cli)")
	cmd.Flags().BoolVar(&phonemesOnly, "phonemes", false, "Print the formatted phoneme string instead of audio")

	return cmd
}

type cliOptions struct {
	ExecutablePath string
	ModelPath      string
	DataPath       string
	SpeakerID      int
	Text           string
	Stderr         io.Writer
}

func synthesizeViaCLI(ctx context.Context, opts cliOptions) ([]byte, error) {
	exe := opts.ExecutablePath
	if exe == "" {
		exe = "piper"
	}
	if strings.TrimSpace(opts.Text) == "" {
		return nil, fmt.Errorf("synth failed: empty input text")
	}

	args := []string{"--model", opts.ModelPath, "--output_file", "-"}
	if opts.SpeakerID >= 0 {
		args = append(args, "--speaker", strconv.Itoa(opts.SpeakerID))
	}
	if opts.DataPath != "" {
		args = append(args, "--data-dir", opts.DataPath)
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdin = strings.NewReader(opts.Text)
	if opts.Stderr != nil {
		cmd.Stderr = opts.Stderr
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func synthesizeNative(ctx context.Context, cfg config.Config, inputText string) ([]byte, error) {
	svc, err := tts.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize native synth service: %w", err)
	}
	defer svc.Close()

	wave, err := svc.Synthesize(ctx, inputText)
	if err != nil {
		return nil, err
	}
	if len(wave.Samples) == 0 {
		return nil, fmt.Errorf("native synthesis produced no samples")
	}

	wavData, err := audio.EncodeWAV(wave.Samples, wave.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("encode native synthesis WAV: %w", err)
	}
	return wavData, nil
}

// printPhonemes writes the formatted phoneme string for the input and stops
// before the acoustic stage.
func printPhonemes(ctx context.Context, cfg config.Config, inputText string, w io.Writer) error {
	svc, err := tts.NewService(cfg)
	if err != nil {
		return fmt.Errorf("initialize native synth service: %w", err)
	}
	defer svc.Close()

	formatted, err := svc.Phonemize(ctx, inputText)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, formatted)
	return err
}

func writeSynthOutput(outPath string, wavData []byte, stdout io.Writer) error {
	if outPath == "-" {
		if stdout == nil {
			return fmt.Errorf("stdout writer is nil")
		}
		_, err := stdout.Write(wavData)
		return err
	}
	return os.WriteFile(outPath, wavData, 0o644)
}

func readSynthText(text string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := strings.TrimSpace(string(b))
	if input == "" {
		return "", fmt.Errorf("either provide --text or pipe text on stdin")
	}
	return input, nil
}

func resolveSynthBackend(flagBackend, cfgBackend string) (string, error) {
	backend := strings.TrimSpace(flagBackend)
	if backend == "" {
		backend = strings.TrimSpace(cfgBackend)
	}
	return config.NormalizeBackend(backend)
}

func mapSynthError(err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("synth failed: piper executable not found; set --tts-piper-cli-path or PIPERTTS_TTS_PIPER_CLI_PATH: %w", err)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("synth failed: piper returned non-zero exit; check stderr details above: %w", err)
	}

	return err
}
