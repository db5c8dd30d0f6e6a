package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/example/go-piper-tts/internal/config"
	"github.com/example/go-piper-tts/internal/doctor"
	"github.com/example/go-piper-tts/internal/onnx"
	"github.com/example/go-piper-tts/internal/tts"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and model checks",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			backend, err := config.NormalizeBackend(cfg.TTS.Backend)
			if err != nil {
				return err
			}

			nativeMode := backend == config.BackendNative
			_, _ = fmt.Fprintf(os.Stdout, "backend: %s\n", backend)

			dcfg := doctor.Config{
				SkipORT:   !nativeMode,
				SkipPiper: nativeMode,
				PiperVersion: func() (string, error) {
					return probePiperVersion(cfg.TTS.PiperCLIPath)
				},
				ModelFiles: collectModelFiles(cfg, nativeMode),
			}

			if nativeMode {
				info, detectErr := onnx.DetectRuntime(cfg.Runtime)
				if detectErr != nil {
					dcfg.ORTDetectErr = detectErr
				} else {
					dcfg.ORTLibraryPath = info.LibraryPath
				}
			}

			voiceCfg, voiceErr := tts.LoadVoiceConfig(cfg.Paths.ModelConfigPath)
			if voiceErr != nil {
				dcfg.VoiceLoadErr = voiceErr
			} else {
				dcfg.Voice = &doctor.VoiceSummary{
					SampleRate:  voiceCfg.Audio.SampleRate,
					NumSpeakers: voiceCfg.NumSpeakers,
					Language:    voiceCfg.Language.Code,
				}
			}

			result := doctor.Run(dcfg, os.Stdout)

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(os.Stdout, "doctor checks passed")

			return nil
		},
	}

	return cmd
}

// collectModelFiles lists the on-disk assets the selected backend needs.
func collectModelFiles(cfg config.Config, nativeMode bool) []doctor.ModelFile {
	files := []doctor.ModelFile{
		{Label: "acoustic model", Path: cfg.Paths.ModelPath},
		{Label: "voice config", Path: cfg.Paths.ModelConfigPath},
	}
	if nativeMode {
		files = append(files,
			doctor.ModelFile{Label: "g2p encoder", Path: cfg.Paths.G2PEncoderPath},
			doctor.ModelFile{Label: "g2p decoder", Path: cfg.Paths.G2PDecoderPath},
			doctor.ModelFile{Label: "g2p vocabulary", Path: cfg.Paths.G2PVocabPath},
			doctor.ModelFile{Label: "phoneme mapping", Path: cfg.Paths.ArpabetMapPath},
		)
	}
	return files
}

// probePiperVersion runs `piper --version` and returns its output.
func probePiperVersion(exe string) (string, error) {
	if exe == "" {
		exe = "piper"
	}

	out, err := exec.CommandContext(context.Background(), exe, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s --version failed: %w", exe, err)
	}

	return strings.TrimSpace(string(out)), nil
}
