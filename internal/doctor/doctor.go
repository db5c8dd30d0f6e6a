// Package doctor provides environment preflight checks for pipertts.
package doctor

import (
	"fmt"
	"io"
	"os"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// ModelFile names one on-disk asset the pipeline needs.
type ModelFile struct {
	Label string
	Path  string
}

// VoiceSummary describes the loaded voice config for the report.
type VoiceSummary struct {
	SampleRate  int
	NumSpeakers int
	Language    string
}

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// ORTLibraryPath is the resolved ONNX Runtime shared library path
	// (empty means discovery failed).
	ORTLibraryPath string
	// ORTDetectErr is the discovery error when ORTLibraryPath is empty.
	ORTDetectErr error
	// SkipORT skips the ONNX Runtime check (piper-cli backend mode).
	SkipORT bool
	// PiperVersion returns the output of `piper --version`.
	PiperVersion VersionFunc
	// SkipPiper skips the piper binary check (native backend mode).
	SkipPiper bool
	// ModelFiles is the list of model assets to verify on disk.
	ModelFiles []ModelFile
	// Voice is the loaded voice config summary, nil when loading failed.
	Voice *VoiceSummary
	// VoiceLoadErr is the voice config load error when Voice is nil.
	VoiceLoadErr error
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- ONNX Runtime library --------------------------------------------
	switch {
	case cfg.SkipORT:
		fmt.Fprintf(w, "%s onnxruntime library: skipped\n", PassMark)
	case cfg.ORTLibraryPath == "":
		res.fail(fmt.Sprintf("onnxruntime library: %v", cfg.ORTDetectErr))
		fmt.Fprintf(w, "%s onnxruntime library: not found (%v)\n", FailMark, cfg.ORTDetectErr)
	default:
		fmt.Fprintf(w, "%s onnxruntime library: %s\n", PassMark, cfg.ORTLibraryPath)
	}

	// ---- piper binary -----------------------------------------------------
	if cfg.SkipPiper {
		fmt.Fprintf(w, "%s piper binary: skipped\n", PassMark)
	} else {
		ver, err := cfg.PiperVersion()
		if err != nil {
			res.fail(fmt.Sprintf("piper binary: %v", err))
			fmt.Fprintf(w, "%s piper binary: not found (%v)\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s piper binary: %s\n", PassMark, ver)
		}
	}

	// ---- model files ------------------------------------------------------
	for _, mf := range cfg.ModelFiles {
		if _, err := os.Stat(mf.Path); err != nil {
			res.fail(fmt.Sprintf("%s %q: %v", mf.Label, mf.Path, err))
			fmt.Fprintf(w, "%s %s %s: not found\n", FailMark, mf.Label, mf.Path)
		} else {
			fmt.Fprintf(w, "%s %s: %s\n", PassMark, mf.Label, mf.Path)
		}
	}

	// ---- voice config -----------------------------------------------------
	switch {
	case cfg.Voice != nil:
		fmt.Fprintf(w, "%s voice config: %d Hz, %d speaker(s), language %q\n",
			PassMark, cfg.Voice.SampleRate, cfg.Voice.NumSpeakers, cfg.Voice.Language)
	case cfg.VoiceLoadErr != nil:
		res.fail(fmt.Sprintf("voice config: %v", cfg.VoiceLoadErr))
		fmt.Fprintf(w, "%s voice config: %v\n", FailMark, cfg.VoiceLoadErr)
	}

	return res
}
