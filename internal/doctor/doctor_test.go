package doctor_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-piper-tts/internal/doctor"
)

func okVersion(v string) doctor.VersionFunc {
	return func() (string, error) { return v, nil }
}

func failVersion(msg string) doctor.VersionFunc {
	return func() (string, error) { return "", errors.New(msg) }
}

func TestRun_AllChecksPass(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "voice.onnx")
	if err := os.WriteFile(model, []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	res := doctor.Run(doctor.Config{
		ORTLibraryPath: "/usr/lib/libonnxruntime.so",
		SkipPiper:      true,
		ModelFiles: []doctor.ModelFile{
			{Label: "acoustic model", Path: model},
		},
		Voice: &doctor.VoiceSummary{SampleRate: 22050, NumSpeakers: 1, Language: "en-us"},
	}, &out)

	if res.Failed() {
		t.Fatalf("want all checks passing, failures: %v", res.Failures())
	}

	text := out.String()
	for _, want := range []string{
		"onnxruntime library: /usr/lib/libonnxruntime.so",
		"piper binary: skipped",
		"acoustic model: " + model,
		"22050 Hz, 1 speaker(s)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	if strings.Contains(text, doctor.FailMark) {
		t.Errorf("output contains fail mark:\n%s", text)
	}
}

func TestRun_MissingORTLibraryFails(t *testing.T) {
	var out bytes.Buffer
	res := doctor.Run(doctor.Config{
		ORTDetectErr: errors.New("no candidate library found"),
		SkipPiper:    true,
	}, &out)

	if !res.Failed() {
		t.Fatal("want failure for missing onnxruntime library")
	}

	if !strings.Contains(out.String(), doctor.FailMark) {
		t.Errorf("output missing fail mark:\n%s", out.String())
	}
}

func TestRun_MissingModelFileFails(t *testing.T) {
	var out bytes.Buffer
	res := doctor.Run(doctor.Config{
		ORTLibraryPath: "/usr/lib/libonnxruntime.so",
		SkipPiper:      true,
		ModelFiles: []doctor.ModelFile{
			{Label: "g2p encoder", Path: filepath.Join(t.TempDir(), "missing.onnx")},
		},
	}, &out)

	if !res.Failed() {
		t.Fatal("want failure for missing model file")
	}

	failures := res.Failures()
	if len(failures) != 1 || !strings.Contains(failures[0], "g2p encoder") {
		t.Errorf("unexpected failures: %v", failures)
	}
}

func TestRun_PiperBinaryChecked(t *testing.T) {
	var out bytes.Buffer
	res := doctor.Run(doctor.Config{
		SkipORT:      true,
		PiperVersion: okVersion("1.2.0"),
	}, &out)

	if res.Failed() {
		t.Fatalf("unexpected failures: %v", res.Failures())
	}

	if !strings.Contains(out.String(), "piper binary: 1.2.0") {
		t.Errorf("output missing piper version:\n%s", out.String())
	}
}

func TestRun_PiperBinaryMissingFails(t *testing.T) {
	var out bytes.Buffer
	res := doctor.Run(doctor.Config{
		SkipORT:      true,
		PiperVersion: failVersion("executable not found"),
	}, &out)

	if !res.Failed() {
		t.Fatal("want failure for missing piper binary")
	}
}

func TestRun_VoiceLoadErrorFails(t *testing.T) {
	var out bytes.Buffer
	res := doctor.Run(doctor.Config{
		SkipORT:      true,
		SkipPiper:    true,
		VoiceLoadErr: errors.New("parse voice config: unexpected EOF"),
	}, &out)

	if !res.Failed() {
		t.Fatal("want failure for voice config load error")
	}
}

func TestResult_AddFailure(t *testing.T) {
	var res doctor.Result
	if res.Failed() {
		t.Fatal("empty result should not be failed")
	}

	res.AddFailure("external check")
	if !res.Failed() {
		t.Fatal("want failed after AddFailure")
	}

	if got := res.Failures(); len(got) != 1 || got[0] != "external check" {
		t.Errorf("unexpected failures: %v", got)
	}
}
