package text

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "lowercases and splits",
			input: "Hello World",
			want:  []string{"hello", "world"},
		},
		{
			name:  "empty input yields nil",
			input: "",
			want:  nil,
		},
		{
			name:  "whitespace only yields nil",
			input: " \t\n ",
			want:  nil,
		},
		{
			name:  "strips boundary punctuation",
			input: "Hello, world!",
			want:  []string{"hello", "world"},
		},
		{
			name:  "keeps interior apostrophe",
			input: "Isn't he fooling Dexter?",
			want:  []string{"isn't", "he", "fooling", "dexter"},
		},
		{
			name:  "keeps interior hyphen",
			input: "a blue-green sea.",
			want:  []string{"a", "blue-green", "sea"},
		},
		{
			name:  "drops pure punctuation tokens",
			input: "well - yes; (maybe)",
			want:  []string{"well", "yes", "maybe"},
		},
		{
			name:  "collapses repeated whitespace",
			input: "hello   \n  world",
			want:  []string{"hello", "world"},
		},
		{
			name:  "strips formatter control characters",
			input: "^hello_ $world",
			want:  []string{"hello", "world"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	const input = "Harrison had blonde hair, as a baby."

	first := Normalize(input)
	second := Normalize(input)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Normalize is not deterministic: %v vs %v", first, second)
	}
}
