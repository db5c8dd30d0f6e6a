package g2p

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-piper-tts/internal/onnx"
	"github.com/example/go-piper-tts/internal/phoneme"
)

// ErrInference marks a failed encoder or decoder invocation. The call is not
// retried: inputs are deterministic, so a retry cannot change the outcome.
var ErrInference = errors.New("g2p inference failure")

// Tensor names of the exported encoder/decoder graphs.
const (
	inputIDsName     = "input_ids"
	attentionName    = "attention_mask"
	hiddenStateName  = "last_hidden_state"
	encoderStateName = "encoder_hidden_states"
	encoderMaskName  = "encoder_attention_mask"
	logitsName       = "logits"
)

// DefaultMaxDecodeLen bounds the decoder loop per word.
const DefaultMaxDecodeLen = 64

// Engine predicts ARPAbet phonemes for single words. Words are processed
// without cross-word context; that is a property of the underlying model,
// not of this wrapper.
type Engine struct {
	encoder onnx.Graph
	decoder onnx.Graph
	vocab   *Vocab
	maxLen  int
}

// NewEngine wires the encoder and decoder graphs to the shared vocabulary.
// maxLen bounds the decoded sequence; values < 1 use DefaultMaxDecodeLen.
func NewEngine(encoder, decoder onnx.Graph, vocab *Vocab, maxLen int) *Engine {
	if maxLen < 1 {
		maxLen = DefaultMaxDecodeLen
	}

	return &Engine{
		encoder: encoder,
		decoder: decoder,
		vocab:   vocab,
		maxLen:  maxLen,
	}
}

// Infer runs one encoder pass and a greedy decoder loop for the word and
// returns its ARPAbet tokens. The loop stops on the end-of-sequence ID or
// after maxLen steps, whichever comes first.
func (e *Engine) Infer(ctx context.Context, word string) ([]phoneme.Token, error) {
	inputIDs, err := e.vocab.Encode(word)
	if err != nil {
		return nil, err
	}

	seqLen := int64(len(inputIDs))

	inputTensor, err := onnx.NewTensor(inputIDs, []int64{1, seqLen})
	if err != nil {
		return nil, fmt.Errorf("build encoder input for %q: %w", word, err)
	}

	mask := make([]int64, seqLen)
	for i := range mask {
		mask[i] = 1
	}

	maskTensor, err := onnx.NewTensor(mask, []int64{1, seqLen})
	if err != nil {
		return nil, fmt.Errorf("build attention mask for %q: %w", word, err)
	}

	encOut, err := e.encoder.Run(ctx, map[string]*onnx.Tensor{
		inputIDsName:  inputTensor,
		attentionName: maskTensor,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoder for %q: %w", ErrInference, word, err)
	}

	hidden, ok := encOut[hiddenStateName]
	if !ok {
		return nil, fmt.Errorf("%w: encoder for %q returned no %s", ErrInference, word, hiddenStateName)
	}

	decoded := []int64{e.vocab.BOS()}
	for len(decoded) <= e.maxLen {
		next, err := e.decodeStep(ctx, word, decoded, hidden, maskTensor)
		if err != nil {
			return nil, err
		}

		if next == e.vocab.EOS() {
			break
		}

		decoded = append(decoded, next)
	}

	return e.vocab.Decode(decoded), nil
}

// decodeStep runs the decoder over the sequence so far and returns the
// argmax ID for the next position.
func (e *Engine) decodeStep(ctx context.Context, word string, decoded []int64, hidden, encMask *onnx.Tensor) (int64, error) {
	seq, err := onnx.NewTensor(decoded, []int64{1, int64(len(decoded))})
	if err != nil {
		return 0, fmt.Errorf("build decoder input for %q: %w", word, err)
	}

	out, err := e.decoder.Run(ctx, map[string]*onnx.Tensor{
		inputIDsName:     seq,
		encoderStateName: hidden,
		encoderMaskName:  encMask,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: decoder for %q at step %d: %w", ErrInference, word, len(decoded), err)
	}

	logitsTensor, ok := out[logitsName]
	if !ok {
		return 0, fmt.Errorf("%w: decoder for %q returned no %s", ErrInference, word, logitsName)
	}

	return argmaxLastPosition(logitsTensor, word)
}

// argmaxLastPosition selects the highest-probability ID from the final
// position of a [1, S, V] logits tensor. Greedy decoding, no beam search.
func argmaxLastPosition(t *onnx.Tensor, word string) (int64, error) {
	shape := t.Shape()
	if len(shape) != 3 || shape[0] != 1 {
		return 0, fmt.Errorf("%w: decoder for %q: unexpected logits shape %v", ErrInference, word, shape)
	}

	logits, err := onnx.ExtractFloat32(t)
	if err != nil {
		return 0, fmt.Errorf("%w: decoder for %q: %w", ErrInference, word, err)
	}

	vocabSize := int(shape[2])
	offset := (int(shape[1]) - 1) * vocabSize
	if offset < 0 || offset+vocabSize > len(logits) {
		return 0, fmt.Errorf("%w: decoder for %q: logits shorter than shape %v", ErrInference, word, shape)
	}

	best := int64(0)
	bestScore := logits[offset]
	for i := 1; i < vocabSize; i++ {
		if logits[offset+i] > bestScore {
			bestScore = logits[offset+i]
			best = int64(i)
		}
	}

	return best, nil
}
