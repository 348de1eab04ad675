//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder runs a sentence-transformer ONNX export (all-MiniLM-L6-v2 by default) and
// mean-pools its last hidden state over the attention mask. It requires CGO and the
// onnxruntime shared library.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	cache      *EmbeddingCache
	tokenizer  Tokenizer
	// Pre-allocated tensors for Run(); input data is overwritten per call.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	hiddenTensor        *ort.Tensor[float32]
	tensors             []interface{ Destroy() error }
	mu                  sync.Mutex
}

// NewONNXEmbedder creates an ONNX embedder. InitializeEnvironment is called if not already done.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens, cacheSize int) (*ONNXEmbedder, error) {
	if dimensions <= 0 || maxTokens <= 0 {
		return nil, fmt.Errorf("dimensions and max tokens must be positive")
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	tokenizer := &SimpleTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Tokenize("", maxTokens)
	shape := ort.NewShape(1, int64(maxTokens))

	var tensors []interface{ Destroy() error }
	cleanup := func() {
		for _, t := range tensors {
			_ = t.Destroy()
		}
	}

	inputIDsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	tensors = append(tensors, inputIDsTensor)
	attentionMaskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	tensors = append(tensors, attentionMaskTensor)
	tokenTypeIDsTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	tensors = append(tensors, tokenTypeIDsTensor)
	hiddenTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(maxTokens), int64(dimensions)))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	tensors = append(tensors, hiddenTensor)

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{hiddenTensor},
		nil,
	)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXEmbedder{
		session:             session,
		dimensions:          dimensions,
		maxTokens:           maxTokens,
		cache:               NewEmbeddingCache(cacheSize),
		tokenizer:           tokenizer,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		hiddenTensor:        hiddenTensor,
		tensors:             tensors,
	}, nil
}

// Embed returns the embedding for text, using the cache when available.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.inputIDsTensor.GetData(), inputIDs)
	copy(e.attentionMaskTensor.GetData(), attentionMask)
	copy(e.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	embedding := meanPool(e.hiddenTensor.GetData(), attentionMask, e.dimensions)
	NormalizeL2Slice(embedding)
	e.cache.Set(text, embedding)
	return embedding, nil
}

// meanPool averages token vectors whose attention mask is set.
func meanPool(hidden []float32, mask []int64, dimensions int) []float32 {
	out := make([]float32, dimensions)
	var n float32
	for tok, m := range mask {
		if m == 0 {
			continue
		}
		row := hidden[tok*dimensions : (tok+1)*dimensions]
		for j, v := range row {
			out[j] += v
		}
		n++
	}
	if n > 0 {
		for j := range out {
			out[j] /= n
		}
	}
	return out
}

// EmbedBatch calls Embed for each text.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and tensors.
// CacheStats returns the embedding cache hit and miss counts.
func (e *ONNXEmbedder) CacheStats() (hits, misses uint64) {
	return e.cache.Stats()
}

func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	for _, t := range e.tensors {
		_ = t.Destroy()
	}
	e.tensors = nil
	return err
}
