// Copyright 2026 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package local provides a deterministic, pure-Go embedding
// implementation using character n-gram hashing. It needs no external
// service, which makes it the offline fallback when no embedding host is
// configured, and a stable embedder for tests.
package local

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/quarrylabs/quarry/ai"
)

const (
	defaultDim = 384
	minNgram   = 3
	maxNgram   = 6
)

var (
	seedIndex = []byte("quarry-subword-idx-v1::")
	seedSign  = []byte("quarry-subword-sgn-v1::")
)

// ErrInvalidDimension indicates a non-positive embedding dimension.
var ErrInvalidDimension = errors.New("embedding dimension must be positive")

// Embedder hashes character n-grams (3-6) of each word into a fixed
// vector space, averages the word vectors and L2-normalizes the result.
// Words sharing subword structure produce similar vectors, giving
// morphological similarity that works with cosine search.
type Embedder struct {
	dim int
}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder creates a local deterministic embedder with the given
// output dimensionality. Zero selects the default of 384.
func NewEmbedder(dim int) (*Embedder, error) {
	if dim == 0 {
		dim = defaultDim
	}
	if dim < 0 {
		return nil, ErrInvalidDimension
	}
	return &Embedder{dim: dim}, nil
}

// EmbedText returns a deterministic embedding for the input text.
func (e *Embedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	var words int

	for _, tok := range tokenize(text) {
		e.addWordVector(vec, tok)
		words++
	}

	if words > 0 {
		inv := 1.0 / float32(words)
		for i := range vec {
			vec[i] *= inv
		}
	}

	normalize(vec)
	return vec, nil
}

// EmbedTexts returns deterministic embeddings for multiple texts.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// addWordVector folds the word's n-grams into vec.
func (e *Embedder) addWordVector(vec []float32, word string) {
	padded := "<" + word + ">"
	runes := []rune(padded)

	var ngrams int
	tmp := make([]float32, e.dim)
	for n := minNgram; n <= maxNgram; n++ {
		if n > len(runes) {
			break
		}
		for i := 0; i+n <= len(runes); i++ {
			gram := string(runes[i : i+n])
			idx := hashToIndex(seedIndex, gram, e.dim)
			tmp[idx] += hashToSign(seedSign, gram)
			ngrams++
		}
	}

	if ngrams == 0 {
		// word shorter than the smallest n-gram: hash it whole
		idx := hashToIndex(seedIndex, padded, e.dim)
		tmp[idx] += hashToSign(seedSign, padded)
		ngrams = 1
	}

	inv := 1.0 / float32(ngrams)
	for i := range tmp {
		vec[i] += tmp[i] * inv
	}
}

func hashToIndex(seed []byte, gram string, dim int) int {
	h := fnv.New32a()
	h.Write(seed)
	h.Write([]byte(gram))
	return int(h.Sum32() % uint32(dim))
}

func hashToSign(seed []byte, gram string) float32 {
	h := fnv.New32a()
	h.Write(seed)
	h.Write([]byte(gram))
	if h.Sum32()&1 == 0 {
		return 1
	}
	return -1
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}
