// Package chunk splits extracted document text into bounded-size segments
// suitable for embedding and retrieval.
package chunk

import "strings"

// DefaultTargetSize is the soft upper bound on chunk length in characters.
const DefaultTargetSize = 500

// Chunk is a contiguous slice of a source document. Chunks carry no identity
// beyond their text and source; their position in the returned slice is the
// insertion-order key used by the vector index.
type Chunk struct {
	Text     string `json:"text"`
	SourceID string `json:"source_id"`
}

// Split breaks text into chunks by greedily accumulating whitespace-delimited
// tokens. A chunk is closed at the first token boundary at which its joined
// length reaches targetSize, so closed chunks may exceed the target by part of
// one token but are never cut mid-token. The trailing partial chunk is emitted
// if non-empty; no chunk is ever empty.
//
// Split is pure and deterministic. Joining the returned chunk texts with
// single spaces reproduces the whitespace-normalized input.
func Split(text, sourceID string, targetSize int) []Chunk {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []Chunk
	var current []string
	length := 0

	for _, word := range words {
		if length > 0 {
			length++ // joining space
		}
		length += len(word)
		current = append(current, word)

		if length >= targetSize {
			chunks = append(chunks, Chunk{Text: strings.Join(current, " "), SourceID: sourceID})
			current = current[:0:0]
			length = 0
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, Chunk{Text: strings.Join(current, " "), SourceID: sourceID})
	}

	return chunks
}
