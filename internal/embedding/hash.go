package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashDims is the vector size of the offline hash embedder.
const DefaultHashDims = 1024

// HashEmbedder is a deterministic, dependency-free embedder. It hashes
// whole words and padded character trigrams into a signed feature vector, so
// texts sharing word stems ("heal", "healer") land close together.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a hash embedder with the given dimensionality.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDims
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	vec := make(Vector, h.dims)
	feats := Features(text)
	if len(feats) == 0 {
		feats = []string{"\x00empty"}
	}
	for _, f := range feats {
		hf := fnv.New64a()
		hf.Write([]byte(f))
		sum := hf.Sum64()
		idx := sum % uint64(h.dims)
		if sum>>63 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	return Normalize(vec), nil
}

func (h *HashEmbedder) Dims() int { return h.dims }

// Features returns the hashed features of text: one per content word plus the
// padded trigrams of each word. Stop words are skipped.
func Features(text string) []string {
	var out []string
	for _, tok := range tokenize(text) {
		if stopWords[tok] {
			continue
		}
		out = append(out, "w:"+tok)
		r := []rune("^" + tok + "$")
		for i := 0; i+3 <= len(r); i++ {
			out = append(out, string(r[i:i+3]))
		}
	}
	return out
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"of": true, "to": true, "in": true, "on": true, "at": true, "by": true,
	"for": true, "from": true, "with": true, "into": true, "over": true, "under": true,
	"as": true, "so": true, "than": true, "then": true, "there": true, "here": true,
	"who": true, "what": true, "where": true, "when": true, "why": true, "how": true,
	"can": true, "could": true, "will": true, "would": true, "should": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"has": true, "have": true, "had": true, "do": true, "does": true, "did": true,
	"it": true, "its": true, "this": true, "that": true, "these": true, "those": true,
	"i": true, "you": true, "he": true, "she": true, "we": true, "they": true,
	"me": true, "him": true, "her": true, "us": true, "them": true,
	"my": true, "your": true, "his": true, "their": true, "our": true,
	"not": true, "no": true, "s": true,
}
