package segment

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer converts text to and from token sequences. Segmentation is
// defined in token space, so the same tokenizer must be used for counting
// and for reassembling segment text.
//
// Implementations must be deterministic: encoding the same text twice
// yields the same tokens.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(tokens []int) (string, error)
}

// cl100kBase is the encoding used by OpenAI's text-embedding-3 models.
const cl100kBase = "cl100k_base"

// tiktokenTokenizer wraps a tiktoken BPE encoding.
type tiktokenTokenizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenTokenizer returns a Tokenizer backed by the cl100k_base BPE
// encoding. The encoding tables are fetched and cached on first use.
func NewTiktokenTokenizer() (Tokenizer, error) {
	encoding, err := tiktoken.GetEncoding(cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", cl100kBase, err)
	}
	return &tiktokenTokenizer{encoding: encoding}, nil
}

func (t *tiktokenTokenizer) Encode(text string) ([]int, error) {
	return t.encoding.Encode(text, nil, nil), nil
}

func (t *tiktokenTokenizer) Decode(tokens []int) (string, error) {
	return t.encoding.Decode(tokens), nil
}
