package llm

import (
	"context"
	"errors"
)

// ErrInit covers every way a client can fail to come up, bad key and
// unreachable endpoint alike.
var ErrInit = errors.New("llm: client initialization failed")

type Decoding struct {
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
}

// DeterministicDecoding is used for both SQL synthesis and explanations.
func DeterministicDecoding(maxOutputTokens int) Decoding {
	if maxOutputTokens <= 0 {
		maxOutputTokens = 8192
	}
	return Decoding{
		Temperature:     0,
		TopP:            0.95,
		MaxOutputTokens: maxOutputTokens,
	}
}

type Generator interface {
	Generate(ctx context.Context, prompt string, decoding Decoding) (string, error)
}

// Factory builds a Generator bound to a caller supplied API key.
type Factory interface {
	New(apiKey string) (Generator, error)
}

type FactoryFunc func(apiKey string) (Generator, error)

func (f FactoryFunc) New(apiKey string) (Generator, error) {
	return f(apiKey)
}
