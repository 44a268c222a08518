package embedding

import (
	"context"
	"fmt"
	"strings"
)

type Info struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type Request struct {
	Inputs []string `json:"inputs"`
}

// Provider turns a batch of texts into one vector per text, in order. The
// remote capability owns its own authentication and rate limits; callers
// handle retries and shape validation.
type Provider interface {
	Embed(ctx context.Context, req Request) ([][]float32, Info, error)
}

type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

// ParseProviderList parses a pipe-separated provider list such as
// "openai:course|mock" into refs. An empty list falls back to mock.
func ParseProviderList(raw string) []ProviderRef {
	parts := strings.Split(raw, "|")
	out := make([]ProviderRef, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ref := ProviderRef{Raw: p}
		if strings.Contains(p, ":") {
			x := strings.SplitN(p, ":", 2)
			ref.Name = strings.TrimSpace(x[0])
			ref.KeyAlias = strings.TrimSpace(x[1])
		} else {
			ref.Name = p
		}
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out
}

// NewProvider builds the provider a ref names.
func NewProvider(ref ProviderRef, dim int) (Provider, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "ollama":
		return NewOllamaProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", ref.Name)
	}
}

// FirstProvider builds the first provider of a configured list.
func FirstProvider(list string, dim int) (Provider, ProviderRef, error) {
	refs := ParseProviderList(list)
	p, err := NewProvider(refs[0], dim)
	if err != nil {
		return nil, ProviderRef{}, err
	}
	return p, refs[0], nil
}
