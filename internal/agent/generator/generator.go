package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/feichai0017/pdf-analyzer/config"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty response from generator")

// Generator produces text from a prompt. Calls are fallible and never retried.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

// New builds the provider named by cfg.Provider.
func New(ctx context.Context, cfg config.GeneratorConfig, log logger.Logger) (Generator, error) {
	var g Generator
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		g = NewGemini(cfg)
	case "vertex":
		v, err := NewVertex(ctx, cfg)
		if err != nil {
			return nil, err
		}
		g = v
	case "ollama":
		o, err := NewOllama(cfg)
		if err != nil {
			return nil, err
		}
		g = o
	default:
		return nil, fmt.Errorf("unsupported generator provider: %q", cfg.Provider)
	}

	log.Info("Generator configured", logger.String("generator", g.Name()))
	return g, nil
}
