package generator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/feichai0017/pdf-analyzer/config"
)

const (
	defaultOllamaEndpoint = "http://localhost:11434"
	defaultOllamaModel    = "llama3.2"
	defaultPoolTimeout    = 30 * time.Second
)

type OllamaConfig struct {
	Endpoint    string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxPoolSize int
	PoolTimeout time.Duration
}

// OllamaClient is one langchaingo model handle with its own HTTP client.
type OllamaClient struct {
	llm        llms.Model
	callOpts   []llms.CallOption
	httpClient *http.Client
}

func NewOllamaClient(config *OllamaConfig) (*OllamaClient, error) {
	httpClient := &http.Client{Timeout: config.Timeout}

	opts := []ollama.Option{
		ollama.WithModel(config.Model),
		ollama.WithHTTPClient(httpClient),
	}
	if config.Endpoint != "" {
		opts = append(opts, ollama.WithServerURL(strings.TrimRight(config.Endpoint, "/")))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	var callOpts []llms.CallOption
	if config.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(config.MaxTokens))
	}
	if config.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(config.Temperature))
	}

	return &OllamaClient{llm: llm, callOpts: callOpts, httpClient: httpClient}, nil
}

func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemInstruction),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, c.callOpts...)
	if err != nil {
		return "", fmt.Errorf("ollama error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *OllamaClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// OllamaClientPool bounds the number of concurrent requests to the Ollama server.
type OllamaClientPool struct {
	clients chan *OllamaClient
	config  *OllamaConfig
}

func NewOllamaClientPool(config *OllamaConfig) (*OllamaClientPool, error) {
	pool := &OllamaClientPool{
		clients: make(chan *OllamaClient, config.MaxPoolSize),
		config:  config,
	}

	// 预创建客户端
	for i := 0; i < config.MaxPoolSize; i++ {
		client, err := NewOllamaClient(config)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.clients <- client
	}

	return pool, nil
}

func (p *OllamaClientPool) Get(ctx context.Context) (*OllamaClient, error) {
	timer := time.NewTimer(p.config.PoolTimeout)
	defer timer.Stop()

	select {
	case client := <-p.clients:
		return client, nil
	case <-timer.C:
		return nil, fmt.Errorf("timeout waiting for available client")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *OllamaClientPool) Put(client *OllamaClient) {
	select {
	case p.clients <- client:
	default:
		// 池已满，丢弃客户端
	}
}

func (p *OllamaClientPool) Close() error {
	close(p.clients)
	// 关闭所有客户端
	for client := range p.clients {
		client.Close()
	}
	return nil
}

// Ollama is the Generator backed by a local Ollama server.
type Ollama struct {
	pool  *OllamaClientPool
	model string
}

func NewOllama(cfg config.GeneratorConfig) (*Ollama, error) {
	oc := &OllamaConfig{
		Endpoint:    cfg.Endpoint,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
		MaxPoolSize: cfg.MaxPoolSize,
		PoolTimeout: defaultPoolTimeout,
	}
	if oc.Endpoint == "" {
		oc.Endpoint = defaultOllamaEndpoint
	}
	if oc.Model == "" {
		oc.Model = defaultOllamaModel
	}
	if oc.Timeout == 0 {
		oc.Timeout = 120 * time.Second
	}
	if oc.MaxPoolSize <= 0 {
		oc.MaxPoolSize = 1
	}

	pool, err := NewOllamaClientPool(oc)
	if err != nil {
		return nil, err
	}
	return &Ollama{pool: pool, model: oc.Model}, nil
}

func (o *Ollama) Name() string {
	return "ollama/" + o.model
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := o.pool.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get ollama client: %w", err)
	}
	defer o.pool.Put(client)

	return client.Generate(ctx, prompt)
}

func (o *Ollama) Close() error {
	return o.pool.Close()
}
