package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pdf-analyzer/config"
	"github.com/feichai0017/pdf-analyzer/internal/models"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

func TestGemini_Generate(t *testing.T) {
	var gotKey string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  Part one. "},{"text":"Part two."}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	g := NewGeminiWithEndpoint(config.GeneratorConfig{APIKey: "secret", MaxTokens: 256}, srv.URL)
	out, err := g.Generate(context.Background(), "Summarize")
	require.NoError(t, err)

	assert.Equal(t, "Part one. Part two.", out)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "gemini/gemini-2.0-flash", g.Name())
	contents := gotBody["contents"].([]interface{})
	parts := contents[0].(map[string]interface{})["parts"].([]interface{})
	assert.Equal(t, "Summarize", parts[0].(map[string]interface{})["text"])
	sysParts := gotBody["systemInstruction"].(map[string]interface{})["parts"].([]interface{})
	assert.Equal(t, systemInstruction, sysParts[0].(map[string]interface{})["text"])
	assert.EqualValues(t, 256, gotBody["generationConfig"].(map[string]interface{})["maxOutputTokens"])
}

func TestGemini_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewGeminiWithEndpoint(config.GeneratorConfig{APIKey: "k"}, srv.URL).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestGemini_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	_, err := NewGeminiWithEndpoint(config.GeneratorConfig{APIKey: "k"}, srv.URL).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGemini_DefaultEndpointUsesModel(t *testing.T) {
	g := NewGemini(config.GeneratorConfig{APIKey: "k", Model: "gemini-1.5-pro"})
	assert.Equal(t, geminiAPIBase+"/gemini-1.5-pro:generateContent", g.endpoint)
}

func ollamaChatReply(w http.ResponseWriter, content string) {
	_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":` + strconv.Quote(content) + `},"done":true}` + "\n"))
}

func TestOllama_Generate(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		ollamaChatReply(w, "capital\nliquidity\n")
	}))
	defer srv.Close()

	o, err := NewOllama(config.GeneratorConfig{Endpoint: srv.URL + "/", Model: "llama3"})
	require.NoError(t, err)
	defer o.Close()

	out, err := o.Generate(context.Background(), "Extract keywords")
	require.NoError(t, err)
	assert.Equal(t, "capital\nliquidity", out)
	assert.Equal(t, "llama3", gotBody["model"])
	assert.Equal(t, "ollama/llama3", o.Name())

	messages := gotBody["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, systemInstruction, messages[0].(map[string]interface{})["content"])
	assert.Equal(t, "Extract keywords", messages[1].(map[string]interface{})["content"])
}

func TestOllama_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	o, err := NewOllama(config.GeneratorConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer o.Close()

	_, err = o.Generate(context.Background(), "p")
	assert.ErrorContains(t, err, "model not found")
}

func TestOllama_BlankAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ollamaChatReply(w, "  \n")
	}))
	defer srv.Close()

	o, err := NewOllama(config.GeneratorConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer o.Close()

	_, err = o.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOllamaPool_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&inFlight, -1)
		ollamaChatReply(w, "ok")
	}))
	defer srv.Close()

	o, err := NewOllama(config.GeneratorConfig{Endpoint: srv.URL, MaxPoolSize: 2})
	require.NoError(t, err)
	defer o.Close()

	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := o.Generate(context.Background(), "p")
			errs <- err
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	for i := 0; i < 4; i++ {
		require.NoError(t, <-errs)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestOllamaPool_GetHonoursContext(t *testing.T) {
	pool, err := NewOllamaClientPool(&OllamaConfig{MaxPoolSize: 1, PoolTimeout: time.Minute})
	require.NoError(t, err)
	c, err := pool.Get(context.Background())
	require.NoError(t, err)
	defer pool.Put(c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Get(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNew_SelectsProvider(t *testing.T) {
	log := logger.NewTestLogger()

	g, err := New(context.Background(), config.GeneratorConfig{Provider: "Gemini", APIKey: "k"}, log)
	require.NoError(t, err)
	assert.IsType(t, &Gemini{}, g)

	g, err = New(context.Background(), config.GeneratorConfig{Provider: "ollama"}, log)
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, g)
	require.NoError(t, g.Close())

	_, err = New(context.Background(), config.GeneratorConfig{Provider: "gemini"}, log)
	assert.Error(t, err, "gemini without key")

	_, err = New(context.Background(), config.GeneratorConfig{Provider: "vertex"}, log)
	assert.Error(t, err, "vertex without project")

	_, err = New(context.Background(), config.GeneratorConfig{Provider: "gpt"}, log)
	assert.Error(t, err)
}

func TestPrompt(t *testing.T) {
	for _, kind := range models.DerivedKinds {
		p, err := Prompt(kind, "BODY")
		require.NoError(t, err, kind)
		assert.True(t, strings.HasSuffix(p, "BODY"), kind)
	}
	p, _ := Prompt(models.ArtifactSummary, "text")
	assert.Equal(t, "Summarize this banking/compliance-related document:\ntext", p)

	_, err := Prompt(models.ArtifactCleaned, "x")
	assert.Error(t, err)
}

func TestKeywords(t *testing.T) {
	out := "Capital\n  liquidity  \ncapital\nx\n\nBasel III\nAML"
	assert.Equal(t, []string{"aml", "basel iii", "capital", "liquidity"}, Keywords(out))
	assert.Empty(t, Keywords(""))
}

func TestPostProcess(t *testing.T) {
	assert.Equal(t, "aml\nkyc", PostProcess(models.ArtifactKeywords, "KYC\nAML\nkyc"))
	assert.Equal(t, "1. Report", PostProcess(models.ArtifactRequirements, "\n1. Report\n"))
}
