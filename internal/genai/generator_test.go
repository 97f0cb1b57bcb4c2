package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerator_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.False(t, req.Stream)

		resp := generateResponse{Response: "generated text", Done: true}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	gen := NewOllamaGenerator(Config{Host: server.URL, Model: "test-model"})
	defer func() { _ = gen.Close() }()

	out, err := gen.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "generated text", out)
}

func TestOllamaGenerator_GenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	gen := NewOllamaGenerator(Config{Host: server.URL})
	_, err := gen.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOllamaGenerator_Available(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	gen := NewOllamaGenerator(Config{Host: server.URL})
	assert.True(t, gen.Available(context.Background()))

	gen2 := NewOllamaGenerator(Config{Host: "http://127.0.0.1:1"})
	assert.False(t, gen2.Available(context.Background()))
}

func TestOllamaGenerator_Defaults(t *testing.T) {
	gen := NewOllamaGenerator(Config{})
	assert.Equal(t, DefaultModel, gen.ModelName())
	assert.Equal(t, DefaultHost, gen.config.Host)
	assert.Equal(t, DefaultTimeout, gen.config.Timeout)
}
