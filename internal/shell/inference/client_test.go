package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{}, nil)

	assert.Equal(t, DefaultHost, client.Host())
	assert.Equal(t, DefaultModel, client.Model())
	assert.Equal(t, DefaultOptions(), client.options)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
	assert.NotNil(t, client.logger)
}

func TestNewClient_NormalizesHost(t *testing.T) {
	assert.Equal(t, "http://ollama:11434", NewClient(Config{Host: "ollama:11434/"}, nil).Host())
	assert.Equal(t, "https://llm.example.com", NewClient(Config{Host: "https://llm.example.com"}, nil).Host())
}

func TestClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "codellama:7b", req.Model)
		assert.Equal(t, "write a Dockerfile", req.Prompt)
		assert.False(t, req.Stream)
		assert.Equal(t, Options{Temperature: 0.1, TopP: 0.9, TopK: 40}, req.Options)

		json.NewEncoder(w).Encode(map[string]any{
			"model":    req.Model,
			"response": "\n  FROM alpine\n\n",
			"done":     true,
		})
	}))
	defer server.Close()

	client := NewClient(Config{Host: server.URL, Model: "codellama:7b"}, nil)

	out, err := client.Generate(context.Background(), "write a Dockerfile")

	require.NoError(t, err)
	assert.Equal(t, "FROM alpine", out)
}

func TestClient_Generate_EmptyPrompt(t *testing.T) {
	client := NewClient(Config{Host: "http://127.0.0.1:1"}, nil)

	_, err := client.Generate(context.Background(), "   ")

	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestClient_Generate_ModelMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'codellama:13b-instruct' not found, try pulling it first"}`))
	}))
	defer server.Close()

	_, err := NewClient(Config{Host: server.URL}, nil).Generate(context.Background(), "hi")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotFound)
	var infErr *InferenceError
	require.True(t, errors.As(err, &infErr))
	assert.Equal(t, "generate", infErr.Op)
	assert.Equal(t, http.StatusNotFound, infErr.Status)
	assert.Contains(t, infErr.Message, "try pulling it first")
}

func TestClient_Generate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(Config{Host: server.URL}, nil).Generate(context.Background(), "hi")

	assert.ErrorIs(t, err, ErrBadStatus)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_Generate_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(Config{Host: url}, nil).Generate(context.Background(), "hi")

	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestClient_Generate_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Config{Host: server.URL, Timeout: 50 * time.Millisecond}, nil)

	_, err := client.Generate(context.Background(), "hi")

	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClient_Generate_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := NewClient(Config{Host: server.URL}, nil).Generate(context.Background(), "hi")

	var infErr *InferenceError
	require.True(t, errors.As(err, &infErr))
	assert.Equal(t, "decode response", infErr.Message)
}

func tagsServer(t *testing.T, names ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/tags", r.URL.Path)

		models := make([]map[string]string, 0, len(names))
		for _, n := range names {
			models = append(models, map[string]string{"name": n})
		}
		json.NewEncoder(w).Encode(map[string]any{"models": models})
	}))
}

func TestClient_ListModels(t *testing.T) {
	server := tagsServer(t, "llama3:8b", "codellama:13b-instruct")
	defer server.Close()

	names, err := NewClient(Config{Host: server.URL}, nil).ListModels(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:8b", "codellama:13b-instruct"}, names)
}

func TestClient_CheckModel(t *testing.T) {
	server := tagsServer(t, "codellama:13b-instruct")
	defer server.Close()

	assert.NoError(t, NewClient(Config{Host: server.URL}, nil).CheckModel(context.Background()))
}

func TestClient_CheckModel_Missing(t *testing.T) {
	server := tagsServer(t, "llama3:8b")
	defer server.Close()

	err := NewClient(Config{Host: server.URL, Model: "mistral"}, nil).CheckModel(context.Background())

	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.Contains(t, err.Error(), "llama3:8b")
}
