package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"text":" hold off, the price is climbing \n"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "coach-small", 100, nil)
	text, err := c.Generate(context.Background(), "should I buy?", GenerateConfig{Temperature: 0.4, MaxTokens: 200})
	require.NoError(t, err)
	assert.Equal(t, "hold off, the price is climbing", text)
	assert.Equal(t, "coach-small", got.Model)
	assert.Equal(t, "should I buy?", got.Prompt)
	assert.Equal(t, 0.4, got.Temperature)
	assert.Equal(t, 200, got.MaxTokens)
}

func TestGenerateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exhausted"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", "coach-small", 100, nil)
	_, err := c.Generate(context.Background(), "hi", GenerateConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exhausted")
}

func TestGenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", "coach-small", 100, nil)
	_, err := c.Generate(context.Background(), "hi", GenerateConfig{})
	require.Error(t, err)
}
