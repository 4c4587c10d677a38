package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bnema/nexus-cli/internal/domain"
	"github.com/bnema/nexus-cli/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendBuildsResponsesRequest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		var body map[string]any
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "o4-mini", body["model"])
		assert.Equal(t, "be brief", body["instructions"])
		assert.Equal(t, []any{map[string]any{"role": "user", "content": "hello there"}}, body["input"])
		assert.Equal(t, map[string]any{"effort": "medium", "summary": "auto"}, body["reasoning"])

		_, _ = fmt.Fprint(w, `{"output":[{"content":[{"type":"output_text","text":"general kenobi"}]}]}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{Endpoint: server.URL + "/v1/responses", HTTPClient: server.Client()})

	answer, err := client.Send(context.Background(), ports.CompletionRequest{
		Instructions: "be brief",
		UserText:     "hello there",
		Credential:   "sk-test-123",
	})
	require.NoError(t, err)
	assert.Equal(t, "general kenobi", answer)
}

func TestClientSendReturnsRemoteErrorOutsideSuccessRange(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided"}}`+"\n")
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{Endpoint: server.URL, HTTPClient: server.Client()})

	_, err := client.Send(context.Background(), ports.CompletionRequest{UserText: "hi", Credential: "bad"})
	require.Error(t, err)

	var remote *domain.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode)
	assert.Equal(t, `{"error":{"message":"Incorrect API key provided"}}`, remote.Body)
	assert.Equal(t, `HTTP 401: {"error":{"message":"Incorrect API key provided"}}`, err.Error())
}

func TestClientSendReturnsPlaceholderForUnknownShape(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"status":"completed","output":[]}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{Endpoint: server.URL, HTTPClient: server.Client()})

	answer, err := client.Send(context.Background(), ports.CompletionRequest{UserText: "hi", Credential: "k"})
	require.NoError(t, err)
	assert.Equal(t, NoContentPlaceholder, answer)
}

func TestClientSendReturnsNetworkErrorWhenUnreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	client := NewClient(Config{Endpoint: endpoint})

	_, err := client.Send(context.Background(), ports.CompletionRequest{UserText: "hi", Credential: "k"})
	require.Error(t, err)

	var network *domain.NetworkError
	require.True(t, errors.As(err, &network))
	assert.Contains(t, network.Message, "perform request")
}

func TestNewClientAppliesDefaults(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{})

	assert.Equal(t, DefaultEndpoint, client.cfg.Endpoint)
	assert.Equal(t, DefaultModel, client.Model())
	assert.Equal(t, DefaultReasoningEffort, client.cfg.ReasoningEffort)
	assert.Equal(t, DefaultReasoningSummary, client.cfg.ReasoningSummary)
	assert.Same(t, http.DefaultClient, client.httpClient)
}
