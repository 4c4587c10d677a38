package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okResponse = `{"output":[{"type":"message","content":[{"type":"output_text","text":"Hi from NEXUS"}]}]}`

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestKeyLifecycle(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "key", "status")
	require.NoError(t, err)
	assert.Equal(t, "API key: not set (nexus/openai_api_key)\n", stdout)

	stdout, _, err = executeCLI(t, home, "key", "set", "--value", "  sk-test-123 ")
	require.NoError(t, err)
	assert.Equal(t, "API key saved.\n", stdout)

	info, err := os.Stat(filepath.Join(home, ".nexus", "secrets", "nexus", "openai_api_key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	stdout, _, err = executeCLI(t, home, "key", "status")
	require.NoError(t, err)
	assert.Equal(t, "API key: saved (nexus/openai_api_key)\n", stdout)

	stdout, _, err = executeCLI(t, home, "key", "remove")
	require.NoError(t, err)
	assert.Equal(t, "API key removed.\n", stdout)

	stdout, _, err = executeCLI(t, home, "key", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "not set")
}

func TestKeySetRequiresValueFlag(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "key", "set")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s) \"value\" not set")
}

func TestAskWithoutKeyFailsWithoutCallingAPI(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = fmt.Fprint(w, okResponse)
	}))
	defer server.Close()
	t.Setenv("NEXUS_ENDPOINT", server.URL)

	home := t.TempDir()
	_, _, err := executeCLI(t, home, "ask", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nexus key set")
	assert.Zero(t, calls)

	stdout, _, err := executeCLI(t, home, "history", "show", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", stdout)
}

func TestAskSendsMessageAndPrintsReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		var payload struct {
			Model        string `json:"model"`
			Instructions string `json:"instructions"`
			Input        []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"input"`
		}
		assert.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "o4-mini", payload.Model)
		assert.Contains(t, payload.Instructions, "NEXUS")
		if assert.Len(t, payload.Input, 1) {
			assert.Equal(t, "user", payload.Input[0].Role)
			assert.Equal(t, "hello world", payload.Input[0].Content)
		}

		_, _ = fmt.Fprint(w, okResponse)
	}))
	defer server.Close()
	t.Setenv("NEXUS_ENDPOINT", server.URL)

	home := t.TempDir()
	_, _, err := executeCLI(t, home, "key", "set", "--value", "sk-test-123")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "ask", "hello", "world")
	require.NoError(t, err)
	assert.Equal(t, "Hi from NEXUS\n", stdout)

	stdout, _, err = executeCLI(t, home, "history", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "turns: 2")
	assert.Contains(t, stdout, "USER")
	assert.Contains(t, stdout, "hello world")
	assert.Contains(t, stdout, "ASSISTANT")
	assert.Contains(t, stdout, "Hi from NEXUS")
}

func TestAskShowsThinkingSpinner(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = fmt.Fprint(w, okResponse)
	}))
	defer server.Close()
	t.Setenv("NEXUS_ENDPOINT", server.URL)

	home := t.TempDir()
	_, _, err := executeCLI(t, home, "key", "set", "--value", "sk-test-123")
	require.NoError(t, err)

	_, stderr, err := executeCLI(t, home, "ask", "hello")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Thinking...")
}

func TestAskJSONOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"content":"from a chat shape"}}]}`)
	}))
	defer server.Close()
	t.Setenv("NEXUS_ENDPOINT", server.URL)

	home := t.TempDir()
	_, _, err := executeCLI(t, home, "key", "set", "--value", "sk-test-123")
	require.NoError(t, err)

	stdout, stderr, err := executeCLI(t, home, "ask", "--json", "hello")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	var reply turnView
	require.NoError(t, json.Unmarshal([]byte(stdout), &reply))
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, "from a chat shape", reply.Content)
	assert.NotEmpty(t, reply.ID)
	assert.False(t, reply.CreatedAt.IsZero())
}

func TestAskRemoteFailureIsRecordedInHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided"}}`)
	}))
	defer server.Close()
	t.Setenv("NEXUS_ENDPOINT", server.URL)

	home := t.TempDir()
	_, _, err := executeCLI(t, home, "key", "set", "--value", "sk-revoked")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "ask", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
	assert.Empty(t, stdout)

	stdout, _, err = executeCLI(t, home, "history", "show", "--json")
	require.NoError(t, err)

	var turns []turnView
	require.NoError(t, json.Unmarshal([]byte(stdout), &turns))
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "hello", turns[0].Content)
	assert.Equal(t, "assistant", turns[1].Role)
	assert.True(t, strings.HasPrefix(turns[1].Content, "Error: HTTP 401: "))
}

func TestHistoryClear(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, okResponse)
	}))
	defer server.Close()
	t.Setenv("NEXUS_ENDPOINT", server.URL)

	home := t.TempDir()
	_, _, err := executeCLI(t, home, "key", "set", "--value", "sk-test-123")
	require.NoError(t, err)
	_, _, err = executeCLI(t, home, "ask", "--json", "hello")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "history", "clear")
	require.NoError(t, err)
	assert.Equal(t, "History cleared.\n", stdout)

	stdout, _, err = executeCLI(t, home, "history", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No messages yet.")
}

func TestHistoryBackendsRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, okResponse)
	}))
	defer server.Close()

	for _, backend := range []string{"bolt", "sqlite", "toml"} {
		t.Run(backend, func(t *testing.T) {
			t.Setenv("NEXUS_ENDPOINT", server.URL)
			t.Setenv("NEXUS_HISTORY_BACKEND", backend)

			home := t.TempDir()
			_, _, err := executeCLI(t, home, "key", "set", "--value", "sk-test-123")
			require.NoError(t, err)
			_, _, err = executeCLI(t, home, "ask", "--json", "persist me")
			require.NoError(t, err)

			stdout, _, err := executeCLI(t, home, "history", "show", "--json")
			require.NoError(t, err)

			var turns []turnView
			require.NoError(t, json.Unmarshal([]byte(stdout), &turns))
			require.Len(t, turns, 2)
			assert.Equal(t, "persist me", turns[0].Content)
			assert.Equal(t, "Hi from NEXUS", turns[1].Content)
		})
	}
}

func TestConfigShow(t *testing.T) {
	t.Setenv("NEXUS_MODEL", "gpt-4.1-mini")

	stdout, _, err := executeCLI(t, t.TempDir(), "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "gpt-4.1-mini")
	assert.Contains(t, stdout, "[reasoning]")
	assert.Contains(t, stdout, "[history]")
	assert.Contains(t, stdout, "nexus/openai_api_key")
}

func TestInvalidConfigFailsRootCommand(t *testing.T) {
	t.Setenv("NEXUS_HISTORY_BACKEND", "redis")

	_, _, err := executeCLI(t, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported history backend "redis"`)
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv("NEXUS_SECRETS_BACKEND", "file")

	root, cleanup := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	cleanup()
	return stdout.String(), stderr.String(), err
}
