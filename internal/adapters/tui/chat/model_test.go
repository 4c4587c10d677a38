package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	boltkv "github.com/bnema/nexus-cli/internal/adapters/kv/bolt"
	"github.com/bnema/nexus-cli/internal/application"
	"github.com/bnema/nexus-cli/internal/domain"
	"github.com/bnema/nexus-cli/internal/ports"
	"github.com/bnema/nexus-cli/internal/ports/mocks"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	session *application.Session
	secrets *mocks.MockSecretStore
	client  *mocks.MockCompletionClient
}

func newFixture(t *testing.T, credential string) fixture {
	t.Helper()

	kv, err := boltkv.NewStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	secrets := mocks.NewMockSecretStore(t)
	if credential == "" {
		secrets.EXPECT().Get(mock.Anything, application.DefaultCredentialKey).Return("", fmt.Errorf("lookup: %w", domain.ErrSecretNotFound)).Once()
	} else {
		secrets.EXPECT().Get(mock.Anything, application.DefaultCredentialKey).Return(credential, nil).Once()
	}
	client := mocks.NewMockCompletionClient(t)

	session := application.NewSession(application.NewConversationStore(kv, application.HistoryKey, nil), secrets, client, nil, application.SessionConfig{})
	t.Cleanup(func() { _ = session.Close() })
	session.Start(context.Background())

	return fixture{session: session, secrets: secrets, client: client}
}

func newSizedModel(t *testing.T, session Session) tea.Model {
	t.Helper()

	m := New(context.Background(), session, Options{Model: "o4-mini", MarkdownStyle: "notty"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next
}

func typeText(t *testing.T, m tea.Model, text string) tea.Model {
	t.Helper()

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next
}

func press(m tea.Model, key tea.KeyType) (tea.Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: key})
}

// collect runs cmd and any batched commands, returning the produced messages.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}

	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}

	var out []tea.Msg
	for _, inner := range batch {
		out = append(out, collect(inner)...)
	}
	return out
}

func findReply(t *testing.T, msgs []tea.Msg) replyMsg {
	t.Helper()

	for _, msg := range msgs {
		if reply, ok := msg.(replyMsg); ok {
			return reply
		}
	}
	t.Fatalf("no reply message in %#v", msgs)
	return replyMsg{}
}

func TestViewBeforeWindowSize(t *testing.T) {
	f := newFixture(t, "sk-test")

	assert.Equal(t, "Initializing...", New(context.Background(), f.session, Options{}).View())
}

func TestEnterSavesKeyWhenMissing(t *testing.T) {
	f := newFixture(t, "")
	f.secrets.EXPECT().Put(mock.Anything, application.DefaultCredentialKey, "sk-abc").Return(nil).Once()

	m := newSizedModel(t, f.session)
	assert.Contains(t, m.View(), "enter: Save key")
	assert.Contains(t, m.(Model).notice, "Missing API key")

	m = typeText(t, m, "sk-abc")
	m, cmd := press(m, tea.KeyEnter)
	assert.Nil(t, cmd)

	assert.True(t, f.session.HasCredential())
	assert.Equal(t, "API key saved.", m.(Model).notice)
	assert.Empty(t, m.(Model).input.Value())
	assert.Contains(t, m.View(), "enter: Send")
	assert.NotContains(t, m.View(), "sk-abc")
}

func TestEnterSendsAndShowsReply(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.client.EXPECT().Send(mock.Anything, mock.MatchedBy(func(req ports.CompletionRequest) bool {
		return req.UserText == "hello nexus" && req.Credential == "sk-test"
	})).Return("Hello! How can I help?", nil).Once()

	m := newSizedModel(t, f.session)
	m = typeText(t, m, "hello nexus")
	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)

	assert.True(t, m.(Model).busy)
	assert.Contains(t, m.View(), "hello nexus")
	assert.Contains(t, m.View(), "Thinking")
	assert.Empty(t, m.(Model).input.Value())

	reply := findReply(t, collect(cmd))
	assert.Equal(t, "Hello! How can I help?", reply.turn.Content)

	m, _ = m.Update(reply)
	assert.False(t, m.(Model).busy)
	assert.Contains(t, m.View(), "Hello! How can I help?")
	assert.Contains(t, m.View(), "ASSISTANT")
	assert.Len(t, f.session.Turns(), 2)
}

func TestEnterWhileBusyIsIgnored(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.client.EXPECT().Send(mock.Anything, mock.Anything).Return("done", nil).Once()

	m := newSizedModel(t, f.session)
	m = typeText(t, m, "first")
	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)

	m = typeText(t, m, "second")
	m, second := press(m, tea.KeyEnter)
	assert.Nil(t, second)
	assert.Equal(t, "Still waiting for the previous reply.", m.(Model).notice)
	assert.Len(t, f.session.Turns(), 1)

	m, _ = m.Update(findReply(t, collect(cmd)))
	assert.False(t, m.(Model).busy)
	assert.Len(t, f.session.Turns(), 2)
}

func TestEnterWithBlankInputDoesNothing(t *testing.T) {
	f := newFixture(t, "sk-test")

	m := newSizedModel(t, f.session)
	m = typeText(t, m, "   ")
	_, cmd := press(m, tea.KeyEnter)

	assert.Nil(t, cmd)
	assert.Empty(t, f.session.Turns())
}

func TestRemoteFailureShowsErrorTurn(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.client.EXPECT().Send(mock.Anything, mock.Anything).Return("", &domain.RemoteError{StatusCode: 401, Body: "invalid key"}).Once()

	m := newSizedModel(t, f.session)
	m = typeText(t, m, "hi")
	m, cmd := press(m, tea.KeyEnter)
	m, _ = m.Update(findReply(t, collect(cmd)))

	assert.Contains(t, m.View(), "Error: HTTP 401: invalid key")
}

func TestCtrlLClearsChat(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.client.EXPECT().Send(mock.Anything, mock.Anything).Return("answer", nil).Once()

	_, err := f.session.Send(context.Background(), "question")
	require.NoError(t, err)

	m := newSizedModel(t, f.session)
	assert.Contains(t, m.View(), "question")

	m, _ = press(m, tea.KeyCtrlL)
	assert.Empty(t, f.session.Turns())
	assert.Equal(t, "Chat cleared.", m.(Model).notice)
	assert.Contains(t, m.View(), "No messages yet.")
}

func TestCtrlKReportsAndReplacesKey(t *testing.T) {
	f := newFixture(t, "sk-old")
	f.secrets.EXPECT().Put(mock.Anything, application.DefaultCredentialKey, "sk-new").Return(nil).Once()

	m := newSizedModel(t, f.session)
	m, _ = press(m, tea.KeyCtrlK)
	assert.Contains(t, m.(Model).notice, "API key is saved (nexus/openai_api_key)")
	assert.Contains(t, m.View(), "enter: Save key")

	m = typeText(t, m, "sk-new")
	m, _ = press(m, tea.KeyEnter)
	assert.Equal(t, "API key saved.", m.(Model).notice)
	assert.Contains(t, m.View(), "enter: Send")
}

func TestCtrlKTwiceCancelsKeyEntry(t *testing.T) {
	f := newFixture(t, "sk-old")

	m := newSizedModel(t, f.session)
	m, _ = press(m, tea.KeyCtrlK)
	m, _ = press(m, tea.KeyCtrlK)

	assert.False(t, m.(Model).keyEntry)
	assert.Empty(t, m.(Model).notice)
}

func TestFooterShowsModel(t *testing.T) {
	f := newFixture(t, "sk-test")

	m := newSizedModel(t, f.session)

	assert.Contains(t, m.View(), "Model: o4-mini")
}

func TestEscQuits(t *testing.T) {
	f := newFixture(t, "sk-test")

	_, cmd := press(newSizedModel(t, f.session), tea.KeyEsc)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
