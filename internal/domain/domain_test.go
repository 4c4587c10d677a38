package domain

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTurnNormalizesTimestamp(t *testing.T) {
	local := time.FixedZone("CEST", 2*60*60)
	createdAt := time.Date(2026, 10, 19, 14, 30, 0, 123_456_789, local)

	turn, err := NewTurn("t-1", RoleUser, "hello", createdAt)
	require.NoError(t, err)

	assert.Equal(t, time.UTC, turn.CreatedAt.Location())
	assert.Equal(t, 123_000_000, turn.CreatedAt.Nanosecond())
	assert.True(t, turn.CreatedAt.Equal(createdAt.Truncate(time.Millisecond)))
}

func TestNewTurnRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		id      TurnID
		role    Role
		content string
		wantErr string
	}{
		{name: "empty id", id: " ", role: RoleUser, content: "hi", wantErr: "id is empty"},
		{name: "unknown role", id: "t-1", role: "system", content: "hi", wantErr: "unsupported role"},
		{name: "empty content", id: "t-1", role: RoleAssistant, content: "", wantErr: "content is empty"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTurn(tc.id, tc.role, tc.content, time.Now())
			require.ErrorIs(t, err, ErrInvalidTurn)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestRemoteErrorMessageCarriesStatusAndBody(t *testing.T) {
	err := error(&RemoteError{StatusCode: 401, Body: `{"error":"bad key"}`})

	assert.Equal(t, `HTTP 401: {"error":"bad key"}`, err.Error())

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 401, remote.StatusCode)
}

func TestNetworkErrorUnwrapsCause(t *testing.T) {
	err := &NetworkError{Message: "perform request: unexpected EOF", Err: io.ErrUnexpectedEOF}

	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "perform request: unexpected EOF", err.Error())
}

func TestTurnFailed(t *testing.T) {
	assert.True(t, Turn{Role: RoleAssistant, Content: "Error: HTTP 500: boom"}.Failed())
	assert.False(t, Turn{Role: RoleAssistant, Content: "All good."}.Failed())
	assert.False(t, Turn{Role: RoleUser, Content: "Error: why does this fail?"}.Failed())
}
