package domain

import (
	"fmt"
	"strings"
	"time"
)

// NoContentPlaceholder is the assistant text used when a successful
// completion carries no recognizable answer.
const NoContentPlaceholder = "[No content]"

// ErrorTurnPrefix starts the content of an assistant turn recording a failed
// completion.
const ErrorTurnPrefix = "Error: "

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

type TurnID string

type Turn struct {
	ID        TurnID
	Role      Role
	Content   string
	CreatedAt time.Time
}

// NewTurn builds a validated turn. CreatedAt is normalized to UTC at
// millisecond precision, the resolution of the persisted history.
func NewTurn(id TurnID, role Role, content string, createdAt time.Time) (Turn, error) {
	turn := Turn{
		ID:        id,
		Role:      role,
		Content:   content,
		CreatedAt: NormalizeTime(createdAt),
	}
	if err := turn.Validate(); err != nil {
		return Turn{}, err
	}

	return turn, nil
}

func (t Turn) Validate() error {
	if strings.TrimSpace(string(t.ID)) == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidTurn)
	}
	if !t.Role.Valid() {
		return fmt.Errorf("%w: unsupported role %q", ErrInvalidTurn, t.Role)
	}
	if t.Content == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidTurn)
	}

	return nil
}

// Failed reports whether t records a failed completion rather than an answer.
func (t Turn) Failed() bool {
	return t.Role == RoleAssistant && strings.HasPrefix(t.Content, ErrorTurnPrefix)
}

func NormalizeTime(value time.Time) time.Time {
	return value.UTC().Truncate(time.Millisecond)
}
