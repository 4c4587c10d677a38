package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bnema/nexus-cli/internal/domain"
	"github.com/bnema/nexus-cli/internal/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const DefaultCredentialKey = "nexus/openai_api_key"

type SessionConfig struct {
	Instructions  string
	CredentialKey string
	Logger        *zap.Logger
	// NewID defaults to random UUIDs.
	NewID func() string
}

// Session owns everything a chat needs: the credential, the conversation and
// the completion client. At most one completion request is in flight.
type Session struct {
	history       *ConversationStore
	secrets       ports.SecretStore
	client        ports.CompletionClient
	clock         ports.Clock
	logger        *zap.Logger
	newID         func() string
	instructions  string
	credentialKey string

	inflight *semaphore.Weighted

	mu         sync.RWMutex
	credential string
}

func NewSession(history *ConversationStore, secrets ports.SecretStore, client ports.CompletionClient, clock ports.Clock, cfg SessionConfig) *Session {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if cfg.CredentialKey == "" {
		cfg.CredentialKey = DefaultCredentialKey
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	return &Session{
		history:       history,
		secrets:       secrets,
		client:        client,
		clock:         clock,
		logger:        cfg.Logger,
		newID:         cfg.NewID,
		instructions:  cfg.Instructions,
		credentialKey: cfg.CredentialKey,
		inflight:      semaphore.NewWeighted(1),
	}
}

// Start restores the credential and the conversation. Neither failing is
// fatal: the session simply starts without them.
func (s *Session) Start(ctx context.Context) {
	s.loadCredential(ctx)
	turns := s.history.Load(ctx)
	s.logger.Debug("session started", zap.Bool("credential", s.HasCredential()), zap.Int("turns", len(turns)))
}

func (s *Session) loadCredential(ctx context.Context) {
	value, err := s.secrets.Get(ctx, s.credentialKey)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			s.logger.Debug("no credential configured", zap.String("key", s.credentialKey))
		} else {
			s.logger.Warn("load credential failed", zap.String("key", s.credentialKey), zap.Error(err))
		}
		value = ""
	}

	s.mu.Lock()
	s.credential = strings.TrimSpace(value)
	s.mu.Unlock()
}

func (s *Session) HasCredential() bool {
	return s.currentCredential() != ""
}

func (s *Session) CredentialKey() string {
	return s.credentialKey
}

func (s *Session) currentCredential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.credential
}

func (s *Session) SaveCredential(ctx context.Context, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return domain.ErrEmptyInput
	}

	if err := s.secrets.Put(ctx, s.credentialKey, trimmed); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	s.mu.Lock()
	s.credential = trimmed
	s.mu.Unlock()

	return nil
}

func (s *Session) RemoveCredential(ctx context.Context) error {
	if err := s.secrets.Delete(ctx, s.credentialKey); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}

	s.mu.Lock()
	s.credential = ""
	s.mu.Unlock()

	return nil
}

func (s *Session) Turns() []domain.Turn {
	return s.history.Turns()
}

func (s *Session) Clear() {
	s.history.Clear()
}

// Busy reports whether a completion request is in flight.
func (s *Session) Busy() bool {
	if !s.inflight.TryAcquire(1) {
		return true
	}
	s.inflight.Release(1)
	return false
}

func (s *Session) Close() error {
	return s.history.Close()
}

// Begin validates text, takes the single-flight guard and appends the user
// turn. It fails with ErrEmptyInput, ErrMissingCredential or ErrBusy without
// touching the conversation. The returned Exchange owns the guard until
// Complete returns.
func (s *Session) Begin(text string) (*Exchange, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return nil, domain.ErrEmptyInput
	}

	credential := s.currentCredential()
	if credential == "" {
		return nil, domain.ErrMissingCredential
	}

	if !s.inflight.TryAcquire(1) {
		return nil, domain.ErrBusy
	}

	userTurn, err := s.newTurn(domain.RoleUser, content)
	if err == nil {
		err = s.history.Append(userTurn)
	}
	if err != nil {
		s.inflight.Release(1)
		return nil, fmt.Errorf("append user turn: %w", err)
	}

	return &Exchange{session: s, userTurn: userTurn, credential: credential}, nil
}

// Send runs a whole exchange and returns the assistant turn. Remote and
// network failures are not returned: they become an "Error: ..." turn.
func (s *Session) Send(ctx context.Context, text string) (domain.Turn, error) {
	exchange, err := s.Begin(text)
	if err != nil {
		return domain.Turn{}, err
	}

	return exchange.Complete(ctx), nil
}

func (s *Session) complete(ctx context.Context, userText string, credential string) domain.Turn {
	answer, err := s.client.Send(ctx, ports.CompletionRequest{
		Instructions: s.instructions,
		UserText:     userText,
		Credential:   credential,
	})
	if err != nil {
		s.logger.Warn("completion failed", zap.Error(err))
		answer = domain.ErrorTurnPrefix + err.Error()
	}
	if answer == "" {
		answer = domain.NoContentPlaceholder
	}

	reply, err := s.newTurn(domain.RoleAssistant, answer)
	if err != nil {
		s.logger.Error("build assistant turn", zap.Error(err))
		return domain.Turn{}
	}
	if err := s.history.Append(reply); err != nil {
		s.logger.Error("append assistant turn", zap.Error(err))
	}

	return reply
}

func (s *Session) newTurn(role domain.Role, content string) (domain.Turn, error) {
	return domain.NewTurn(domain.TurnID(s.newID()), role, content, s.clock.Now())
}

// Exchange is one in-flight completion request.
type Exchange struct {
	session    *Session
	userTurn   domain.Turn
	credential string

	once  sync.Once
	reply domain.Turn
}

func (e *Exchange) UserTurn() domain.Turn {
	return e.userTurn
}

// Complete performs the request, appends the assistant turn and releases the
// session's guard. Calling it again returns the same turn.
func (e *Exchange) Complete(ctx context.Context) domain.Turn {
	e.once.Do(func() {
		defer e.session.inflight.Release(1)
		e.reply = e.session.complete(ctx, e.userTurn.Content, e.credential)
	})

	return e.reply
}
