package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/bnema/nexus-cli/internal/domain"
	"github.com/bnema/nexus-cli/internal/ports"
	"go.uber.org/zap"
)

// ConversationStore holds the conversation in memory and mirrors every
// mutation to a KVStore as a full overwrite. Writes happen on a single
// background goroutine; a newer snapshot replaces one not yet written.
type ConversationStore struct {
	kv     ports.KVStore
	key    string
	logger *zap.Logger

	mu     sync.Mutex
	turns  []domain.Turn
	ids    map[domain.TurnID]struct{}
	closed bool

	pending chan []domain.Turn
	done    chan struct{}
}

func NewConversationStore(kv ports.KVStore, key string, logger *zap.Logger) *ConversationStore {
	if key == "" {
		key = HistoryKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &ConversationStore{
		kv:      kv,
		key:     key,
		logger:  logger,
		ids:     map[domain.TurnID]struct{}{},
		pending: make(chan []domain.Turn, 1),
		done:    make(chan struct{}),
	}
	go s.persistLoop()

	return s
}

// Load replaces the in-memory conversation with the persisted one. Missing or
// unreadable history loads as empty.
func (s *ConversationStore) Load(ctx context.Context) []domain.Turn {
	turns := s.read(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = turns
	s.ids = make(map[domain.TurnID]struct{}, len(turns))
	for _, turn := range turns {
		s.ids[turn.ID] = struct{}{}
	}

	return slices.Clone(s.turns)
}

func (s *ConversationStore) Turns() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.turns)
}

func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.turns)
}

// Append adds turn at the end and schedules persistence. Only invalid or
// duplicate turns are rejected; persistence failures are logged.
func (s *ConversationStore) Append(turn domain.Turn) error {
	if err := turn.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.ids[turn.ID]; dup {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateTurn, turn.ID)
	}

	s.turns = append(s.turns, turn)
	s.ids[turn.ID] = struct{}{}
	s.scheduleLocked()

	return nil
}

func (s *ConversationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = nil
	s.ids = map[domain.TurnID]struct{}{}
	s.scheduleLocked()
}

// Close writes the last scheduled snapshot and stops the writer. Mutations
// after Close stay in memory.
func (s *ConversationStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.pending)
	s.mu.Unlock()

	<-s.done
	return nil
}

func (s *ConversationStore) read(ctx context.Context) []domain.Turn {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warn("read history failed, starting empty", zap.String("key", s.key), zap.Error(err))
		}
		return nil
	}

	turns, err := decodeHistory(data)
	if err != nil {
		s.logger.Warn("discarding unreadable history", zap.String("key", s.key), zap.Error(err))
		return nil
	}

	return turns
}

// scheduleLocked must be called with s.mu held.
func (s *ConversationStore) scheduleLocked() {
	if s.closed {
		s.logger.Warn("history store closed, change kept in memory only", zap.Int("turns", len(s.turns)))
		return
	}

	select {
	case <-s.pending:
	default:
	}
	s.pending <- slices.Clone(s.turns)
}

func (s *ConversationStore) persistLoop() {
	defer close(s.done)

	for snapshot := range s.pending {
		s.write(snapshot)
	}
}

func (s *ConversationStore) write(turns []domain.Turn) {
	data, err := encodeHistory(turns)
	if err != nil {
		s.logger.Warn("persist history failed", zap.Error(err))
		return
	}

	if err := s.kv.Put(context.Background(), s.key, data); err != nil {
		s.logger.Warn("persist history failed", zap.String("key", s.key), zap.Int("turns", len(turns)), zap.Error(err))
		return
	}

	s.logger.Debug("history persisted", zap.Int("turns", len(turns)))
}
