package application

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bnema/nexus-cli/internal/domain"
)

// HistoryKey is the KV key holding the serialized conversation.
const HistoryKey = "NEXUS_HISTORY"

// turnRecord is the persisted form of a turn; ts is unix milliseconds.
type turnRecord struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
	TS      int64  `json:"ts"`
}

func encodeHistory(turns []domain.Turn) ([]byte, error) {
	records := make([]turnRecord, 0, len(turns))
	for _, turn := range turns {
		records = append(records, turnRecord{
			ID:      string(turn.ID),
			Role:    string(turn.Role),
			Content: turn.Content,
			TS:      turn.CreatedAt.UnixMilli(),
		})
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}

	return data, nil
}

func decodeHistory(data []byte) ([]domain.Turn, error) {
	var records []turnRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	turns := make([]domain.Turn, 0, len(records))
	seen := make(map[domain.TurnID]struct{}, len(records))
	for i, record := range records {
		turn, err := domain.NewTurn(domain.TurnID(record.ID), domain.Role(record.Role), record.Content, time.UnixMilli(record.TS))
		if err != nil {
			return nil, fmt.Errorf("decode history entry %d: %w", i, err)
		}
		if _, dup := seen[turn.ID]; dup {
			return nil, fmt.Errorf("decode history entry %d: %w: %s", i, domain.ErrDuplicateTurn, turn.ID)
		}
		seen[turn.ID] = struct{}{}
		turns = append(turns, turn)
	}

	return turns, nil
}
