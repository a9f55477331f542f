package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agentloop/internal/logger"
	"agentloop/internal/store"
)

// StorePersister keeps session transcripts in the SQLite store.
type StorePersister struct {
	db *store.DB
}

func NewStorePersister(db *store.DB) *StorePersister {
	return &StorePersister{db: db}
}

func (p *StorePersister) Load(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	rows, err := p.db.RecentMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(rows))
	for _, row := range rows {
		role, ok := ParseRole(row.Role)
		if !ok {
			return nil, fmt.Errorf("%w: stored message %d has role %q", ErrInvalidMessage, row.ID, row.Role)
		}
		msg := Message{
			Role:       role,
			Content:    row.Content,
			Name:       row.Name,
			ToolCallID: row.ToolCallID,
		}
		if row.ToolCalls != "" {
			if err := json.Unmarshal([]byte(row.ToolCalls), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decoding tool calls of message %d: %w", row.ID, err)
			}
		}
		msgs = append(msgs, msg)
	}

	valid, dropped := ValidMessages(msgs)
	if dropped > 0 {
		logger.Warnf("Skipped %d invalid stored messages in session %s", dropped, sessionID)
	}
	return valid, nil
}

func (p *StorePersister) Save(ctx context.Context, sessionID string, msgs []Message) error {
	rows := make([]store.Message, 0, len(msgs))
	for _, msg := range msgs {
		row := store.Message{
			Role:       string(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		if msg.HasToolCalls() {
			data, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("encoding tool calls: %w", err)
			}
			row.ToolCalls = string(data)
		}
		rows = append(rows, row)
	}
	return p.db.InsertMessages(ctx, sessionID, rows)
}

func (p *StorePersister) Delete(ctx context.Context, sessionID string) error {
	err := p.db.DeleteSession(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil
	}
	return err
}
