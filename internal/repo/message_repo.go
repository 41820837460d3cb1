// This file provides repository functions for persisted chat messages. Rows
// are scoped by (session, surface) and ordered by a per-scope sequence number
// so insertion order survives identical timestamps.
package repo

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/bibleai/internal/domain"
)

// AppendMessage stores msg at the end of the (sessionID, surface) log.
func AppendMessage(ctx context.Context, db *gorm.DB, sessionID string, surface domain.Surface, msg domain.ChatMessage) error {
	followUps, err := json.Marshal(msg.FollowUps)
	if err != nil {
		return err
	}
	refs, err := json.Marshal(msg.References)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int64
		if err := tx.Model(&domain.MessageRecord{}).
			Where("session_id = ? AND surface = ?", sessionID, string(surface)).
			Select("COALESCE(MAX(seq), 0) + 1").
			Scan(&next).Error; err != nil {
			return err
		}
		rec := &domain.MessageRecord{
			ID:         uuid.NewString(),
			SessionID:  sessionID,
			Surface:    string(surface),
			Seq:        next,
			MessageID:  msg.ID,
			Role:       string(msg.Role),
			Text:       msg.Text,
			Timestamp:  msg.Timestamp,
			FollowUps:  datatypes.JSON(followUps),
			References: datatypes.JSON(refs),
		}
		return tx.Create(rec).Error
	})
}

// ListMessages returns the whole (sessionID, surface) log in insertion order.
func ListMessages(ctx context.Context, db *gorm.DB, sessionID string, surface domain.Surface) ([]domain.ChatMessage, error) {
	var rows []domain.MessageRecord
	err := db.WithContext(ctx).
		Where("session_id = ? AND surface = ?", sessionID, string(surface)).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChatMessage, 0, len(rows))
	for _, r := range rows {
		m, err := toChatMessage(r)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func toChatMessage(r domain.MessageRecord) (domain.ChatMessage, error) {
	m := domain.ChatMessage{
		ID:        r.MessageID,
		Role:      domain.Role(r.Role),
		Text:      r.Text,
		Timestamp: r.Timestamp,
	}
	if len(r.FollowUps) > 0 {
		if err := json.Unmarshal(r.FollowUps, &m.FollowUps); err != nil {
			return m, err
		}
	}
	if len(r.References) > 0 {
		if err := json.Unmarshal(r.References, &m.References); err != nil {
			return m, err
		}
	}
	return m, nil
}
