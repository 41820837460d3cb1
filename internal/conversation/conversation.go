// Package conversation holds the append-only message log of one chat surface.
//
// A Log keeps messages in memory in insertion order and optionally mirrors
// each append to a Store so history survives restarts. A Log also carries the
// surface's in-flight flag: only one request per surface may be pending.
package conversation

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"github.com/tbourn/bibleai/internal/domain"
	"github.com/tbourn/bibleai/internal/repo"
)

// ErrBusy is returned by Begin while a previous request is still pending.
var ErrBusy = errors.New("a request is already in progress")

// Store persists messages per (session, surface).
type Store interface {
	Append(ctx context.Context, sessionID string, surface domain.Surface, msg domain.ChatMessage) error
	List(ctx context.Context, sessionID string, surface domain.Surface) ([]domain.ChatMessage, error)
}

// SQLStore persists messages in the chat_messages table.
type SQLStore struct {
	DB *gorm.DB
}

func (s SQLStore) Append(ctx context.Context, sessionID string, surface domain.Surface, msg domain.ChatMessage) error {
	return repo.AppendMessage(ctx, s.DB, sessionID, surface, msg)
}

func (s SQLStore) List(ctx context.Context, sessionID string, surface domain.Surface) ([]domain.ChatMessage, error) {
	return repo.ListMessages(ctx, s.DB, sessionID, surface)
}

// Log is the ordered message history of one surface. Safe for concurrent use.
type Log struct {
	mu        sync.RWMutex
	sessionID string
	surface   domain.Surface
	msgs      []domain.ChatMessage
	store     Store
	busy      bool
}

// New returns an empty, memory-only log.
func New(surface domain.Surface) *Log {
	return &Log{surface: surface}
}

// Open returns a log backed by store, preloaded with the persisted history.
// A nil store behaves like New.
func Open(ctx context.Context, store Store, sessionID string, surface domain.Surface) (*Log, error) {
	l := &Log{sessionID: sessionID, surface: surface, store: store}
	if store == nil {
		return l, nil
	}
	msgs, err := store.List(ctx, sessionID, surface)
	if err != nil {
		return nil, err
	}
	l.msgs = msgs
	return l, nil
}

// Append adds msg at the end. The in-memory log always keeps the message;
// a persistence failure is reported to the caller.
func (l *Log) Append(ctx context.Context, msg domain.ChatMessage) error {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	return l.store.Append(ctx, l.sessionID, l.surface, msg)
}

// Messages returns a copy of the whole log.
func (l *Log) Messages() []domain.ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.ChatMessage, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

// Page returns up to limit messages starting at offset.
func (l *Log) Page(offset, limit int) []domain.ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(l.msgs) || limit <= 0 {
		return []domain.ChatMessage{}
	}
	end := offset + limit
	if end > len(l.msgs) {
		end = len(l.msgs)
	}
	out := make([]domain.ChatMessage, end-offset)
	copy(out, l.msgs[offset:end])
	return out
}

// Begin marks the surface as busy. It fails with ErrBusy when a request is
// already pending. Every successful Begin must be paired with End.
func (l *Log) Begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return ErrBusy
	}
	l.busy = true
	return nil
}

// End clears the busy flag.
func (l *Log) End() {
	l.mu.Lock()
	l.busy = false
	l.mu.Unlock()
}
