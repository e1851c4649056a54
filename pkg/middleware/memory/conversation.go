// Package memory keeps per-session chat history for the transports. History is
// stored as JSON in a cache.Store so it can live in process, in BadgerDB or in
// Redis, and expires after a period of inactivity.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/middleware/cache"
)

// Roles used in history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Defaults for NewConversation.
const (
	DefaultTTL       = 7 * 24 * time.Hour
	DefaultMaxTurns  = 20
	DefaultKeyPrefix = "rag:history:"
)

// Message is one chat turn.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// String implements the Stringer interface
func (m Message) String() string {
	return fmt.Sprintf("%s: %s", m.Role, m.Content)
}

// ConversationMemory stores ordered chat history per session.
//
// Example:
//
//	mem := memory.NewConversationWithStore(redisStore, memory.WithTTL(24*time.Hour))
//	_ = mem.Append(ctx, "session-1", memory.Message{Role: memory.RoleUser, Content: q})
type ConversationMemory struct {
	store    cache.Store
	ttl      time.Duration
	maxTurns int
	prefix   string
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a ConversationMemory.
type Option func(*ConversationMemory)

// WithTTL sets how long an idle session's history is kept.
func WithTTL(ttl time.Duration) Option {
	return func(cm *ConversationMemory) { cm.ttl = ttl }
}

// WithMaxTurns caps stored history to the most recent n messages.
func WithMaxTurns(n int) Option {
	return func(cm *ConversationMemory) {
		if n > 0 {
			cm.maxTurns = n
		}
	}
}

// WithKeyPrefix sets the store key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(cm *ConversationMemory) { cm.prefix = prefix }
}

// NewConversation creates a memory backed by an in-process store.
func NewConversation(opts ...Option) *ConversationMemory {
	return NewConversationWithStore(cache.NewInMemoryStore(), opts...)
}

// NewConversationWithStore creates a memory over store.
func NewConversationWithStore(store cache.Store, opts ...Option) *ConversationMemory {
	cm := &ConversationMemory{
		store:    store,
		ttl:      DefaultTTL,
		maxTurns: DefaultMaxTurns,
		prefix:   DefaultKeyPrefix,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(cm)
	}
	return cm
}

type conversationData struct {
	Messages []Message `json:"messages"`
}

func (cm *ConversationMemory) key(sessionID string) string {
	return cm.prefix + sessionID
}

func (cm *ConversationMemory) lock(sessionID string) *sync.Mutex {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	l, ok := cm.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		cm.locks[sessionID] = l
	}
	return l
}

// History returns the session's messages, oldest first. An unknown session
// has empty history.
func (cm *ConversationMemory) History(ctx context.Context, sessionID string) ([]Message, error) {
	data, err := cm.store.Get(ctx, cm.key(sessionID))
	if err != nil {
		return nil, calque.WrapErr(ctx, err, "failed to load history")
	}
	if data == nil {
		return []Message{}, nil
	}

	var conv conversationData
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, calque.WrapErr(ctx, err, "failed to unmarshal conversation")
	}
	return conv.Messages, nil
}

// Append adds messages to the session, drops the oldest beyond the turn cap,
// and refreshes the session TTL. Messages with a zero Time are stamped now.
func (cm *ConversationMemory) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if strings.TrimSpace(sessionID) == "" {
		return calque.NewErr(ctx, "session id is required")
	}
	if len(msgs) == 0 {
		return nil
	}

	l := cm.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	history, err := cm.History(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if m.Time.IsZero() {
			m.Time = cm.now()
		}
		history = append(history, m)
	}
	if len(history) > cm.maxTurns {
		history = history[len(history)-cm.maxTurns:]
	}

	data, err := json.Marshal(conversationData{Messages: history})
	if err != nil {
		return calque.WrapErr(ctx, err, "failed to marshal conversation")
	}
	if err := cm.store.Set(ctx, cm.key(sessionID), data, cm.ttl); err != nil {
		return calque.WrapErr(ctx, err, "failed to save history")
	}
	return nil
}

// Clear removes the session's history.
func (cm *ConversationMemory) Clear(ctx context.Context, sessionID string) error {
	if err := cm.store.Delete(ctx, cm.key(sessionID)); err != nil {
		return calque.WrapErr(ctx, err, "failed to clear history")
	}
	return nil
}

// Sessions lists session ids with stored history.
func (cm *ConversationMemory) Sessions(ctx context.Context) ([]string, error) {
	keys, err := cm.store.Keys(ctx, cm.prefix)
	if err != nil {
		return nil, calque.WrapErr(ctx, err, "failed to list sessions")
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, cm.prefix))
	}
	return ids, nil
}
