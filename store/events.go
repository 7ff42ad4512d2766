package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType benennt die Session-Ereignisse, die an Clients gestreamt werden.
type EventType string

const (
	EventSessionCreated  EventType = "session_created"
	EventSessionUpdated  EventType = "session_updated"
	EventSessionDeleted  EventType = "session_deleted"
	EventMessageAppended EventType = "message_appended"
	EventCitationSaved   EventType = "citation_saved"
)

// Event beschreibt eine Änderung an den Sessions eines Nutzers.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"userId"`
	SessionID uuid.UUID `json:"sessionId"`
	At        time.Time `json:"at"`
}

// Bus verteilt Session-Ereignisse an Abonnenten. Abonniert wird pro Nutzer;
// die Abmeldefunktion muss beim Trennen des Clients aufgerufen werden.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(userID string) (<-chan Event, func())
	Close() error
}

// MemoryBus ist die In-Process-Variante des Bus für Einzelinstanzen und Tests.
type MemoryBus struct {
	Logger *zap.Logger

	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Event
}

// NewMemoryBus erstellt einen neuen In-Memory-Bus.
func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	return &MemoryBus{
		Logger: logger,
		subs:   make(map[string]map[int]chan Event),
	}
}

// Publish stellt das Ereignis allen Abonnenten des Nutzers zu. Langsame
// Abonnenten mit vollem Puffer verlieren das Ereignis, statt den Bus zu
// blockieren.
func (b *MemoryBus) Publish(ctx context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
			b.Logger.Warn("Abonnent zu langsam, Ereignis verworfen",
				zap.String("user_id", ev.UserID),
				zap.String("type", string(ev.Type)))
		}
	}
	return nil
}

// Subscribe registriert einen Abonnenten für die Ereignisse eines Nutzers.
func (b *MemoryBus) Subscribe(userID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan Event, 16)

	if b.subs[userID] == nil {
		b.subs[userID] = make(map[int]chan Event)
	}
	b.subs[userID][id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subs[userID]; ok {
			if c, ok := subs[id]; ok {
				delete(subs, id)
				close(c)
			}
			if len(subs) == 0 {
				delete(b.subs, userID)
			}
		}
	}
	return ch, unsubscribe
}

// Close schließt alle offenen Abonnements.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for userID, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, userID)
	}
	return nil
}

// RedisBus verteilt Ereignisse über einen Redis-Kanal an alle Instanzen.
// Veröffentlicht wird nur nach Redis; ein Forwarder speist empfangene
// Ereignisse (auch die eigenen) in den lokalen Bus ein, damit jede Instanz
// ihre Abonnenten bedient.
type RedisBus struct {
	Logger  *zap.Logger
	rdb     *redis.Client
	channel string
	local   *MemoryBus
	cancel  context.CancelFunc
}

// NewRedisBus verbindet sich zu Redis und startet den Forwarder.
func NewRedisBus(addr, channel string, logger *zap.Logger) (*RedisBus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	fwdCtx, fwdCancel := context.WithCancel(context.Background())
	b := &RedisBus{
		Logger:  logger,
		rdb:     rdb,
		channel: channel,
		local:   NewMemoryBus(logger),
		cancel:  fwdCancel,
	}
	if err := b.startForwarder(fwdCtx); err != nil {
		fwdCancel()
		_ = rdb.Close()
		return nil, err
	}
	return b, nil
}

// Publish serialisiert das Ereignis und veröffentlicht es auf dem Kanal.
func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe registriert einen lokalen Abonnenten; zugestellt wird, was der
// Forwarder vom Kanal liest.
func (b *RedisBus) Subscribe(userID string) (<-chan Event, func()) {
	return b.local.Subscribe(userID)
}

func (b *RedisBus) startForwarder(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// Stellt sicher, dass das Abonnement tatsächlich steht.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.Logger.Warn("Ungültiges Ereignis auf Redis-Kanal", zap.Error(err))
					continue
				}
				_ = b.local.Publish(ctx, ev)
			}
		}
	}()

	return nil
}

// Close stoppt den Forwarder und trennt die Redis-Verbindung.
func (b *RedisBus) Close() error {
	b.cancel()
	_ = b.local.Close()
	return b.rdb.Close()
}
