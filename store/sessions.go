package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"verifai/codec"
	"verifai/models"
)

// ErrSessionNotFound kommt zurück, wenn eine Session-ID nicht existiert.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persistiert Sessions, Nachrichten und Zitate in Postgres und
// veröffentlicht Änderungen auf dem Event-Bus. Nachrichten-Payloads laufen
// beim Schreiben durch den Codec und beim Lesen wieder zurück.
type SessionStore struct {
	DB     *gorm.DB
	Logger *zap.Logger
	Bus    Bus
}

// NewSessionStore erstellt einen neuen SessionStore.
func NewSessionStore(db *gorm.DB, logger *zap.Logger, bus Bus) *SessionStore {
	return &SessionStore{DB: db, Logger: logger, Bus: bus}
}

// EnsureInitialSession garantiert, dass der Nutzer mindestens eine Session
// hat. Existiert schon eine, kommt die zuletzt aktualisierte zurück; sonst
// wird eine frische Session mit Begrüßungsnachricht angelegt. Legen zwei
// parallele Aufrufer gleichzeitig an, entstehen schlimmstenfalls zwei
// Sessions, aber keine halben.
func (s *SessionStore) EnsureInitialSession(ctx context.Context, userID string) (*models.ChatSession, error) {
	var existing models.ChatSession
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC, created_at DESC").
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return s.CreateSession(ctx, userID, "")
}

// CreateSession legt eine neue Session samt Begrüßungsnachricht in einer
// Transaktion an.
func (s *SessionStore) CreateSession(ctx context.Context, userID, title string) (*models.ChatSession, error) {
	if title == "" {
		title = "Untitled"
	}
	session := &models.ChatSession{Title: title, UserID: userID}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		welcome := welcomeMessage(session.ID)
		return tx.Create(welcome).Error
	})
	if err != nil {
		return nil, fmt.Errorf("session anlegen: %w", err)
	}

	s.Logger.Info("Session angelegt",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", userID))
	s.publish(ctx, EventSessionCreated, userID, session.ID)
	return session, nil
}

// ListSessions listet alle Sessions eines Nutzers, zuletzt aktualisierte
// zuerst.
func (s *SessionStore) ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error) {
	sessions := []models.ChatSession{}
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC, created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// GetSession lädt eine Session per ID.
func (s *SessionStore) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.DB.WithContext(ctx).First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// RenameSession setzt den Titel neu und hebt updated_at an, damit die Session
// in der Liste nach vorn rückt.
func (s *SessionStore) RenameSession(ctx context.Context, sessionID uuid.UUID, title string) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	err = s.DB.WithContext(ctx).Model(session).
		Updates(map[string]any{"title": title, "updated_at": time.Now()}).Error
	if err != nil {
		return err
	}
	s.publish(ctx, EventSessionUpdated, session.UserID, sessionID)
	return nil
}

// DeleteSession löscht die Session samt aller Nachrichten und Zitate in einer
// Transaktion. Es bleiben keine Waisen zurück.
func (s *SessionStore) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.Citation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ChatSession{}, "id = ?", sessionID).Error
	})
	if err != nil {
		return fmt.Errorf("session löschen: %w", err)
	}

	s.Logger.Info("Session gelöscht", zap.String("session_id", sessionID.String()))
	s.publish(ctx, EventSessionDeleted, session.UserID, sessionID)
	return nil
}

// AppendMessage kodiert das Payload, hängt die Nachricht an die Session an
// und hebt updated_at an.
func (s *SessionStore) AppendMessage(ctx context.Context, sessionID uuid.UUID, msgType string, payload any) (*models.Message, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	text, err := codec.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("nachricht kodieren: %w", err)
	}

	msg := &models.Message{
		SessionID: sessionID,
		Type:      msgType,
		Text:      text,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatSession{}).
			Where("id = ?", sessionID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventMessageAppended, session.UserID, sessionID)
	return msg, nil
}

// ResetMessages löscht alle Nachrichten der Session und setzt die
// Begrüßungsnachricht neu ein, atomar.
func (s *SessionStore) ResetMessages(ctx context.Context, sessionID uuid.UUID) (*models.Message, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	welcome := welcomeMessage(sessionID)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Create(welcome).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatSession{}).
			Where("id = ?", sessionID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, fmt.Errorf("session zurücksetzen: %w", err)
	}

	s.Logger.Info("Session zurückgesetzt", zap.String("session_id", sessionID.String()))
	s.publish(ctx, EventMessageAppended, session.UserID, sessionID)
	welcome.Payload = models.WelcomeText
	return welcome, nil
}

// LoadMessages lädt alle Nachrichten einer Session chronologisch und
// dekodiert die Payloads. Nicht dekodierbare Texte kommen unverändert als
// Klartext durch.
func (s *SessionStore) LoadMessages(ctx context.Context, sessionID uuid.UUID) ([]models.Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	msgs := []models.Message{}
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].Payload = codec.Decode(msgs[i].Text)
	}
	return msgs, nil
}

// AppendCitation speichert ein verifiziertes Zitat zur Session. UserID und
// Zeitstempel kommen aus der Session bzw. der Uhr, nicht vom Client.
func (s *SessionStore) AppendCitation(ctx context.Context, sessionID uuid.UUID, citation *models.Citation) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	citation.SessionID = sessionID
	citation.UserID = session.UserID
	citation.Timestamp = time.Now()

	if err := s.DB.WithContext(ctx).Create(citation).Error; err != nil {
		return fmt.Errorf("zitat speichern: %w", err)
	}
	s.publish(ctx, EventCitationSaved, session.UserID, sessionID)
	return nil
}

// LoadCitations lädt die Zitate einer Session, neueste zuerst.
func (s *SessionStore) LoadCitations(ctx context.Context, sessionID uuid.UUID) ([]models.Citation, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	citations := []models.Citation{}
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp DESC").
		Find(&citations).Error
	return citations, err
}

// AllCitations liefert sämtliche gespeicherten Zitate, etwa für den
// nächtlichen Retraction-Abgleich.
func (s *SessionStore) AllCitations(ctx context.Context) ([]models.Citation, error) {
	citations := []models.Citation{}
	err := s.DB.WithContext(ctx).Find(&citations).Error
	return citations, err
}

// MarkCitationRetracted setzt das Retraction-Flag eines Zitats.
func (s *SessionStore) MarkCitationRetracted(ctx context.Context, citationID uuid.UUID) error {
	return s.DB.WithContext(ctx).Model(&models.Citation{}).
		Where("id = ?", citationID).
		Update("retracted", true).Error
}

func (s *SessionStore) publish(ctx context.Context, typ EventType, userID string, sessionID uuid.UUID) {
	if s.Bus == nil {
		return
	}
	ev := Event{Type: typ, UserID: userID, SessionID: sessionID, At: time.Now()}
	if err := s.Bus.Publish(ctx, ev); err != nil {
		s.Logger.Warn("Ereignis nicht veröffentlicht",
			zap.String("type", string(typ)), zap.Error(err))
	}
}

// welcomeMessage baut die Begrüßungsnachricht einer Session.
func welcomeMessage(sessionID uuid.UUID) *models.Message {
	return &models.Message{
		SessionID: sessionID,
		Type:      models.MessageTypeBot,
		Text:      models.WelcomeText,
		Timestamp: time.Now(),
	}
}
