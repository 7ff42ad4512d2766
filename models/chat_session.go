package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WelcomeText ist die Begrüßungsnachricht, mit der jede Session startet.
const WelcomeText = "Hello! Enter a paper title, DOI, or ISBN to get started. You can also upload a document for analysis."

// Nachrichtentypen innerhalb einer Session.
const (
	MessageTypeUser = "user"
	MessageTypeBot  = "bot"
)

// ChatSession ist ein persistierter Konversations-Thread eines Nutzers.
// UpdatedAt wird bei jedem Message-Append und Rename angehoben und bestimmt
// die Sortierung der Session-Liste.
type ChatSession struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Title     string    `json:"title" gorm:"not null;default:'Untitled'"`
	UserID    string    `json:"userID" gorm:"index;not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"index"`
}

func (ChatSession) TableName() string { return "chat_sessions" }

// BeforeCreate vergibt die Session-ID, falls noch keine gesetzt ist.
func (s *ChatSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Message gehört zu genau einer ChatSession und ist nach Timestamp aufsteigend
// geordnet. Text trägt das codec-kodierte Payload; Payload ist die dekodierte
// Sicht und wird nicht persistiert.
type Message struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID uuid.UUID `json:"-" gorm:"type:uuid;index;not null"`
	Type      string    `json:"type" gorm:"not null"`
	Text      string    `json:"-" gorm:"type:text"`
	Payload   any       `json:"payload" gorm:"-"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Citation ist eine vom Nutzer explizit gespeicherte, verifizierte Referenz.
// Anzeige-Sortierung: Timestamp absteigend. Kein Update; Löschung nur über
// den Session-Cascade.
type Citation struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID uuid.UUID      `json:"-" gorm:"type:uuid;index;not null"`
	Title     string         `json:"title" gorm:"not null"`
	Authors   datatypes.JSON `json:"authors,omitempty"`
	Year      *int           `json:"year,omitempty"`
	DOI       string         `json:"doi,omitempty"`
	UserID    string         `json:"userID" gorm:"index"`
	Retracted bool           `json:"is_retracted"`
	Timestamp time.Time      `json:"timestamp" gorm:"index"`
}

func (Citation) TableName() string { return "citations" }

func (c *Citation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
