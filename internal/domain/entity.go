package domain

import (
	"time"
)

// ActivityLevel classifies an activity entry.
type ActivityLevel string

const (
	ActivityInfo  ActivityLevel = "INFO"
	ActivityError ActivityLevel = "ERROR"
)

// ActivityEntry is one human-readable line of the market activity log.
// Seq is the sequencer event that produced it; several entries may share one.
type ActivityEntry struct {
	ID        uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	Seq       uint64        `gorm:"index" json:"seq"`
	Kind      string        `json:"kind"` // event type name
	Level     ActivityLevel `json:"level"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
}
