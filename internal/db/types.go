package db

import (
	"time"

	"github.com/google/uuid"
)

// ChannelTagsChanged is the NOTIFY channel raised after every import.
const ChannelTagsChanged = "tags_changed"

// Batch is one import run.
type Batch struct {
	ID          uuid.UUID `json:"id"`
	Source      string    `json:"source"`
	RecordCount int       `json:"record_count"`
	CreatedAt   time.Time `json:"created_at"`
}
