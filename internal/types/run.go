package types

import (
	"time"

	"github.com/google/uuid"
)

// ImportRun describes one stored flatten run.
type ImportRun struct {
	ID            uuid.UUID `json:"id"`
	Source        string    `json:"source"`
	Conversations int       `json:"conversations"`
	Skipped       int       `json:"skipped"`
	Messages      int       `json:"messages"`
	Edges         int       `json:"edges"`
	CreatedAt     time.Time `json:"created_at"`
}
