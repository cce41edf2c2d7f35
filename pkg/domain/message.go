package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single anonymous message owned by exactly one account.
// Messages have no lifecycle of their own: they are appended by senders and
// removed by the owner, nothing else.
type Message struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Content   string
	CreatedAt time.Time
}
