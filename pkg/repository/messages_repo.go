package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/quietpost/quietpost/pkg/domain"
)

// MessagesRepository handles message persistence. Messages live in their own
// table keyed by (account_id, id) rather than in an embedded array, so append
// and removal are single atomic statements.
type MessagesRepository struct {
	db *sql.DB
}

// NewMessagesRepository creates a new messages repository.
func NewMessagesRepository(db *sql.DB) *MessagesRepository {
	return &MessagesRepository{db: db}
}

// CreateIfAccepting appends a message only if the owning account currently
// has its acceptance flag on. The gate check and the insert are one
// statement, so a toggle racing the submission can never let a message
// through after the flag is off, and two concurrent submissions both
// persist. Returns domain.ErrNotAccepting when the gate is closed.
func (r *MessagesRepository) CreateIfAccepting(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (id, account_id, content, created_at)
		SELECT $1, a.id, $3, $4
		FROM accounts a
		WHERE a.id = $2 AND a.accepting_messages
	`
	result, err := r.db.ExecContext(ctx, query,
		message.ID, message.AccountID, message.Content, message.CreatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrNotAccepting)
}

// ListByAccount returns all messages for an account in insertion order.
func (r *MessagesRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT id, account_id, content, created_at
		FROM messages
		WHERE account_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.AccountID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Delete removes the message with the given id from the given account's
// collection. The delete is conditional on ownership, so a message id
// belonging to another account reports domain.ErrMessageNotFound rather
// than leaking its existence, and of two racing deletes at most one
// succeeds.
func (r *MessagesRepository) Delete(ctx context.Context, accountID, messageID uuid.UUID) error {
	query := `DELETE FROM messages WHERE id = $1 AND account_id = $2`
	result, err := r.db.ExecContext(ctx, query, messageID, accountID)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrMessageNotFound)
}
