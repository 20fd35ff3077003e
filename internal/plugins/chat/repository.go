package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/medilens/portal/internal/apperror"
)

// ErrNotAwaiting is returned by ResolveMessage when the target row is not
// pending, meaning the exchange was already resolved.
var ErrNotAwaiting = errors.New("chat: message is not pending")

// ConversationRepository defines the data access contract for
// conversations and their message logs.
type ConversationRepository interface {
	// Create inserts a conversation together with its opening assistant
	// message in one transaction.
	Create(ctx context.Context, conv *Conversation, welcome *Message) error

	// FindByID retrieves a conversation by its UUID.
	FindByID(ctx context.Context, id string) (*Conversation, error)

	// ListByUser returns a user's conversations, newest first.
	ListByUser(ctx context.Context, userID string) ([]Conversation, error)

	// ListMessages returns a conversation's log in seq order.
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)

	// AppendExchange atomically appends the user message and the pending
	// assistant message, and moves the conversation to awaiting. Fails
	// with Conflict if the conversation is already awaiting; the log is
	// untouched in that case. Seq values are assigned here.
	AppendExchange(ctx context.Context, conversationID string, userMsg, pending *Message) error

	// ResolveMessage writes content into the pending row identified by
	// messageID, clears its pending flag, and returns the conversation to
	// idle. The row's seq never changes. Returns ErrNotAwaiting if the
	// row was already resolved.
	ResolveMessage(ctx context.Context, conversationID, messageID, content string) error
}

// conversationRepository implements ConversationRepository with MariaDB
// queries.
type conversationRepository struct {
	db *sql.DB
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *sql.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Create inserts a conversation and its welcome message.
func (r *conversationRepository) Create(ctx context.Context, conv *Conversation, welcome *Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, context, state, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.Context, conv.State, conv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	welcome.Seq = 1
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, seq, role, content, pending, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		welcome.ID, conv.ID, welcome.Seq, welcome.Role, welcome.Content, welcome.Pending, welcome.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting welcome message: %w", err)
	}

	return tx.Commit()
}

// FindByID retrieves a conversation by its UUID.
func (r *conversationRepository) FindByID(ctx context.Context, id string) (*Conversation, error) {
	query := `SELECT id, user_id, context, state, created_at
	          FROM conversations WHERE id = ?`

	c := &Conversation{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.UserID, &c.Context, &c.State, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperror.NewNotFound("conversation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation by id: %w", err)
	}
	return c, nil
}

// ListByUser returns a user's conversations, newest first.
func (r *conversationRepository) ListByUser(ctx context.Context, userID string) ([]Conversation, error) {
	query := `SELECT id, user_id, context, state, created_at
	          FROM conversations
	          WHERE user_id = ?
	          ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Context, &c.State, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// ListMessages returns a conversation's log in seq order.
func (r *conversationRepository) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	query := `SELECT id, conversation_id, seq, role, content, pending, created_at
	          FROM messages
	          WHERE conversation_id = ?
	          ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.Seq, &m.Role, &m.Content, &m.Pending, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AppendExchange appends the user message and the pending assistant
// placeholder under a row lock on the conversation. The lock serializes
// concurrent sends; only one can observe idle and win.
func (r *conversationRepository) AppendExchange(ctx context.Context, conversationID string, userMsg, pending *Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var state ConversationState
	err = tx.QueryRowContext(ctx,
		`SELECT state FROM conversations WHERE id = ? FOR UPDATE`,
		conversationID,
	).Scan(&state)
	if err == sql.ErrNoRows {
		return apperror.NewNotFound("conversation not found")
	}
	if err != nil {
		return fmt.Errorf("locking conversation: %w", err)
	}
	if state == StateAwaiting {
		return apperror.NewConflict("A response is still being generated for this conversation")
	}

	var maxSeq sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM messages WHERE conversation_id = ?`,
		conversationID,
	).Scan(&maxSeq)
	if err != nil {
		return fmt.Errorf("querying max seq: %w", err)
	}

	userMsg.Seq = int(maxSeq.Int64) + 1
	pending.Seq = userMsg.Seq + 1

	insert := `INSERT INTO messages (id, conversation_id, seq, role, content, pending, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert,
		userMsg.ID, conversationID, userMsg.Seq, userMsg.Role, userMsg.Content, userMsg.Pending, userMsg.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting user message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insert,
		pending.ID, conversationID, pending.Seq, pending.Role, pending.Content, pending.Pending, pending.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting pending message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET state = ? WHERE id = ?`,
		StateAwaiting, conversationID,
	); err != nil {
		return fmt.Errorf("updating conversation state: %w", err)
	}

	return tx.Commit()
}

// ResolveMessage fills in the pending row and returns the conversation to
// idle. The WHERE pending = 1 guard makes resolution idempotent: a second
// attempt affects no rows and reports ErrNotAwaiting.
func (r *conversationRepository) ResolveMessage(ctx context.Context, conversationID, messageID, content string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE messages SET content = ?, pending = 0
		 WHERE id = ? AND conversation_id = ? AND pending = 1`,
		content, messageID, conversationID,
	)
	if err != nil {
		return fmt.Errorf("resolving message: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotAwaiting
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET state = ? WHERE id = ?`,
		StateIdle, conversationID,
	); err != nil {
		return fmt.Errorf("updating conversation state: %w", err)
	}

	return tx.Commit()
}
