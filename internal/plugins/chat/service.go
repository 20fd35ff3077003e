package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medilens/portal/internal/apperror"
	"github.com/medilens/portal/internal/sanitize"
)

// apologyMessage resolves a pending reply when generation fails. Failures
// never surface as a distinct message state; the slot always fills.
const apologyMessage = "I apologize, but I encountered an error processing your request. Please try again or contact support if the issue persists."

// ChatService defines the business logic contract for conversations.
type ChatService interface {
	// Contexts lists the assistant's entry points.
	Contexts() []ContextInfo

	// Start opens a conversation in the given context, seeded with that
	// context's welcome message.
	Start(ctx context.Context, userID, contextTag string) (*ConversationView, error)

	// List returns the user's conversations, newest first.
	List(ctx context.Context, userID string) ([]Conversation, error)

	// Get returns a conversation and its ordered log. Callers poll this
	// while a pending message exists.
	Get(ctx context.Context, userID, conversationID string) (*ConversationView, error)

	// Send appends a user message and a pending assistant reply, then
	// resolves the reply asynchronously. Returns Conflict while a reply
	// is already outstanding; the log is unchanged in that case.
	Send(ctx context.Context, userID, conversationID, content string) (*ConversationView, error)
}

// chatService implements ChatService.
type chatService struct {
	repo      ConversationRepository
	generator ResponseGenerator
}

// NewChatService creates a new chat service.
func NewChatService(repo ConversationRepository, generator ResponseGenerator) ChatService {
	return &chatService{
		repo:      repo,
		generator: generator,
	}
}

// Contexts lists the assistant's entry points.
func (s *chatService) Contexts() []ContextInfo {
	return Registry()
}

// Start opens a conversation. The context is fixed for the conversation's
// lifetime and decides its welcome message and reply templates.
func (s *chatService) Start(ctx context.Context, userID, contextTag string) (*ConversationView, error) {
	info := Find(ContextTag(contextTag))
	if info == nil {
		return nil, apperror.NewValidation("Unknown conversation context")
	}

	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Context:   info.ID,
		State:     StateIdle,
		CreatedAt: now,
	}
	welcome := &Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           RoleAssistant,
		Content:        info.Welcome,
		Pending:        false,
		CreatedAt:      now,
	}

	if err := s.repo.Create(ctx, conv, welcome); err != nil {
		return nil, apperror.NewInternal(err)
	}

	slog.Info("conversation started",
		slog.String("conversation_id", conv.ID),
		slog.String("user_id", userID),
		slog.String("context", string(conv.Context)),
	)

	return &ConversationView{
		Conversation: *conv,
		Messages:     []Message{*welcome},
	}, nil
}

// List returns the user's conversations.
func (s *chatService) List(ctx context.Context, userID string) ([]Conversation, error) {
	conversations, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return conversations, nil
}

// Get returns a conversation with its log. Conversations belong to their
// creator; anyone else gets the same not-found as a missing ID.
func (s *chatService) Get(ctx context.Context, userID, conversationID string) (*ConversationView, error) {
	conv, err := s.loadOwned(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	return &ConversationView{Conversation: *conv, Messages: messages}, nil
}

// Send validates and appends one user turn. The assistant's reply slot is
// created immediately and filled by a background resolution; the returned
// view already contains the pending placeholder.
func (s *chatService) Send(ctx context.Context, userID, conversationID, content string) (*ConversationView, error) {
	text := sanitize.Text(content)
	if strings.TrimSpace(text) == "" {
		return nil, apperror.NewValidation("Message cannot be empty")
	}

	conv, err := s.loadOwned(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	userMsg := &Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           RoleUser,
		Content:        text,
		Pending:        false,
		CreatedAt:      now,
	}
	pending := &Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           RoleAssistant,
		Content:        "",
		Pending:        true,
		CreatedAt:      now,
	}

	if err := s.repo.AppendExchange(ctx, conv.ID, userMsg, pending); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.NewInternal(err)
	}

	// The HTTP request does not wait for the generator. Resolution runs
	// on the background context so an abandoned request still resolves.
	go s.resolve(context.Background(), conv.Context, pending.ID, conv.ID, text)

	messages, err := s.repo.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	conv.State = StateAwaiting

	return &ConversationView{Conversation: *conv, Messages: messages}, nil
}

// resolve runs the generator and fills the pending slot exactly once.
// Generation failures fill it with the apology text instead; an exchange
// never stays pending because the generator misbehaved.
func (s *chatService) resolve(ctx context.Context, contextTag ContextTag, messageID, conversationID, prompt string) {
	content, err := s.generator.Generate(ctx, contextTag, prompt)
	if err != nil {
		slog.Error("response generation failed",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
		content = apologyMessage
	}

	if err := s.repo.ResolveMessage(ctx, conversationID, messageID, content); err != nil {
		slog.Error("resolving pending message failed",
			slog.String("conversation_id", conversationID),
			slog.String("message_id", messageID),
			slog.String("error", err.Error()),
		)
	}
}

// loadOwned fetches a conversation and enforces ownership. A conversation
// owned by someone else reads as not found.
func (s *chatService) loadOwned(ctx context.Context, userID, conversationID string) (*Conversation, error) {
	conv, err := s.repo.FindByID(ctx, conversationID)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.NewInternal(err)
	}
	if conv.UserID != userID {
		return nil, apperror.NewNotFound("conversation not found")
	}
	return conv, nil
}
