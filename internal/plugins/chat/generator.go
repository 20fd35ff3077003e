package chat

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/medilens/portal/internal/config"
)

// ResponseGenerator produces the assistant's reply for a prompt. Latency
// is opaque to the conversation manager; implementations may take as long
// as they need but must eventually return or honor ctx cancellation.
type ResponseGenerator interface {
	Generate(ctx context.Context, contextTag ContextTag, prompt string) (string, error)
}

// cannedGenerator simulates an LLM backend: it renders the context's
// reply template after a jittered delay inside the configured latency
// bounds.
type cannedGenerator struct {
	minLatency time.Duration
	maxLatency time.Duration
}

// NewCannedGenerator creates the canned generator from assistant config.
func NewCannedGenerator(cfg config.AssistantConfig) ResponseGenerator {
	return &cannedGenerator{
		minLatency: cfg.MinLatency,
		maxLatency: cfg.MaxLatency,
	}
}

// Generate renders the canned reply for the context after a simulated
// thinking delay.
func (g *cannedGenerator) Generate(ctx context.Context, contextTag ContextTag, prompt string) (string, error) {
	info := Find(contextTag)
	if info == nil {
		return "", fmt.Errorf("unknown context %q", contextTag)
	}

	delay := g.minLatency
	if jitter := g.maxLatency - g.minLatency; jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(jitter)))
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}

	return info.replyTemplate(prompt), nil
}
