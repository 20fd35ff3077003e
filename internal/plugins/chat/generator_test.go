package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/medilens/portal/internal/config"
)

// zeroLatency removes the simulated delay for tests.
var zeroLatency = config.AssistantConfig{MinLatency: 0, MaxLatency: 0}

func TestCannedGenerator_RendersContextTemplate(t *testing.T) {
	tests := []struct {
		tag      ContextTag
		fragment string
	}{
		{ContextUpload, "prescription query about \"aspirin\""},
		{ContextMedicineSearch, "Here's what I found about \"aspirin\""},
		{ContextQuestion, "Thank you for your question about \"aspirin\""},
	}

	g := NewCannedGenerator(zeroLatency)
	for _, tt := range tests {
		t.Run(string(tt.tag), func(t *testing.T) {
			reply, err := g.Generate(context.Background(), tt.tag, "aspirin")
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if !strings.Contains(reply, tt.fragment) {
				t.Errorf("reply missing %q:\n%s", tt.fragment, reply)
			}
		})
	}
}

func TestCannedGenerator_UnknownContext(t *testing.T) {
	g := NewCannedGenerator(zeroLatency)
	if _, err := g.Generate(context.Background(), "horoscope", "anything"); err == nil {
		t.Error("expected error for unknown context")
	}
}

func TestCannedGenerator_HonorsCancellation(t *testing.T) {
	g := NewCannedGenerator(config.AssistantConfig{
		MinLatency: time.Minute,
		MaxLatency: time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := g.Generate(ctx, ContextQuestion, "anything")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %s, expected an immediate return", elapsed)
	}
}
