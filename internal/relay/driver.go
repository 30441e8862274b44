package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/koopa0/chatrelay/internal/store"
)

// Driver produces the live event sequence for one assistant response.
//
// Implementations must emit events in chronological order and yield to the
// emit callback after every event, so the pipeline stays responsive to
// cancellation. Item identifiers on emitted events are upstream-assigned
// and carry no uniqueness guarantee across turns; reconciliation is the
// caller's job.
type Driver interface {
	Stream(ctx context.Context, history []HistoryEntry, emit EmitFunc) error
}

// ModelDriver streams completions through a Genkit-registered model.
type ModelDriver struct {
	g      *genkit.Genkit
	model  string
	system string
	logger *slog.Logger
}

// NewModelDriver creates a driver for the given provider-qualified model
// name (e.g. "googleai/gemini-2.0-flash"). system is the optional system
// prompt sent with every turn.
func NewModelDriver(g *genkit.Genkit, model, system string, logger *slog.Logger) *ModelDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelDriver{g: g, model: model, system: system, logger: logger}
}

// Stream runs one completion and translates model chunks into the
// Added/Updated/Done lifecycle.
//
// The upstream identifier is derived from the chunk's message index, which
// restarts at zero on every response, so identical ids legitimately repeat
// between independent turns on the same thread. On a transport error
// mid-stream no further events are emitted and the error is returned;
// already-emitted partial content is not retracted.
func (d *ModelDriver) Stream(ctx context.Context, history []HistoryEntry, emit EmitFunc) error {
	messages := make([]*ai.Message, 0, len(history))
	for _, entry := range history {
		switch entry.Role {
		case store.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(entry.Text)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(entry.Text)))
		}
	}

	started := make(map[string]bool)
	var startOrder []string
	acc := make(map[string]*strings.Builder)
	lastID := ""

	streamCB := func(_ context.Context, chunk *ai.ModelResponseChunk) error {
		upstreamID := fmt.Sprintf("msg_%d", chunk.Index)
		if !started[upstreamID] {
			started[upstreamID] = true
			startOrder = append(startOrder, upstreamID)
			acc[upstreamID] = &strings.Builder{}
			lastID = upstreamID
			if err := emit(&Event{Type: EventItemAdded, Item: store.NewAssistantItem(upstreamID, "")}); err != nil {
				return err
			}
		}

		text := chunk.Text()
		if text == "" {
			return nil
		}
		acc[upstreamID].WriteString(text)
		return emit(&Event{Type: EventItemUpdated, ItemID: upstreamID, Delta: text})
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(d.model),
		ai.WithMessages(messages...),
		ai.WithStreaming(streamCB),
	}
	if d.system != "" {
		opts = append(opts, ai.WithSystem(d.system))
	}

	resp, err := genkit.Generate(ctx, d.g, opts...)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	finalText := resp.Text()
	if lastID == "" {
		// No chunks streamed (short response, or a backend that skipped
		// streaming). Synthesize the full lifecycle from the final response.
		lastID = "msg_0"
		if err := emit(&Event{Type: EventItemAdded, Item: store.NewAssistantItem(lastID, "")}); err != nil {
			return err
		}
		if finalText != "" {
			if err := emit(&Event{Type: EventItemUpdated, ItemID: lastID, Delta: finalText}); err != nil {
				return err
			}
		}
	}
	// A response that spread its chunks across several message indexes gets
	// a Done per announced id, each carrying its own accumulated text. No
	// announced id is left unfinalized.
	if len(startOrder) > 1 {
		for _, id := range startOrder {
			if err := emit(&Event{Type: EventItemDone, Item: store.NewAssistantItem(id, acc[id].String())}); err != nil {
				return err
			}
		}
		d.logger.Debug("completion finished", "model", d.model, "messages", len(startOrder))
		return nil
	}

	if finalText == "" {
		if b, ok := acc[lastID]; ok {
			finalText = b.String()
		}
	}

	d.logger.Debug("completion finished", "model", d.model, "chars", len(finalText))
	return emit(&Event{Type: EventItemDone, Item: store.NewAssistantItem(lastID, finalText)})
}
