package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fluentia/fluentia/internal/correction"
	"github.com/fluentia/fluentia/pkg/provider/llm"
)

const (
	// The conversational reply should feel alive, hence the high
	// temperature; correction extraction runs at its own, much lower one.
	replyTemperature = 0.9
	replyMaxTokens   = 1024
)

// Orchestrator runs one conversation turn at a time. It holds no session
// state and is safe for concurrent use across sessions.
type Orchestrator struct {
	chat      llm.Provider
	extractor *correction.Extractor
	logger    *slog.Logger
}

// NewOrchestrator wires the chat provider and the correction extractor into
// a turn loop.
func NewOrchestrator(chat llm.Provider, extractor *correction.Extractor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{chat: chat, extractor: extractor, logger: logger}
}

// ChatName reports the name of the chat provider serving this orchestrator.
func (o *Orchestrator) ChatName() string { return o.chat.Name() }

// NextTurn produces the assistant's reply for the given history and,
// when wantCorrection is set and the last history entry is user-authored,
// the structured correction for that entry.
//
// The reply call and the correction call run concurrently; the response is
// not assembled until both settle. A chat provider failure is fatal for the
// turn and is returned with the upstream error preserved in the wrap chain.
// A correction failure is logged and swallowed: the turn still succeeds with
// Corrections nil.
func (o *Orchestrator) NextTurn(ctx context.Context, history []llm.Message, sctx SessionContext, wantCorrection bool) (*TurnResponse, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("conversation: history must not be empty")
	}

	var (
		reply  string
		result *correction.Result
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		resp, err := o.chat.Complete(gctx, llm.CompletionRequest{
			SystemPrompt: buildSystemPrompt(sctx),
			Messages:     history,
			Temperature:  replyTemperature,
			MaxTokens:    replyMaxTokens,
		})
		if err != nil {
			return fmt.Errorf("conversation: reply: %w", err)
		}
		reply = strings.TrimSpace(resp.Content)
		return nil
	})

	last := history[len(history)-1]
	if wantCorrection && last.Role == "user" {
		g.Go(func() error {
			r, err := o.extractor.Extract(gctx, last.Content, sctx.correctionSession())
			if err != nil {
				// A missing correction never aborts the turn.
				o.logger.Warn("correction extraction failed", "error", err)
				return nil
			}
			result = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if reply == "" {
		// An empty but successful envelope is not an error; keep the
		// conversation moving with a stock reply in the session language.
		o.logger.Warn("provider returned an empty reply", "provider", o.chat.Name())
		reply = fallbackReply(sctx.Language)
	}
	return &TurnResponse{Message: reply, Corrections: result}, nil
}
