// Package orchestrator drives a model run from user message to final
// assistant reply: it creates the run, polls its status, feeds tool outputs
// back when the run blocks on actions, and returns the closing message.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ChainPilot/internal/assistant"
	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/events"
	"ChainPilot/internal/session"
	"ChainPilot/internal/tool"
	"ChainPilot/pkg/logger"
)

const defaultPollInterval = 500 * time.Millisecond

// TurnContext carries per-turn request metadata.
type TurnContext struct {
	// Network, when set, is appended to the user message as a hint so the
	// model picks the matching network-specific tools.
	Network string
	// UserIdentity is the authenticated identity behind the turn; tool
	// handlers resolve the custodial wallet from it.
	UserIdentity string
}

// Orchestrator submits user turns and drives the resulting runs.
type Orchestrator struct {
	client     assistant.Client
	catalog    *tool.Catalog
	dispatcher *tool.Dispatcher
	threads    *session.Registry
	publisher  events.Publisher
	poll       time.Duration
	log        *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option tunes the orchestrator.
type Option func(*Orchestrator)

// WithPollInterval overrides the 500 ms status poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.poll = d
		}
	}
}

// New wires an orchestrator.
func New(client assistant.Client, catalog *tool.Catalog, threads *session.Registry, publisher events.Publisher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:     client,
		catalog:    catalog,
		dispatcher: tool.NewDispatcher(catalog),
		threads:    threads,
		publisher:  publisher,
		poll:       defaultPollInterval,
		log:        logger.Named("orchestrator"),
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// threadLock returns the mutex serialising runs for one chat thread.
func (o *Orchestrator) threadLock(chatThreadID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[chatThreadID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[chatThreadID] = lock
	}
	return lock
}

// SubmitTurn appends the user text to the thread's conversation, runs the
// model until it finishes, and returns the assistant's reply. At most one
// run per chat thread is active at a time; a second concurrent turn for the
// same thread waits its turn.
func (o *Orchestrator) SubmitTurn(ctx context.Context, chatThreadID, userText string, turn TurnContext) (string, error) {
	lock := o.threadLock(chatThreadID)
	lock.Lock()
	defer lock.Unlock()

	providerThreadID, err := o.threads.Resolve(ctx, chatThreadID, o.client.CreateThread)
	if err != nil {
		return "", err
	}

	message := userText
	if turn.Network != "" {
		message = fmt.Sprintf("%s [Network: %s]", userText, turn.Network)
	}
	if err := o.client.CreateMessage(ctx, providerThreadID, message); err != nil {
		return "", err
	}

	run, err := o.client.CreateRun(ctx, providerThreadID, o.catalog.Descriptors())
	if err != nil {
		return "", err
	}
	o.log.Info("run started",
		slog.String("thread", chatThreadID),
		slog.String("run", run.ID),
	)

	toolCtx := session.WithIdentity(ctx, turn.UserIdentity)
	reply, err := o.drive(toolCtx, providerThreadID, run)
	o.emitTurn(ctx, chatThreadID, err == nil)
	return reply, err
}

// drive polls the run to a terminal state, answering requires_action with a
// full batch of tool outputs each time it appears.
func (o *Orchestrator) drive(ctx context.Context, providerThreadID string, run *assistant.Run) (string, error) {
	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	for {
		switch {
		case run.RequiresAction():
			outputs := o.dispatchBatch(ctx, run.ToolCalls)
			next, err := o.client.SubmitToolOutputs(ctx, providerThreadID, run.ID, outputs)
			if err != nil {
				return "", err
			}
			run = next
			continue
		case run.Terminal():
			return o.finish(ctx, providerThreadID, run)
		}

		select {
		case <-ctx.Done():
			return "", xerrors.Wrap(xerrors.CodeRunCancelled, ctx.Err(), "turn cancelled")
		case <-ticker.C:
		}

		next, err := o.client.GetRun(ctx, providerThreadID, run.ID)
		if err != nil {
			return "", err
		}
		run = next
	}
}

// dispatchBatch executes all pending calls concurrently and collects every
// output: one failing call never drops the outputs of its batch mates.
func (o *Orchestrator) dispatchBatch(ctx context.Context, calls []assistant.ToolCall) []assistant.ToolOutput {
	outputs := make([]assistant.ToolOutput, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call assistant.ToolCall) {
			defer wg.Done()
			payload := o.dispatcher.Dispatch(ctx, call.Name, call.Arguments)
			outputs[i] = assistant.ToolOutput{CallID: call.ID, Output: payload}
		}(i, call)
	}
	wg.Wait()
	return outputs
}

func (o *Orchestrator) finish(ctx context.Context, providerThreadID string, run *assistant.Run) (string, error) {
	switch run.Status {
	case assistant.StatusCompleted:
		return o.client.LatestMessage(ctx, providerThreadID)
	case assistant.StatusCancelled:
		return "", xerrors.New(xerrors.CodeRunCancelled, "run "+run.ID+" was cancelled")
	default:
		return "", xerrors.New(xerrors.CodeRunFailed, "run "+run.ID+" failed")
	}
}

// emitTurn publishes the turn-completed event. Failures are logged only.
func (o *Orchestrator) emitTurn(ctx context.Context, chatThreadID string, success bool) {
	if o.publisher == nil {
		return
	}
	event := events.NewEvent(events.KindTurnCompleted)
	event.ThreadID = chatThreadID
	event.Success = success
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.log.Warn("event publish failed", slog.String("thread", chatThreadID), slog.Any("error", err))
	}
}
