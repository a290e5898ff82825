package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"ChainPilot/internal/assistant"
	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/events"
	"ChainPilot/internal/session"
	"ChainPilot/internal/tool"
)

// stubClient scripts the provider: a fixed run returned by CreateRun, a
// status sequence served by GetRun, and a post-submit run state.
type stubClient struct {
	mu        sync.Mutex
	threads   int
	messages  []string
	createRun *assistant.Run
	getSeq    []*assistant.Run
	getCalls  int
	submitted [][]assistant.ToolOutput
	submitRun *assistant.Run
	reply     string
	active    int
	maxActive int
}

func (s *stubClient) CreateThread(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads++
	return "thread_stub", nil
}

func (s *stubClient) CreateMessage(_ context.Context, _ string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, text)
	return nil
}

func (s *stubClient) CreateRun(context.Context, string, []assistant.FunctionDefinition) (*assistant.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	run := *s.createRun
	return &run, nil
}

func (s *stubClient) GetRun(context.Context, string, string) (*assistant.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if len(s.getSeq) == 0 {
		run := *s.createRun
		return &run, nil
	}
	next := s.getSeq[0]
	if len(s.getSeq) > 1 {
		s.getSeq = s.getSeq[1:]
	}
	run := *next
	return &run, nil
}

func (s *stubClient) SubmitToolOutputs(_ context.Context, _ string, _ string, outputs []assistant.ToolOutput) (*assistant.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, outputs)
	run := *s.submitRun
	return &run, nil
}

func (s *stubClient) LatestMessage(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
	return s.reply, nil
}

func run(status assistant.RunStatus, calls ...assistant.ToolCall) *assistant.Run {
	return &assistant.Run{ID: "run_1", ThreadID: "thread_stub", Status: status, ToolCalls: calls}
}

func pingCatalog(t *testing.T, delay time.Duration) *tool.Catalog {
	t.Helper()
	catalog := tool.NewCatalog()
	err := catalog.Register(tool.Tool{
		Definition: tool.Definition{
			Name:        "ping",
			Description: "test tool",
			Parameters:  json.RawMessage(`{"type":"object"}`),
		},
		Handler: func(ctx context.Context, _ json.RawMessage) (string, error) {
			if delay > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(delay):
				}
			}
			return tool.Ok("pong", nil).Render(), nil
		},
	})
	if err != nil {
		t.Fatalf("register ping: %v", err)
	}
	return catalog
}

func newOrchestrator(t *testing.T, client assistant.Client, catalog *tool.Catalog) (*Orchestrator, *events.MemoryPublisher) {
	t.Helper()
	publisher := events.NewMemoryPublisher()
	o := New(client, catalog, session.NewRegistry(session.NewMemoryStore()), publisher,
		WithPollInterval(time.Millisecond))
	return o, publisher
}

func TestSubmitTurnThreePollCycles(t *testing.T) {
	client := &stubClient{
		createRun: run(assistant.StatusQueued),
		getSeq: []*assistant.Run{
			run(assistant.StatusInProgress),
			run(assistant.StatusInProgress),
			run(assistant.StatusRequiresAction, assistant.ToolCall{ID: "call_1", Name: "ping", Arguments: json.RawMessage(`{}`)}),
		},
		submitRun: run(assistant.StatusCompleted),
		reply:     "All done.",
	}
	o, publisher := newOrchestrator(t, client, pingCatalog(t, 0))

	reply, err := o.SubmitTurn(context.Background(), "chat-1", "do the thing", TurnContext{})
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	if reply != "All done." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if client.getCalls != 3 {
		t.Fatalf("expected exactly 3 poll cycles, got %d", client.getCalls)
	}
	if len(client.submitted) != 1 || len(client.submitted[0]) != 1 {
		t.Fatalf("expected one submitted batch of one output, got %+v", client.submitted)
	}
	if client.submitted[0][0].CallID != "call_1" {
		t.Fatalf("output not keyed by call id: %+v", client.submitted[0])
	}

	got := publisher.Events()
	if len(got) != 1 || got[0].Kind != events.KindTurnCompleted || !got[0].Success {
		t.Fatalf("expected a turn-completed event, got %+v", got)
	}
}

func TestSubmitTurnWholeBatchSubmittedWhenOneCallFails(t *testing.T) {
	client := &stubClient{
		createRun: run(assistant.StatusRequiresAction,
			assistant.ToolCall{ID: "call_bad", Name: "no_such_tool", Arguments: json.RawMessage(`{}`)},
			assistant.ToolCall{ID: "call_ok", Name: "ping", Arguments: json.RawMessage(`{}`)},
		),
		submitRun: run(assistant.StatusCompleted),
		reply:     "Partial success.",
	}
	o, _ := newOrchestrator(t, client, pingCatalog(t, 0))

	if _, err := o.SubmitTurn(context.Background(), "chat-1", "go", TurnContext{}); err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	if len(client.submitted) != 1 {
		t.Fatalf("expected one batch, got %d", len(client.submitted))
	}
	batch := client.submitted[0]
	if len(batch) != 2 {
		t.Fatalf("the whole batch must be submitted, got %d outputs", len(batch))
	}
	byID := map[string]string{}
	for _, output := range batch {
		byID[output.CallID] = output.Output
	}
	if !strings.Contains(byID["call_bad"], "UNKNOWN_TOOL") {
		t.Fatalf("failing call should carry a structured failure, got %q", byID["call_bad"])
	}
	if !strings.Contains(byID["call_ok"], `"success":true`) {
		t.Fatalf("succeeding call should carry its own result, got %q", byID["call_ok"])
	}
}

func TestSubmitTurnRunFailed(t *testing.T) {
	client := &stubClient{
		createRun: run(assistant.StatusQueued),
		getSeq:    []*assistant.Run{run(assistant.StatusFailed)},
	}
	o, _ := newOrchestrator(t, client, pingCatalog(t, 0))

	_, err := o.SubmitTurn(context.Background(), "chat-1", "go", TurnContext{})
	if !xerrors.HasCode(err, xerrors.CodeRunFailed) {
		t.Fatalf("expected RUN_FAILED, got %v", err)
	}
}

func TestSubmitTurnCancellation(t *testing.T) {
	client := &stubClient{
		createRun: run(assistant.StatusInProgress),
		getSeq:    []*assistant.Run{run(assistant.StatusInProgress)},
	}
	o, _ := newOrchestrator(t, client, pingCatalog(t, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.SubmitTurn(ctx, "chat-1", "go", TurnContext{})
		done <- err
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !xerrors.HasCode(err, xerrors.CodeRunCancelled) {
			t.Fatalf("expected RUN_CANCELLED, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancellation did not stop the polling loop")
	}
}

func TestSubmitTurnSerialisesRunsPerThread(t *testing.T) {
	client := &stubClient{
		createRun: run(assistant.StatusRequiresAction, assistant.ToolCall{ID: "call_1", Name: "ping", Arguments: json.RawMessage(`{}`)}),
		submitRun: run(assistant.StatusCompleted),
		reply:     "ok",
	}
	o, _ := newOrchestrator(t, client, pingCatalog(t, 20*time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.SubmitTurn(context.Background(), "chat-1", "go", TurnContext{}); err != nil {
				t.Errorf("SubmitTurn: %v", err)
			}
		}()
	}
	wg.Wait()

	if client.maxActive != 1 {
		t.Fatalf("expected at most one active run per thread, observed %d", client.maxActive)
	}
	if client.threads != 1 {
		t.Fatalf("expected one provider thread for the chat thread, got %d", client.threads)
	}
}

func TestSubmitTurnTagsNetwork(t *testing.T) {
	client := &stubClient{
		createRun: run(assistant.StatusCompleted),
		reply:     "ok",
	}
	o, _ := newOrchestrator(t, client, pingCatalog(t, 0))

	if _, err := o.SubmitTurn(context.Background(), "chat-1", "bridge it", TurnContext{Network: "SEPOLIA"}); err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	if len(client.messages) != 1 || client.messages[0] != "bridge it [Network: SEPOLIA]" {
		t.Fatalf("expected network-tagged message, got %v", client.messages)
	}
}
