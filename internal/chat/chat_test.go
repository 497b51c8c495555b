package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"docchat/internal/docs"
	"docchat/internal/llm"
)

// fakeCompleter scripts the completion client.
type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   chan struct{} // when set, Complete waits on it
	started chan struct{} // closed once Complete is entered
	calls   int
	lastMsg []llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message, _ llm.Options) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastMsg = messages
	block := f.block
	started := f.started
	f.mu.Unlock()

	if started != nil {
		select {
		case <-started:
		default:
			close(started)
		}
	}
	if block != nil {
		<-block
	}
	return f.reply, f.err
}

type fakeDocs struct {
	list []docs.Document
}

func (f *fakeDocs) List() []docs.Document { return f.list }

func newTestController(t *testing.T, completer *fakeCompleter, source DocumentSource) *Controller {
	t.Helper()
	if source == nil {
		source = &fakeDocs{}
	}
	settings := Settings{Options: llm.DefaultOptions(), Grounding: true}
	return NewController(completer, source, "", settings, zap.NewNop().Sugar())
}

func TestNewController_Greeting(t *testing.T) {
	c := newTestController(t, &fakeCompleter{}, nil)

	history := c.History()
	if len(history) != 1 {
		t.Fatalf("fresh transcript has %d turns, want 1", len(history))
	}
	if history[0].Role != llm.RoleAssistant {
		t.Errorf("greeting role = %q, want assistant", history[0].Role)
	}
	if history[0].Content != DefaultGreeting {
		t.Errorf("greeting = %q, want default", history[0].Content)
	}
}

func TestSubmit_AppendsBothTurns(t *testing.T) {
	fc := &fakeCompleter{reply: "The revenue was $87.3 million."}
	c := newTestController(t, fc, nil)

	reply, err := c.Submit(context.Background(), "What was the revenue?")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if reply != fc.reply {
		t.Errorf("reply = %q, want %q", reply, fc.reply)
	}

	history := c.History()
	if len(history) != 3 {
		t.Fatalf("transcript has %d turns, want 3 (greeting, user, assistant)", len(history))
	}
	if history[1].Role != llm.RoleUser || history[1].Content != "What was the revenue?" {
		t.Errorf("user turn = %+v", history[1])
	}
	if history[2].Role != llm.RoleAssistant || history[2].Content != fc.reply {
		t.Errorf("assistant turn = %+v", history[2])
	}
	if c.State() != StateIdle {
		t.Errorf("state = %q after completion, want idle", c.State())
	}
}

func TestSubmit_EmptyInputIgnored(t *testing.T) {
	fc := &fakeCompleter{reply: "unused"}
	c := newTestController(t, fc, nil)

	for _, input := range []string{"", "   ", "\n\t  "} {
		_, err := c.Submit(context.Background(), input)
		if !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Submit(%q) error = %v, want ErrEmptyMessage", input, err)
		}
	}

	if len(c.History()) != 1 {
		t.Errorf("transcript grew on empty input: %d turns", len(c.History()))
	}
	if fc.calls != 0 {
		t.Errorf("completer called %d times for empty input", fc.calls)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %q, want idle", c.State())
	}
}

func TestSubmit_BusyWhileInFlight(t *testing.T) {
	fc := &fakeCompleter{
		reply:   "done",
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	c := newTestController(t, fc, nil)

	result := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "first")
		result <- err
	}()

	<-fc.started
	if c.State() != StateAwaitingResponse {
		t.Errorf("state = %q while in flight, want awaiting_response", c.State())
	}

	_, err := c.Submit(context.Background(), "second")
	if !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent Submit error = %v, want ErrBusy", err)
	}

	close(fc.block)
	if err := <-result; err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}

	// The rejected submission left no trace
	history := c.History()
	for _, turn := range history {
		if turn.Content == "second" {
			t.Error("rejected submission appeared in the transcript")
		}
	}

	// After resolution the controller accepts again
	if _, err := c.Submit(context.Background(), "third"); err != nil {
		t.Fatalf("Submit after resolution failed: %v", err)
	}
}

func TestSubmit_FailureAppendsApology(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("connection refused")}
	c := newTestController(t, fc, nil)

	reply, err := c.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Submit returned error %v, want apology handling", err)
	}
	if reply != ApologyMessage {
		t.Errorf("reply = %q, want apology", reply)
	}

	history := c.History()
	if len(history) != 3 {
		t.Fatalf("transcript has %d turns, want 3", len(history))
	}
	assistant := 0
	for _, turn := range history[1:] {
		if turn.Role == llm.RoleAssistant {
			assistant++
			if turn.Content != ApologyMessage {
				t.Errorf("assistant turn = %q, want apology", turn.Content)
			}
		}
	}
	if assistant != 1 {
		t.Errorf("%d assistant turns appended on failure, want exactly 1", assistant)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %q after failure, want idle", c.State())
	}
}

func TestSubmit_GroundingInjectsDocuments(t *testing.T) {
	fc := &fakeCompleter{reply: "grounded"}
	source := &fakeDocs{list: []docs.Document{
		{ID: "1", Title: "Report", Content: "Revenue was $87.3 million."},
	}}
	c := newTestController(t, fc, source)

	if _, err := c.Submit(context.Background(), "revenue?"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if fc.lastMsg[0].Role != llm.RoleSystem {
		t.Fatalf("first message role = %q, want system context turn", fc.lastMsg[0].Role)
	}
	if !strings.Contains(fc.lastMsg[0].Content, "Revenue was $87.3 million.") {
		t.Error("document content missing from system turn")
	}
}

func TestSubmit_GroundingDisabled(t *testing.T) {
	fc := &fakeCompleter{reply: "ungrounded"}
	source := &fakeDocs{list: []docs.Document{
		{ID: "1", Title: "Report", Content: "secret"},
	}}
	c := newTestController(t, fc, source)
	c.SetGrounding(false)

	if _, err := c.Submit(context.Background(), "revenue?"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	for _, m := range fc.lastMsg {
		if m.Role == llm.RoleSystem {
			t.Error("system turn injected with grounding disabled")
		}
	}
}

func TestClear(t *testing.T) {
	fc := &fakeCompleter{reply: "reply"}
	c := newTestController(t, fc, nil)

	c.Submit(context.Background(), "hello")
	c.Clear()

	history := c.History()
	if len(history) != 1 {
		t.Fatalf("cleared transcript has %d turns, want 1", len(history))
	}
	if history[0].Content != DefaultGreeting {
		t.Errorf("cleared transcript opens with %q, want greeting", history[0].Content)
	}
}

func TestClear_WhileInFlightDropsLateResponse(t *testing.T) {
	fc := &fakeCompleter{
		reply:   "late response",
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	c := newTestController(t, fc, nil)

	result := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "pending question")
		result <- err
	}()

	<-fc.started
	c.Clear()
	close(fc.block)
	if err := <-result; err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// The reset transcript is just the greeting; the resolved response
	// must not land as an assistant turn with no matching user turn
	history := c.History()
	if len(history) != 1 {
		t.Fatalf("transcript has %d turns after mid-flight Clear, want 1", len(history))
	}
	if history[0].Content != DefaultGreeting {
		t.Errorf("transcript opens with %q, want greeting", history[0].Content)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %q after resolution, want idle", c.State())
	}

	// The controller accepts new submissions normally afterwards
	if _, err := c.Submit(context.Background(), "fresh question"); err != nil {
		t.Fatalf("Submit after mid-flight Clear failed: %v", err)
	}
	if got := len(c.History()); got != 3 {
		t.Errorf("transcript has %d turns, want 3", got)
	}
}

func TestUpdateSettings_TakesEffectNextTurn(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	c := newTestController(t, fc, nil)

	s := c.Settings()
	s.Options.Model = "mixtral-8x7b-32768"
	s.Options.Temperature = 1.2
	c.UpdateSettings(s)

	got := c.Settings()
	if got.Options.Model != "mixtral-8x7b-32768" || got.Options.Temperature != 1.2 {
		t.Errorf("settings not updated: %+v", got.Options)
	}
}

func TestHistory_Timestamps(t *testing.T) {
	fc := &fakeCompleter{reply: "reply"}
	c := newTestController(t, fc, nil)

	before := time.Now().UTC().Add(-time.Second)
	c.Submit(context.Background(), "hello")

	for i, turn := range c.History() {
		if turn.Timestamp.Before(before) {
			t.Errorf("turn %d has a stale timestamp: %v", i, turn.Timestamp)
		}
	}
}
