package buddyclient

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeRelay struct {
	mu sync.Mutex

	history    []Turn
	historyErr error
	reply      string
	sendErr    error
	resetErr   error
	// block hace que la llamada espere a que venza el deadline.
	block bool

	sent   []string
	resets int
}

func (f *fakeRelay) History(ctx context.Context) ([]Turn, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.history, f.historyErr
}

func (f *fakeRelay) Send(ctx context.Context, message string) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, message)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.sendErr
}

func (f *fakeRelay) Reset(ctx context.Context) error {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.resetErr
}

func (f *fakeRelay) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// runCmd ejecuta el comando y aplana los batch. Solo devuelve mensajes del relay.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	switch msg.(type) {
	case historyLoadedMsg, replyMsg, resetDoneMsg:
		return []tea.Msg{msg}
	}
	return nil
}

func step(c Controller, msg tea.Msg) Controller {
	next, _ := c.Update(msg)
	return next.(Controller)
}

func deliver(c Controller, msgs []tea.Msg) Controller {
	for _, msg := range msgs {
		c = step(c, msg)
	}
	return c
}

func fastOpts() Options {
	return Options{
		HistoryTimeout: 20 * time.Millisecond,
		SendTimeout:    20 * time.Millisecond,
		ResetTimeout:   20 * time.Millisecond,
	}
}

func TestController_LoadsHistoryOnInit(t *testing.T) {
	relay := &fakeRelay{history: []Turn{
		{Role: "user", Text: "how do I save money"},
		{Role: "assistant", Text: "Track your spending weekly."},
	}}
	c := NewController(relay, Options{})
	if !c.LoadingHistory() {
		t.Fatalf("expected controller to start awaiting history")
	}

	c = deliver(c, runCmd(c.Init()))

	got := c.Transcript()
	if len(got) != 2 {
		t.Fatalf("expected 2 bubbles, got %+v", got)
	}
	if got[0].Assistant || got[0].Text != "how do I save money" {
		t.Fatalf("unexpected first bubble %+v", got[0])
	}
	if !got[1].Assistant || got[1].Text != "Track your spending weekly." {
		t.Fatalf("unexpected second bubble %+v", got[1])
	}
	if c.LoadingHistory() {
		t.Fatalf("expected history load to be settled")
	}
}

func TestController_HistoryFailureIsSilent(t *testing.T) {
	cases := map[string]*fakeRelay{
		"error":   {historyErr: errors.New("boom")},
		"timeout": {block: true},
	}
	for name, relay := range cases {
		t.Run(name, func(t *testing.T) {
			c := NewController(relay, fastOpts())
			c = deliver(c, runCmd(c.Init()))

			if len(c.Transcript()) != 0 {
				t.Fatalf("expected empty transcript, got %+v", c.Transcript())
			}
			if c.Notice() != "" {
				t.Fatalf("history failure must not be shown, got notice %q", c.Notice())
			}
			if c.LastNonFatal() == nil {
				t.Fatalf("expected failure recorded as non-fatal")
			}
			if c.LoadingHistory() {
				t.Fatalf("expected controller back to idle")
			}
		})
	}
}

func TestController_EmptySubmitIsNoop(t *testing.T) {
	relay := &fakeRelay{reply: "ok"}
	c := NewController(relay, Options{})

	for _, raw := range []string{"", "   ", "\t\n"} {
		next, cmd := c.submit(raw)
		if cmd != nil {
			t.Fatalf("expected no command for %q", raw)
		}
		if len(next.Transcript()) != 0 || next.Pending() != 0 {
			t.Fatalf("expected no state change for %q", raw)
		}
	}
	if relay.sentCount() != 0 {
		t.Fatalf("expected no network calls")
	}
}

func TestController_SubmitRendersOptimisticallyThenReply(t *testing.T) {
	relay := &fakeRelay{reply: "Track your spending weekly."}
	c := NewController(relay, Options{})
	c = deliver(c, runCmd(c.Init()))

	c, cmd := c.submit("  how do I save money ")
	if got := c.Transcript(); len(got) != 1 || got[0].Assistant || got[0].Text != "how do I save money" {
		t.Fatalf("expected optimistic user bubble, got %+v", got)
	}
	if c.Pending() != 1 {
		t.Fatalf("expected pending indicator")
	}
	if c.input.Value() != "" {
		t.Fatalf("expected input cleared")
	}

	c = deliver(c, runCmd(cmd))
	got := c.Transcript()
	if len(got) != 2 || !got[1].Assistant || got[1].Text != "Track your spending weekly." {
		t.Fatalf("unexpected transcript %+v", got)
	}
	if c.Pending() != 0 {
		t.Fatalf("expected pending cleared")
	}
	if relay.sent[0] != "how do I save money" {
		t.Fatalf("expected trimmed message sent, got %q", relay.sent[0])
	}
}

func TestController_EnterKeySubmits(t *testing.T) {
	relay := &fakeRelay{reply: "hi!"}
	c := NewController(relay, Options{})
	c.input.SetValue("hello")

	next, cmd := c.Update(tea.KeyMsg{Type: tea.KeyEnter})
	c = deliver(next.(Controller), runCmd(cmd))

	if got := c.Transcript(); len(got) != 2 || got[1].Text != "hi!" {
		t.Fatalf("unexpected transcript %+v", got)
	}
}

func TestController_SendFailureRendersApology(t *testing.T) {
	cases := map[string]*fakeRelay{
		"server error": {sendErr: &StatusError{Code: 500}},
		"unauthorized": {sendErr: ErrUnauthorized},
		"timeout":      {block: true},
	}
	for name, relay := range cases {
		t.Run(name, func(t *testing.T) {
			c := NewController(relay, fastOpts())
			c, cmd := c.submit("hello")
			c = deliver(c, runCmd(cmd))

			got := c.Transcript()
			if len(got) != 2 || !got[1].Assistant || got[1].Text != ApologyMessage {
				t.Fatalf("expected apology bubble, got %+v", got)
			}
			if c.Pending() != 0 {
				t.Fatalf("expected pending cleared")
			}
		})
	}
}

func TestController_EmptyReplyShowsPlaceholder(t *testing.T) {
	c := NewController(&fakeRelay{reply: "  "}, Options{})
	c, cmd := c.submit("hello")
	c = deliver(c, runCmd(cmd))

	if got := c.Transcript(); got[1].Text != emptyReplyText {
		t.Fatalf("expected placeholder, got %q", got[1].Text)
	}
}

func TestController_ResetClearsOnlyAfterConfirmation(t *testing.T) {
	relay := &fakeRelay{reply: "ok"}
	c := NewController(relay, Options{})
	c, cmd := c.submit("hello")
	c = deliver(c, runCmd(cmd))

	c, resetCmd := c.reset()
	if !c.Resetting() {
		t.Fatalf("expected control disabled during reset")
	}
	if len(c.Transcript()) != 2 {
		t.Fatalf("transcript must stay until the server confirms")
	}
	if again, cmd := c.reset(); cmd != nil || !again.Resetting() {
		t.Fatalf("expected second reset ignored while one is running")
	}

	c = deliver(c, runCmd(resetCmd))
	if c.Resetting() {
		t.Fatalf("expected control enabled again")
	}
	if len(c.Transcript()) != 0 {
		t.Fatalf("expected transcript cleared, got %+v", c.Transcript())
	}
	if relay.resets != 1 {
		t.Fatalf("expected one reset call, got %d", relay.resets)
	}
}

func TestController_ResetFailureKeepsTranscript(t *testing.T) {
	cases := map[string]*fakeRelay{
		"error":   {reply: "ok", resetErr: &StatusError{Code: 503}},
		"timeout": {reply: "ok"},
	}
	for name, relay := range cases {
		t.Run(name, func(t *testing.T) {
			c := NewController(relay, fastOpts())
			c, cmd := c.submit("hello")
			c = deliver(c, runCmd(cmd))

			relay.block = name == "timeout"
			c, resetCmd := c.reset()
			c = deliver(c, runCmd(resetCmd))

			if len(c.Transcript()) != 2 {
				t.Fatalf("expected transcript kept, got %+v", c.Transcript())
			}
			if c.Notice() != resetFailedNotice {
				t.Fatalf("expected reset notice, got %q", c.Notice())
			}
			if c.LastNonFatal() == nil || c.Resetting() {
				t.Fatalf("expected non-fatal error recorded and control re-enabled")
			}
		})
	}
}

func TestController_StaleResponsesAfterResetAreDiscarded(t *testing.T) {
	relay := &fakeRelay{
		reply:   "late reply",
		history: []Turn{{Role: "assistant", Text: "old"}},
	}
	c := NewController(relay, Options{})
	historyMsgs := runCmd(c.Init())

	c, sendCmd := c.submit("hello")
	sendMsgs := runCmd(sendCmd)

	c, resetCmd := c.reset()
	c = deliver(c, runCmd(resetCmd))

	c = deliver(c, sendMsgs)
	c = deliver(c, historyMsgs)

	if len(c.Transcript()) != 0 {
		t.Fatalf("expected stale responses dropped, got %+v", c.Transcript())
	}
	if c.Pending() != 0 {
		t.Fatalf("expected no pending sends after reset")
	}

	c, cmd := c.submit("fresh")
	c = deliver(c, runCmd(cmd))
	if got := c.Transcript(); len(got) != 2 || got[1].Text != "late reply" {
		t.Fatalf("expected new exchange after reset, got %+v", got)
	}
}

func TestController_HistoryArrivingAfterSubmitKeepsOrder(t *testing.T) {
	relay := &fakeRelay{
		reply:   "new answer",
		history: []Turn{{Role: "user", Text: "earlier"}, {Role: "assistant", Text: "earlier answer"}},
	}
	c := NewController(relay, Options{})
	historyMsgs := runCmd(c.Init())

	c, cmd := c.submit("now")
	c = deliver(c, runCmd(cmd))
	c = deliver(c, historyMsgs)

	got := c.Transcript()
	want := []string{"earlier", "earlier answer", "now", "new answer"}
	if len(got) != len(want) {
		t.Fatalf("unexpected transcript %+v", got)
	}
	for i := range want {
		if got[i].Text != want[i] {
			t.Fatalf("bubble %d: expected %q, got %q", i, want[i], got[i].Text)
		}
	}
}

func TestController_ViewShowsTypingIndicator(t *testing.T) {
	c := NewController(&fakeRelay{reply: "ok"}, Options{})
	c, _ = c.submit("hello")
	if view := c.View(); !strings.Contains(view, "Buddy is typing") {
		t.Fatalf("expected typing indicator in view")
	}
}
