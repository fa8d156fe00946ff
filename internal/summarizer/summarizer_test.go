package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rivo_backend/internal/events"
	"rivo_backend/platform/logger"

	"github.com/google/uuid"
)

type stubCompleter struct {
	mu     sync.Mutex
	reply  string
	err    error
	delay  time.Duration
	calls  atomic.Int32
	prompt string
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.prompt = prompt
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.reply, s.err
}

type memStore struct {
	mu   sync.Mutex
	docs map[uuid.UUID]json.RawMessage
}

func (m *memStore) SetContext(_ context.Context, id uuid.UUID, doc json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs == nil {
		m.docs = map[uuid.UUID]json.RawMessage{}
	}
	m.docs[id] = doc
	return nil
}

type staticTranscript []Line

func (s staticTranscript) Transcript(context.Context, uuid.UUID) ([]Line, error) {
	return s, nil
}

func newService(c Completer, lines []Line, store ContextStore) *Service {
	return New(c, staticTranscript(lines), store, events.NewInMemoryBus(logger.Discard()), time.Second, logger.Discard())
}

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("payload is not a JSON object: %s", raw)
	}
	return out
}

func TestBuildTranscript(t *testing.T) {
	got := BuildTranscript([]Line{
		{SenderType: "bot", Message: "Hi! What's your name?"},
		{SenderType: "client", Message: "Jane"},
	})
	want := "Bot: Hi! What's your name?\nClient: Jane"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":       `{"a":1}`,
		"```\n{\"a\":1}\n```\ntrailing": `{"a":1}`,
		"  {\"a\":1}  ":                 `{"a":1}`,
	}
	for in, want := range cases {
		if got := StripFences(in); got != want {
			t.Fatalf("StripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSummarizeEmptyTranscriptSkipsModel(t *testing.T) {
	stub := &stubCompleter{reply: `{}`}
	svc := newService(stub, nil, &memStore{})

	payload, outcome := svc.Summarize(context.Background(), nil)
	if string(payload) != "{}" || outcome != OutcomeEmpty {
		t.Fatalf("got %s, %s", payload, outcome)
	}
	if stub.calls.Load() != 0 {
		t.Fatal("model must not be called for an empty transcript")
	}
}

func TestSummarizeParsesFencedReply(t *testing.T) {
	stub := &stubCompleter{reply: "```json\n{\"intent\":\"open an account\",\"urgency\":\"high\"}\n```"}
	svc := newService(stub, nil, &memStore{})

	payload, outcome := svc.Summarize(context.Background(), []Line{{SenderType: "client", Message: "I need an account"}})
	if outcome != OutcomeOK {
		t.Fatalf("expected ok, got %s", outcome)
	}
	if got := decode(t, payload)["intent"]; got != "open an account" {
		t.Fatalf("unexpected intent %v", got)
	}
	if !strings.Contains(stub.prompt, "Client: I need an account") {
		t.Fatalf("prompt is missing the transcript: %s", stub.prompt)
	}
}

func TestSummarizeParseFallback(t *testing.T) {
	stub := &stubCompleter{reply: "Sorry, I cannot help with that."}
	svc := newService(stub, nil, &memStore{})

	payload, outcome := svc.Summarize(context.Background(), []Line{{SenderType: "client", Message: "hi"}})
	if outcome != OutcomeParseFailed {
		t.Fatalf("expected parse failure, got %s", outcome)
	}
	doc := decode(t, payload)
	if doc["intent"] != "Unable to parse" || doc["raw_response"] != "Sorry, I cannot help with that." {
		t.Fatalf("unexpected fallback %v", doc)
	}
}

func TestSummarizeErrorFallback(t *testing.T) {
	stub := &stubCompleter{err: errors.New("connection refused")}
	svc := newService(stub, nil, &memStore{})

	payload, outcome := svc.Summarize(context.Background(), []Line{{SenderType: "client", Message: "hi"}})
	if outcome != OutcomeCallFailed {
		t.Fatalf("expected call failure, got %s", outcome)
	}
	doc := decode(t, payload)
	if doc["summary"] != "Failed to summarize chat history" || doc["error"] != "connection refused" {
		t.Fatalf("unexpected fallback %v", doc)
	}
}

func TestSummarizeClientCollapsesConcurrentCalls(t *testing.T) {
	stub := &stubCompleter{reply: `{"summary":"ok"}`, delay: 50 * time.Millisecond}
	store := &memStore{}
	svc := newService(stub, []Line{{SenderType: "client", Message: "hi"}}, store)
	clientID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.SummarizeClient(context.Background(), clientID, uuid.New()); err != nil {
				t.Errorf("SummarizeClient: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := stub.calls.Load(); n < 1 || n > 5 {
		t.Fatalf("unexpected call count %d", n)
	}
	if got := decode(t, store.docs[clientID])["summary"]; got != "ok" {
		t.Fatalf("context not stored, got %v", got)
	}
}

func TestSummarizeClientDisabled(t *testing.T) {
	store := &memStore{}
	svc := New(nil, staticTranscript{{SenderType: "client", Message: "hi"}}, store, events.NewInMemoryBus(logger.Discard()), 0, logger.Discard())

	if err := svc.SummarizeClient(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("disabled summarizer should be a no-op: %v", err)
	}
	if len(store.docs) != 0 {
		t.Fatal("nothing should be stored when disabled")
	}
}

func TestSummarizeClientReportsCallFailure(t *testing.T) {
	stub := &stubCompleter{err: errors.New("connection refused")}
	store := &memStore{}
	svc := newService(stub, []Line{{SenderType: "client", Message: "hi"}}, store)
	clientID := uuid.New()

	err := svc.SummarizeClient(context.Background(), clientID, uuid.New())
	if !errors.Is(err, ErrCallFailed) {
		t.Fatalf("expected ErrCallFailed, got %v", err)
	}
	if got := decode(t, store.docs[clientID])["summary"]; got != "Failed to summarize chat history" {
		t.Fatalf("fallback not stored, got %v", got)
	}
	if n := stub.calls.Load(); n != 1 {
		t.Fatalf("expected one model call, got %d", n)
	}
}

func TestSummarizeClientParseFailureIsFinal(t *testing.T) {
	stub := &stubCompleter{reply: "not json at all"}
	store := &memStore{}
	svc := newService(stub, []Line{{SenderType: "client", Message: "hi"}}, store)
	clientID := uuid.New()

	if err := svc.SummarizeClient(context.Background(), clientID, uuid.New()); err != nil {
		t.Fatalf("parse failure should not be retried: %v", err)
	}
	if got := decode(t, store.docs[clientID])["intent"]; got != "Unable to parse" {
		t.Fatalf("parse fallback not stored, got %v", got)
	}
}
