package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"rivo_backend/internal/chat/repository"
	"rivo_backend/platform/apperr"
	"rivo_backend/platform/lock"
	"rivo_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu       sync.Mutex
	messages []repository.Message
	linked   int
}

func (f *fakeRepo) Insert(_ context.Context, in repository.NewMessage) (repository.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := repository.Message{
		ID:         uuid.New(),
		SessionID:  in.SessionID,
		ClientID:   in.ClientID,
		Message:    in.Message,
		SenderType: in.SenderType,
		DataType:   in.DataType,
		SentAt:     time.Now(),
	}
	f.messages = append(f.messages, m)
	return m, nil
}

func (f *fakeRepo) ListBySession(_ context.Context, sessionID uuid.UUID) ([]repository.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Message
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) LinkSession(_ context.Context, sessionID, clientID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.messages {
		if f.messages[i].SessionID == sessionID && f.messages[i].ClientID == nil {
			id := clientID
			f.messages[i].ClientID = &id
			n++
		}
	}
	f.linked++
	return n, nil
}

// fakeClients keeps one client per session and mimics the history guard.
type fakeClients struct {
	mu          sync.Mutex
	fields      map[uuid.UUID]map[string]string
	ids         map[uuid.UUID]uuid.UUID
	initialized map[uuid.UUID]bool
	initCalls   int
	values      []string
}

func newFakeClients() *fakeClients {
	return &fakeClients{
		fields:      map[uuid.UUID]map[string]string{},
		ids:         map[uuid.UUID]uuid.UUID{},
		initialized: map[uuid.UUID]bool{},
	}
}

func (f *fakeClients) RecordField(_ context.Context, sessionID uuid.UUID, field, value string) (IntakeClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if field == repository.DataEmail && value == "bad" {
		return IntakeClient{}, apperr.Validation("invalid email address")
	}
	if _, ok := f.ids[sessionID]; !ok {
		f.ids[sessionID] = uuid.New()
		f.fields[sessionID] = map[string]string{}
	}
	f.fields[sessionID][field] = value
	f.values = append(f.values, value)
	return IntakeClient{ID: f.ids[sessionID], Complete: len(f.fields[sessionID]) == 3}, nil
}

func (f *fakeClients) ClientForSession(_ context.Context, sessionID uuid.UUID) (*IntakeClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.ids[sessionID]
	if !ok {
		return nil, nil
	}
	return &IntakeClient{ID: id, Complete: len(f.fields[sessionID]) == 3}, nil
}

func (f *fakeClients) Initialize(_ context.Context, clientID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if f.initialized[clientID] {
		return false, nil
	}
	f.initialized[clientID] = true
	return true, nil
}

type recordingFollowUp struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (r *recordingFollowUp) ClientInitialized(_ context.Context, clientID, _ uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, clientID)
}

func newTestService() (*Service, *fakeRepo, *fakeClients, *recordingFollowUp) {
	repo := &fakeRepo{}
	clients := newFakeClients()
	follow := &recordingFollowUp{}
	svc := New(repo, clients, lock.NewLocalLocker(), follow, Config{PhoneRegion: "US", LockTimeout: time.Second}, logger.Discard())
	return svc, repo, clients, follow
}

func send(t *testing.T, svc *Service, sid uuid.UUID, sender, dataType, msg string) repository.Message {
	t.Helper()
	m, err := svc.Send(context.Background(), SendInput{SessionID: sid, Message: msg, SenderType: sender, DataType: dataType})
	if err != nil {
		t.Fatalf("Send(%s, %s): %v", dataType, msg, err)
	}
	return m
}

func TestSendDefaultsAndTrims(t *testing.T) {
	svc, _, clients, _ := newTestService()

	m := send(t, svc, uuid.New(), "", "", "  hello  ")
	if m.Message != "hello" || m.SenderType != repository.SenderClient || m.DataType != repository.DataMessage {
		t.Fatalf("unexpected message %+v", m)
	}
	if m.ClientID != nil || len(clients.ids) != 0 {
		t.Fatal("untagged messages must not create clients")
	}
}

func TestSendRejectsInvalidInput(t *testing.T) {
	svc, _, _, _ := newTestService()
	cases := []SendInput{
		{SessionID: uuid.New(), Message: "   "},
		{SessionID: uuid.Nil, Message: "hi"},
		{SessionID: uuid.New(), Message: "hi", SenderType: "agent"},
		{SessionID: uuid.New(), Message: "hi", DataType: "address"},
	}
	for _, in := range cases {
		if _, err := svc.Send(context.Background(), in); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("input %+v: expected validation error, got %v", in, err)
		}
	}
}

func TestBotMessagesNeverCreateClients(t *testing.T) {
	svc, _, clients, _ := newTestService()

	send(t, svc, uuid.New(), repository.SenderBot, repository.DataName, "What is your name?")
	if len(clients.ids) != 0 {
		t.Fatal("bot messages must not create clients")
	}
}

func TestIntakeInitializesOnceWhenComplete(t *testing.T) {
	svc, repo, clients, follow := newTestService()
	sid := uuid.New()

	send(t, svc, sid, "client", "message", "hi there")
	first := send(t, svc, sid, "client", "name", "Jane")
	if first.ClientID == nil {
		t.Fatal("tagged message should be linked to the new client")
	}
	send(t, svc, sid, "client", "email", "jane@example.com")
	if len(follow.calls) != 0 {
		t.Fatal("incomplete client must not be initialized")
	}
	send(t, svc, sid, "client", "phone", "(201) 555-0123")
	send(t, svc, sid, "client", "phone", "201-555-0123")

	if len(follow.calls) != 1 {
		t.Fatalf("expected one follow-up, got %d", len(follow.calls))
	}
	if clients.initCalls != 2 {
		t.Fatalf("expected two guarded initialize calls, got %d", clients.initCalls)
	}
	if got := clients.fields[sid]["phone"]; got != "+12015550123" {
		t.Fatalf("expected normalized phone, got %q", got)
	}

	history, _ := svc.History(context.Background(), sid)
	for _, m := range history {
		if m.ClientID == nil {
			t.Fatalf("message %q was not linked to the client", m.Message)
		}
	}
	if repo.linked == 0 {
		t.Fatal("expected session messages to be linked")
	}
}

func TestInvalidFieldIsNotStored(t *testing.T) {
	svc, repo, _, _ := newTestService()

	_, err := svc.Send(context.Background(), SendInput{SessionID: uuid.New(), Message: "bad", DataType: "email"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.messages) != 0 {
		t.Fatal("rejected field must not be stored")
	}
}

func TestConcurrentFieldsInitializeOnce(t *testing.T) {
	svc, _, _, follow := newTestService()
	sid := uuid.New()
	send(t, svc, sid, "client", "name", "Jane")
	send(t, svc, sid, "client", "email", "jane@example.com")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Send(context.Background(), SendInput{SessionID: sid, Message: "+12015550123", DataType: "phone"})
		}()
	}
	wg.Wait()

	if len(follow.calls) != 1 {
		t.Fatalf("expected exactly one initialization, got %d", len(follow.calls))
	}
}
