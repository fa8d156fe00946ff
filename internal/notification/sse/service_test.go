package sse

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rivo_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func register(s *Service, viewer Viewer) *client {
	c := &client{viewer: viewer, events: make(chan Event, 4)}
	s.addClient(c)
	return c
}

func TestPublishToAdminsReachesAdminsAndExtraOnly(t *testing.T) {
	s := New(logger.Discard())
	admin := register(s, Viewer{UserID: uuid.New(), Admin: true})
	owner := register(s, Viewer{UserID: uuid.New()})
	other := register(s, Viewer{UserID: uuid.New()})

	ownerID := owner.viewer.UserID
	s.PublishToAdmins(Event{Type: EventClientStageChanged, ClientID: uuid.New()}, &ownerID)

	if len(admin.events) != 1 {
		t.Fatalf("admin should receive the event, got %d", len(admin.events))
	}
	if len(owner.events) != 1 {
		t.Fatalf("assigned csm should receive the event, got %d", len(owner.events))
	}
	if len(other.events) != 0 {
		t.Fatalf("unrelated csm must not receive the event, got %d", len(other.events))
	}
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	s := New(logger.Discard())
	userID := uuid.New()
	c := register(s, Viewer{UserID: userID})

	for i := 0; i < cap(c.events)+3; i++ {
		s.Publish(userID, Event{Type: EventClientAssigned})
	}
	if len(c.events) != cap(c.events) {
		t.Fatalf("expected a full buffer, got %d", len(c.events))
	}
}

func TestRemoveClientClosesStream(t *testing.T) {
	s := New(logger.Discard())
	c := register(s, Viewer{UserID: uuid.New()})
	s.removeClient(c)

	if s.Connections() != 0 {
		t.Fatalf("expected no connections, got %d", s.Connections())
	}
	if _, ok := <-c.events; ok {
		t.Fatal("expected closed channel")
	}
}

func TestHandlerStreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(logger.Discard())
	viewer := Viewer{UserID: uuid.New(), Admin: true}

	r := gin.New()
	r.GET("/events", s.Handler(func(*gin.Context) (Viewer, bool) { return viewer, true }))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	done := make(chan struct{})
	go func() {
		r.ServeHTTP(rec, req)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.Connections() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}

	clientID := uuid.New()
	s.PublishToAdmins(Event{Type: EventClientCreated, ClientID: clientID, Message: "Jane"}, nil)
	s.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after close")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event:connected") {
		t.Fatalf("missing connected event: %q", body)
	}
	if !strings.Contains(body, "event:client_created") || !strings.Contains(body, clientID.String()) {
		t.Fatalf("missing client_created event: %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestHandlerStopsWhenResolverRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(logger.Discard())

	r := gin.New()
	r.GET("/events", s.Handler(func(c *gin.Context) (Viewer, bool) {
		c.AbortWithStatus(http.StatusForbidden)
		return Viewer{}, false
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if s.Connections() != 0 {
		t.Fatal("rejected caller must not be registered")
	}
}
