package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rivo_backend/internal/chat/repository"
	"rivo_backend/internal/chat/service"
	"rivo_backend/platform/lock"
	"rivo_backend/platform/logger"
	"rivo_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memRepo struct{ messages []repository.Message }

func (m *memRepo) Insert(_ context.Context, in repository.NewMessage) (repository.Message, error) {
	msg := repository.Message{ID: uuid.New(), SessionID: in.SessionID, Message: in.Message, SenderType: in.SenderType, DataType: in.DataType, SentAt: time.Now()}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memRepo) ListBySession(_ context.Context, sessionID uuid.UUID) ([]repository.Message, error) {
	var out []repository.Message
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memRepo) LinkSession(context.Context, uuid.UUID, uuid.UUID) (int64, error) { return 0, nil }

type noClients struct{}

func (noClients) RecordField(context.Context, uuid.UUID, string, string) (service.IntakeClient, error) {
	return service.IntakeClient{ID: uuid.New()}, nil
}
func (noClients) ClientForSession(context.Context, uuid.UUID) (*service.IntakeClient, error) {
	return nil, nil
}
func (noClients) Initialize(context.Context, uuid.UUID) (bool, error) { return false, nil }

func newRouter() *gin.Engine {
	svc := service.New(&memRepo{}, noClients{}, lock.NewLocalLocker(), nil, service.Config{}, logger.Discard())
	r := gin.New()
	New(svc, validator.New()).RegisterRoutes(r.Group("/chat"))
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestSendReturnsCreated(t *testing.T) {
	r := newRouter()
	sid := uuid.NewString()

	w := postJSON(r, "/chat/stream", `{"session_id":"`+sid+`","message":" hi "}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"sender_type":"client"`) {
		t.Fatalf("expected default sender type, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat/history?session_id="+sid, nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"message":"hi"`) {
		t.Fatalf("unexpected history %d: %s", w.Code, w.Body.String())
	}
}

func TestSendValidation(t *testing.T) {
	r := newRouter()
	sid := uuid.NewString()
	bodies := []string{
		`{"session_id":"nope","message":"hi"}`,
		`{"session_id":"` + sid + `","message":"   "}`,
		`{"session_id":"` + sid + `","message":"hi","sender_type":"agent"}`,
		`{"session_id":"` + sid + `","message":"hi","data_type":"address"}`,
		`not json`,
	}
	for _, body := range bodies {
		if w := postJSON(r, "/chat/stream", body); w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, w.Code)
		}
	}
}

func TestHistoryRequiresValidSession(t *testing.T) {
	r := newRouter()
	for _, path := range []string{"/chat/history", "/chat/history?session_id=123"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestSendAcceptsUppercaseSessionID(t *testing.T) {
	r := newRouter()
	upper := "550E8400-E29B-41D4-A716-446655440000"

	w := postJSON(r, "/chat/stream", `{"session_id":"`+upper+`","message":"hello"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"session_id":"`+strings.ToLower(upper)+`"`) {
		t.Fatalf("expected canonical session id, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat/history?session_id="+upper, nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"message":"hello"`) {
		t.Fatalf("unexpected history %d: %s", w.Code, w.Body.String())
	}
}
