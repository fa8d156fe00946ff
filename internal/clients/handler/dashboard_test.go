package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rivo_backend/internal/auth/policy"
	"rivo_backend/platform/httpkit"
	"rivo_backend/platform/logger"
	"rivo_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticSubjects struct{ subject policy.Subject }

func (s staticSubjects) Subject(context.Context, uuid.UUID) (policy.Subject, error) {
	return s.subject, nil
}

// newDashboardRouter serves the dashboard with the caller already
// authenticated as subject. The service is nil: every request here must be
// answered before it is reached.
func newDashboardRouter(subject policy.Subject) *gin.Engine {
	r := gin.New()
	group := r.Group("/dashboard", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, subject.UserID)
		c.Next()
	})
	NewDashboard(nil, staticSubjects{subject: subject}, nil, validator.New(), logger.Discard()).RegisterRoutes(group)
	return r
}

func csmSubject() policy.Subject {
	return policy.NewSubject(uuid.New(), true, false, policy.RoleCSM, []string{policy.PermChangeClientStage})
}

func adminSubject() policy.Subject {
	return policy.NewSubject(uuid.New(), true, false, policy.RoleAdmin, nil)
}

func TestAdminRoutesRejectCSM(t *testing.T) {
	r := newDashboardRouter(csmSubject())

	for _, path := range []string{"/dashboard/admin/clients", "/dashboard/admin/csm-users"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", path, w.Code)
		}
	}
}

func TestCSMRouteRejectsAdmin(t *testing.T) {
	r := newDashboardRouter(adminSubject())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard/csm/clients", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestAssignRequiresBothIDs(t *testing.T) {
	r := newDashboardRouter(adminSubject())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/dashboard/admin/assign", strings.NewReader(`{"client_id":"`+uuid.NewString()+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "client_id and csm_id required") {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestInactiveCallerIsUnauthorized(t *testing.T) {
	inactive := policy.NewSubject(uuid.New(), false, true, "", nil)
	r := newDashboardRouter(inactive)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard/admin/clients", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestClientDetailRejectsMalformedID(t *testing.T) {
	r := newDashboardRouter(csmSubject())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard/client/not-a-uuid", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
