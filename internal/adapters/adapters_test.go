package adapters

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rivo_backend/internal/auth"
	"rivo_backend/platform/apperr"
	"rivo_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeUsers struct {
	users   map[uuid.UUID]auth.Profile
	csms    []auth.Profile
	noRole  bool
	listErr error
}

func (f fakeUsers) GetActiveUser(_ context.Context, id uuid.UUID) (auth.Profile, error) {
	p, ok := f.users[id]
	if !ok {
		return auth.Profile{}, apperr.NotFound("user not found")
	}
	return p, nil
}

func (f fakeUsers) ListActiveByRole(context.Context, string) ([]auth.Profile, error) {
	if f.noRole {
		return nil, apperr.NotFound(`role "csm" does not exist`)
	}
	return f.csms, f.listErr
}

func TestGetActiveCSM(t *testing.T) {
	cara := auth.Profile{ID: uuid.New(), Email: "cara@rivo.test", FirstName: "Cara"}
	ada := auth.Profile{ID: uuid.New(), Email: "ada@rivo.test"}
	dir := NewStaffDirectory(fakeUsers{
		users: map[uuid.UUID]auth.Profile{cara.ID: cara, ada.ID: ada},
		csms:  []auth.Profile{cara},
	})

	got, err := dir.GetActiveCSM(context.Background(), cara.ID)
	if err != nil {
		t.Fatalf("GetActiveCSM: %v", err)
	}
	if got.ID != cara.ID || got.Email != cara.Email {
		t.Fatalf("unexpected user %+v", got)
	}

	_, err = dir.GetActiveCSM(context.Background(), ada.ID)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("non-csm should be NotFound, got %v", err)
	}
}

func TestMissingCSMRole(t *testing.T) {
	dir := NewStaffDirectory(fakeUsers{noRole: true})

	_, err := dir.GetActiveCSM(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected BadRequest, got %v", err)
	}

	users, err := dir.ListCSMUsers(context.Background())
	if err != nil {
		t.Fatalf("ListCSMUsers: %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", users)
	}
}

type fakeQueue struct {
	mu        sync.Mutex
	summaries int
	archives  int
	err       error
}

func (q *fakeQueue) EnqueueSummarizeChat(context.Context, uuid.UUID, uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.summaries++
	return q.err
}

func (q *fakeQueue) EnqueueArchiveTranscript(context.Context, uuid.UUID, uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.archives++
	return q.err
}

type countingJob struct {
	mu    sync.Mutex
	calls int
	live  bool
}

func (j *countingJob) record(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	_, j.live = ctx.Deadline()
	return nil
}

func (j *countingJob) SummarizeClient(ctx context.Context, _, _ uuid.UUID) error { return j.record(ctx) }
func (j *countingJob) Archive(ctx context.Context, _, _ uuid.UUID) error         { return j.record(ctx) }

func TestFollowUpEnqueuesWhenQueueAvailable(t *testing.T) {
	queue := &fakeQueue{}
	summ, arch := &countingJob{}, &countingJob{}
	f := NewIntakeFollowUp(queue, summ, arch, time.Second, logger.Discard())

	f.ClientInitialized(context.Background(), uuid.New(), uuid.New())
	f.Wait()

	if queue.summaries != 1 || queue.archives != 1 {
		t.Fatalf("expected one of each task, got %d/%d", queue.summaries, queue.archives)
	}
	if summ.calls != 0 || arch.calls != 0 {
		t.Fatal("nothing should run inline")
	}
}

func TestFollowUpRunsInlineWithoutQueue(t *testing.T) {
	summ := &countingJob{}
	f := NewIntakeFollowUp(nil, summ, nil, time.Second, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	f.ClientInitialized(ctx, uuid.New(), uuid.New())
	cancel()
	f.Wait()

	if summ.calls != 1 {
		t.Fatalf("expected inline summary, got %d", summ.calls)
	}
	if !summ.live {
		t.Fatal("inline job should run with its own deadline")
	}
}

func TestFollowUpFallsBackWhenEnqueueFails(t *testing.T) {
	queue := &fakeQueue{err: errors.New("redis down")}
	summ, arch := &countingJob{}, &countingJob{}
	f := NewIntakeFollowUp(queue, summ, arch, time.Second, logger.Discard())

	f.ClientInitialized(context.Background(), uuid.New(), uuid.New())
	f.Wait()

	if summ.calls != 1 || arch.calls != 1 {
		t.Fatalf("expected inline fallback, got %d/%d", summ.calls, arch.calls)
	}
}
