package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"revenue-jobs/internal/auth"
	"revenue-jobs/internal/entity"
	"revenue-jobs/internal/repository/postgresql"
	"revenue-jobs/internal/service"
	httptransport "revenue-jobs/internal/transport/http"
)

const testSecret = "handler-test-secret"

// ---- fakes ----

type repoWithJobs struct {
	createID uuid.UUID
	jobs     map[uuid.UUID]*entity.Job
}

func (r *repoWithJobs) Create(ctx context.Context, typ string, priority int, input json.RawMessage) (uuid.UUID, error) {
	now := time.Now().UTC()

	j := &entity.Job{
		ID:        r.createID,
		Type:      typ,
		Status:    entity.StatusWaiting,
		Priority:  priority,
		Input:     input,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if r.jobs == nil {
		r.jobs = map[uuid.UUID]*entity.Job{}
	}
	r.jobs[r.createID] = j
	return r.createID, nil
}

func (r *repoWithJobs) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, postgresql.ErrNotFound
	}
	return j, nil
}

type queueStub struct {
	enqueuedIDs        []string
	enqueuedPriorities []int
}

func (q *queueStub) Enqueue(ctx context.Context, jobID string, priority int) error {
	q.enqueuedIDs = append(q.enqueuedIDs, jobID)
	q.enqueuedPriorities = append(q.enqueuedPriorities, priority)
	return nil
}

// ---- helpers ----

func newTestRouter(t *testing.T, repo service.JobRepository, queue service.JobQueue) http.Handler {
	t.Helper()
	verifier, err := auth.NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	svc := service.NewJobService(repo, queue)
	h := httptransport.NewHandler(svc)
	return httptransport.Routes(h, verifier)
}

func authed(t *testing.T, req *http.Request) *http.Request {
	t.Helper()
	token, err := auth.Token(testSecret, "test-user", time.Minute)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

type envelope struct {
	Success bool           `json:"success"`
	Job     map[string]any `json:"job"`
	Error   string         `json:"error"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("invalid json response: %v, body=%s", err, body)
	}
	return env
}

// ---- tests ----

func TestHTTP_CreateJob_202_AndEnvelope(t *testing.T) {
	id := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	repo := &repoWithJobs{createID: id, jobs: map[uuid.UUID]*entity.Job{}}
	queue := &queueStub{}
	router := newTestRouter(t, repo, queue)

	body := `{"type":"echo","priority":2,"input":{"hello":"world"}}`
	req := authed(t, httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString(body)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d, body=%s", rr.Code, rr.Body.String())
	}

	env := decodeEnvelope(t, rr.Body.Bytes())
	if !env.Success {
		t.Fatalf("expected success envelope, body=%s", rr.Body.String())
	}
	if env.Job["jobId"] != id.String() {
		t.Fatalf("expected jobId=%s, got %v", id.String(), env.Job["jobId"])
	}
	if env.Job["status"] != string(entity.StatusWaiting) {
		t.Fatalf("expected status=waiting, got %v", env.Job["status"])
	}

	// queue got priority=2
	if len(queue.enqueuedIDs) != 1 || queue.enqueuedIDs[0] != id.String() {
		t.Fatalf("expected enqueue id=%s, got %#v", id.String(), queue.enqueuedIDs)
	}
	if len(queue.enqueuedPriorities) != 1 || queue.enqueuedPriorities[0] != 2 {
		t.Fatalf("expected enqueue priority=2, got %#v", queue.enqueuedPriorities)
	}
}

func TestHTTP_GetJob_EnvelopeForWaitingJob(t *testing.T) {
	id := uuid.MustParse("44444444-4444-4444-4444-444444444444")

	repo := &repoWithJobs{
		createID: id,
		jobs: map[uuid.UUID]*entity.Job{
			id: {
				ID:        id,
				Type:      "revenue_report",
				Status:    entity.StatusWaiting,
				Priority:  1,
				Progress:  0,
				Input:     json.RawMessage(`{}`),
				CreatedAt: time.Now().UTC(),
				UpdatedAt: time.Now().UTC(),
			},
		},
	}
	router := newTestRouter(t, repo, &queueStub{})

	req := authed(t, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id.String(), nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}

	env := decodeEnvelope(t, rr.Body.Bytes())
	if !env.Success || env.Job == nil {
		t.Fatalf("expected success envelope with job, body=%s", rr.Body.String())
	}
	if env.Job["status"] != string(entity.StatusWaiting) {
		t.Fatalf("expected status=waiting, got %v", env.Job["status"])
	}
	// numbers decode as float64 from map[string]any
	if env.Job["progress"] != float64(0) {
		t.Fatalf("expected progress=0, got %v", env.Job["progress"])
	}
	if _, ok := env.Job["result"]; ok {
		t.Fatalf("result must be absent while waiting, body=%s", rr.Body.String())
	}
}

func TestHTTP_GetJob_FailedCarriesReason(t *testing.T) {
	id := uuid.MustParse("55555555-5555-5555-5555-555555555555")
	reason := "quota exceeded"

	repo := &repoWithJobs{
		createID: id,
		jobs: map[uuid.UUID]*entity.Job{
			id: {
				ID:           id,
				Type:         "enrich_account",
				Status:       entity.StatusFailed,
				FailedReason: &reason,
				CreatedAt:    time.Now().UTC(),
				UpdatedAt:    time.Now().UTC(),
			},
		},
	}
	router := newTestRouter(t, repo, &queueStub{})

	req := authed(t, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id.String(), nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr.Body.Bytes())
	if env.Job["failedReason"] != reason {
		t.Fatalf("expected failedReason=%q, got %v", reason, env.Job["failedReason"])
	}
}

func TestHTTP_GetJob_404_Envelope(t *testing.T) {
	router := newTestRouter(t, &repoWithJobs{jobs: map[uuid.UUID]*entity.Job{}}, &queueStub{})

	req := authed(t, httptest.NewRequest(http.MethodGet, "/api/jobs/"+uuid.NewString(), nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d, body=%s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr.Body.Bytes())
	if env.Success || env.Error == "" {
		t.Fatalf("expected failure envelope, body=%s", rr.Body.String())
	}
}

func TestHTTP_GetJob_401_WithoutToken(t *testing.T) {
	router := newTestRouter(t, &repoWithJobs{jobs: map[uuid.UUID]*entity.Job{}}, &queueStub{})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d, body=%s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr.Body.Bytes())
	if env.Success {
		t.Fatalf("expected failure envelope, body=%s", rr.Body.String())
	}
}

func TestHTTP_GetJobResult_409_WhenNotCompleted(t *testing.T) {
	id := uuid.MustParse("66666666-6666-6666-6666-666666666666")

	repo := &repoWithJobs{
		createID: id,
		jobs: map[uuid.UUID]*entity.Job{
			id: {
				ID:        id,
				Type:      "echo",
				Status:    entity.StatusActive,
				Progress:  45,
				Input:     json.RawMessage(`{"a":1}`),
				CreatedAt: time.Now().UTC(),
				UpdatedAt: time.Now().UTC(),
			},
		},
	}
	router := newTestRouter(t, repo, &queueStub{})

	req := authed(t, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id.String()+"/result", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d, body=%s", rr.Code, rr.Body.String())
	}
}

func TestHTTP_GetJobResult_200_WhenCompleted_ReturnsRawJSON(t *testing.T) {
	id := uuid.MustParse("77777777-7777-7777-7777-777777777777")

	repo := &repoWithJobs{
		createID: id,
		jobs: map[uuid.UUID]*entity.Job{
			id: {
				ID:        id,
				Type:      "echo",
				Status:    entity.StatusCompleted,
				Progress:  100,
				Input:     json.RawMessage(`{"hello":"world"}`),
				Result:    json.RawMessage(`{"hello":"world"}`),
				CreatedAt: time.Now().UTC(),
				UpdatedAt: time.Now().UTC(),
			},
		},
	}
	router := newTestRouter(t, repo, &queueStub{})

	req := authed(t, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id.String()+"/result", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}

	got := strings.TrimSpace(rr.Body.String())
	if got != `{"hello":"world"}` {
		t.Fatalf("expected raw json result, got %s", got)
	}
}
