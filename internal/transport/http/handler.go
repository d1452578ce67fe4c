package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"revenue-jobs/internal/entity"
	"revenue-jobs/internal/service"
)

type Handler struct {
	jobSvc *service.JobService
}

func NewHandler(jobSvc *service.JobService) *Handler {
	return &Handler{jobSvc: jobSvc}
}

type createJobDTO struct {
	Type     string          `json:"type"`
	Priority *int            `json:"priority,omitempty"` // 0=low,1=normal,2=high (nil => default 1)
	Input    json.RawMessage `json:"input,omitempty"`
}

// jobPayload is the wire shape poll clients unmarshal.
type jobPayload struct {
	JobID        string           `json:"jobId"`
	Type         string           `json:"type,omitempty"`
	Status       entity.JobStatus `json:"status"`
	Progress     int              `json:"progress"`
	Result       json.RawMessage  `json:"result,omitempty"`
	FailedReason *string          `json:"failedReason,omitempty"`
	AttemptsMade int              `json:"attemptsMade"`
	Timestamp    *time.Time       `json:"timestamp,omitempty"`
	ProcessedOn  *time.Time       `json:"processedOn,omitempty"`
	FinishedOn   *time.Time       `json:"finishedOn,omitempty"`
}

func toPayload(j *entity.Job) *jobPayload {
	ts := j.CreatedAt
	p := &jobPayload{
		JobID:        j.ID.String(),
		Type:         j.Type,
		Status:       j.Status,
		Progress:     j.Progress,
		FailedReason: j.FailedReason,
		AttemptsMade: j.AttemptsMade,
		Timestamp:    &ts,
		ProcessedOn:  j.ProcessedOn,
		FinishedOn:   j.FinishedOn,
	}
	// result is only exposed once the job actually completed
	if j.Status == entity.StatusCompleted && len(j.Result) > 0 {
		p.Result = j.Result
	}
	return p
}

// CreateJob godoc
// @Summary Submit a new job
// @Description Stores the job as waiting and enqueues it for background processing.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body createJobDTO true "job payload (priority: 0=low,1=normal,2=high)"
// @Success 202 {object} jobEnvelope
// @Failure 400 {object} jobEnvelope
// @Failure 401 {object} jobEnvelope
// @Security BearerAuth
// @Router /api/jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var dto createJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	priority := 1
	if dto.Priority != nil {
		priority = *dto.Priority
	}

	id, err := h.jobSvc.CreateJob(r.Context(), service.CreateJobRequest{
		Type:     dto.Type,
		Priority: priority,
		Input:    dto.Input,
	})
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	j, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		// created but not readable back; report the id anyway
		writeJob(w, http.StatusAccepted, &jobPayload{JobID: id.String(), Status: entity.StatusWaiting})
		return
	}

	writeJob(w, http.StatusAccepted, toPayload(j))
}

// GetJob godoc
// @Summary Get job status by id
// @Description One status snapshot; poll until status is completed or failed.
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} jobEnvelope
// @Failure 400 {object} jobEnvelope
// @Failure 401 {object} jobEnvelope
// @Failure 404 {object} jobEnvelope
// @Security BearerAuth
// @Router /api/jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	j, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}

	writeJob(w, http.StatusOK, toPayload(j))
}

// GetJobResult godoc
// @Summary Get job result
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} jobEnvelope
// @Failure 401 {object} jobEnvelope
// @Failure 404 {object} jobEnvelope
// @Failure 409 {object} jobEnvelope
// @Security BearerAuth
// @Router /api/jobs/{id}/result [get]
func (h *Handler) GetJobResult(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	j, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}
	if j.Status != entity.StatusCompleted {
		writeErr(w, http.StatusConflict, "job not completed")
		return
	}

	// raw result json, no envelope
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(j.Result)
}
