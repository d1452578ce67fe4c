package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"revenue-jobs/internal/entity"
)

type JobRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	MarkActive(ctx context.Context, id uuid.UUID) error
	SetProgress(ctx context.Context, id uuid.UUID, progress int) error
	SetCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage) error
	SetFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type Processor struct {
	repo JobRepo
}

func NewProcessor(repo JobRepo) *Processor {
	return &Processor{repo: repo}
}

func (p *Processor) Process(ctx context.Context, jobID string) error {
	start := time.Now()

	id, err := uuid.Parse(jobID)
	if err != nil {
		log.Printf("[worker] job_id=%s parse_error=%v", jobID, err)
		return err
	}

	// waiting -> active, attempts_made++, processed_on stamped
	if err := p.repo.MarkActive(ctx, id); err != nil {
		log.Printf("[worker] job_id=%s mark_active error=%v", id.String(), err)
		return err
	}

	job, err := p.repo.GetByID(ctx, id)
	if err != nil {
		log.Printf("[worker] job_id=%s get_job error=%v", id.String(), err)
		return err
	}

	log.Printf("[worker] job_id=%s type=%s status=active", id.String(), job.Type)

	// progress writes are best-effort; poll clients only ever see snapshots
	report := func(progress int) {
		if err := p.repo.SetProgress(ctx, id, progress); err != nil {
			log.Printf("[worker] job_id=%s set_progress=%d error=%v", id.String(), progress, err)
		}
	}

	result, procErr := runJob(ctx, job.Type, job.Input, report)
	if procErr != nil {
		reason := procErr.Error()
		_ = p.repo.SetFailed(ctx, id, reason)

		log.Printf("[worker] job_id=%s type=%s status=failed duration_ms=%d reason=%s",
			id.String(), job.Type, time.Since(start).Milliseconds(), reason,
		)
		return procErr
	}

	if err := p.repo.SetCompleted(ctx, id, result); err != nil {
		log.Printf("[worker] job_id=%s type=%s set_completed error=%v", id.String(), job.Type, err)
		return err
	}

	log.Printf("[worker] job_id=%s type=%s status=completed duration_ms=%d",
		id.String(), job.Type, time.Since(start).Milliseconds(),
	)
	return nil
}

func runJob(ctx context.Context, typ string, input json.RawMessage, report func(int)) (json.RawMessage, error) {
	switch typ {
	case "revenue_report":
		for _, pct := range []int{20, 45, 70, 90} {
			if err := sleepCtx(ctx, 500*time.Millisecond); err != nil {
				return nil, err
			}
			report(pct)
		}
		return json.RawMessage(`{"report_url":"https://example.local/reports/latest.pdf"}`), nil

	case "enrich_account":
		var in struct {
			AccountID string `json:"account_id"`
		}
		if err := json.Unmarshal(input, &in); err != nil || in.AccountID == "" {
			return nil, errors.New("enrich_account: account_id is required")
		}
		if err := sleepCtx(ctx, 1*time.Second); err != nil {
			return nil, err
		}
		report(50)
		if err := sleepCtx(ctx, 1*time.Second); err != nil {
			return nil, err
		}

		out, _ := json.Marshal(map[string]any{
			"account_id": in.AccountID,
			"score":      87,
			"segment":    "expansion",
		})
		return out, nil

	case "echo":
		if err := sleepCtx(ctx, 500*time.Millisecond); err != nil {
			return nil, err
		}
		report(50)
		if len(input) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return input, nil

	default:
		return nil, fmt.Errorf("unknown job type: %s", typ)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
