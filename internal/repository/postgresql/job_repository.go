package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"revenue-jobs/internal/entity"
)

var ErrNotFound = errors.New("not found")

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, typ string, priority int, input json.RawMessage) (uuid.UUID, error) {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}

	const q = `
INSERT INTO jobs (type, status, priority, progress, input)
VALUES ($1, 'waiting', $2, 0, $3)
RETURNING id;
`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, typ, priority, input).Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	const q = `
SELECT id, type, status, priority, progress, input, result, failed_reason,
       attempts_made, created_at, updated_at, processed_on, finished_on
FROM jobs
WHERE id = $1;
`

	var (
		job         entity.Job
		statusText  string
		inputBytes  []byte
		resultBytes []byte
		reason      *string
		processedOn *time.Time
		finishedOn  *time.Time
	)

	if err := r.pool.QueryRow(ctx, q, id).Scan(
		&job.ID,
		&job.Type,
		&statusText,
		&job.Priority,
		&job.Progress,
		&inputBytes,
		&resultBytes, // NULL => nil
		&reason,      // NULL => nil
		&job.AttemptsMade,
		&job.CreatedAt,
		&job.UpdatedAt,
		&processedOn,
		&finishedOn,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	job.Status = entity.JobStatus(statusText)
	job.Input = json.RawMessage(inputBytes)
	if resultBytes != nil {
		job.Result = json.RawMessage(resultBytes)
	}
	job.FailedReason = reason
	job.ProcessedOn = processedOn
	job.FinishedOn = finishedOn

	return &job, nil
}

// MarkActive flips the job to active, stamps processed_on and counts the attempt.
func (r *JobRepository) MarkActive(ctx context.Context, id uuid.UUID) error {
	const q = `
UPDATE jobs
SET status='active', attempts_made=attempts_made+1, processed_on=now(), updated_at=now()
WHERE id=$1;
`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *JobRepository) SetProgress(ctx context.Context, id uuid.UUID, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	const q = `UPDATE jobs SET progress=$2, updated_at=now() WHERE id=$1;`

	tag, err := r.pool.Exec(ctx, q, id, progress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *JobRepository) SetCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	const q = `
UPDATE jobs
SET status='completed', progress=100, result=$2, failed_reason=NULL,
    finished_on=now(), updated_at=now()
WHERE id=$1;
`
	tag, err := r.pool.Exec(ctx, q, id, result)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *JobRepository) SetFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const q = `
UPDATE jobs
SET status='failed', failed_reason=$2, finished_on=now(), updated_at=now()
WHERE id=$1;
`
	tag, err := r.pool.Exec(ctx, q, id, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
