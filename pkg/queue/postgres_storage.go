package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage implements EnqueuerStorage and WorkerStorage on top of
// Postgres. Claims use FOR UPDATE SKIP LOCKED so concurrent workers never
// pick the same task, and expired locks are reclaimed as part of the claim
// query itself, so no background sweeper is required.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a Postgres-backed queue storage.
func NewPostgresStorage(pool *pgxpool.Pool) (*PostgresStorage, error) {
	if pool == nil {
		return nil, ErrStorageNil
	}
	return &PostgresStorage{pool: pool}, nil
}

// CreateTask implements EnqueuerStorage.
func (ps *PostgresStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}

	const q = `
		INSERT INTO tasks (id, queue, task_name, payload, status, attempts, max_attempts, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := ps.pool.Exec(ctx, q,
		task.ID, task.Queue, task.TaskName, task.Payload, task.Status,
		task.Attempts, task.MaxAttempts, task.ScheduledAt, task.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// ClaimTask implements WorkerStorage. A task is runnable when it is pending
// and due, or when its processing lock has expired (worker crash).
func (ps *PostgresStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	const q = `
		UPDATE tasks SET
			status = 'processing',
			locked_until = now() + $1,
			locked_by = $2
		WHERE id = (
			SELECT id FROM tasks
			WHERE queue = ANY($3)
			  AND (
				(status = 'pending' AND scheduled_at <= now())
				OR (status = 'processing' AND locked_until < now())
			  )
			ORDER BY scheduled_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, queue, task_name, payload, status, attempts, max_attempts,
			scheduled_at, locked_until, locked_by, processed_at, error, created_at`

	row := ps.pool.QueryRow(ctx, q, lockDuration, workerID, queues)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoTaskToClaim
		}
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return task, nil
}

// CompleteTask implements WorkerStorage.
func (ps *PostgresStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	const q = `
		UPDATE tasks SET
			status = 'completed',
			processed_at = now(),
			locked_until = NULL,
			locked_by = NULL
		WHERE id = $1 AND status = 'processing'`

	tag, err := ps.pool.Exec(ctx, q, taskID)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// FailTask implements WorkerStorage. Backoff is computed in SQL with the
// same polynomial curve as Backoff: attempts^2 * 30s.
func (ps *PostgresStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	const q = `
		UPDATE tasks SET
			attempts = attempts + 1,
			error = $2,
			locked_until = NULL,
			locked_by = NULL,
			status = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'pending' END,
			scheduled_at = CASE WHEN attempts + 1 >= max_attempts THEN scheduled_at
				ELSE now() + make_interval(secs => ((attempts + 1) * (attempts + 1) * 30)) END
		WHERE id = $1 AND status = 'processing'`

	tag, err := ps.pool.Exec(ctx, q, taskID, errorMsg)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// MoveToDeadLetter implements WorkerStorage. The copy and delete run in one
// transaction so a task is never lost or duplicated between the two tables.
func (ps *PostgresStorage) MoveToDeadLetter(ctx context.Context, taskID uuid.UUID) error {
	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin dead letter tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insert = `
		INSERT INTO tasks_dlq (id, task_id, queue, task_name, payload, error, attempts, failed_at, created_at)
		SELECT $2, id, queue, task_name, payload, COALESCE(error, ''), attempts, now(), now()
		FROM tasks WHERE id = $1`

	tag, err := tx.Exec(ctx, insert, taskID, uuid.New())
	if err != nil {
		return fmt.Errorf("insert dead letter entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID); err != nil {
		return fmt.Errorf("delete dead task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit dead letter tx: %w", err)
	}
	return nil
}

// ExtendLock implements WorkerStorage.
func (ps *PostgresStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	const q = `
		UPDATE tasks SET locked_until = now() + $2
		WHERE id = $1 AND status = 'processing'`

	tag, err := ps.pool.Exec(ctx, q, taskID, duration)
	if err != nil {
		return fmt.Errorf("extend lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(
		&t.ID, &t.Queue, &t.TaskName, &t.Payload, &t.Status, &t.Attempts,
		&t.MaxAttempts, &t.ScheduledAt, &t.LockedUntil, &t.LockedBy,
		&t.ProcessedAt, &t.Error, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
