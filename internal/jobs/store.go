package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kikiluvv/loopifi/internal/loops"
	"github.com/kikiluvv/loopifi/pkg/util"
)

// Job status strings stored alongside the free-form pipeline status.
const (
	StatusQueued     = "In Queue"
	StatusLoopifying = "Loopifying..."
	StatusDone       = "Done"
	StatusFailed     = "Failed"
)

// fixed width so created_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Job is one request to find loops in a source video.
type Job struct {
	ID           string
	SourcePath   string
	StartSeconds float64
	EndSeconds   float64
	Sound        bool
	Stabilize    bool
	Status       string
	Progress     float64
	Done         bool
	Failed       bool
	Error        string
	CreatedAt    time.Time
	FinishedAt   *time.Time
	Loops        []Loop
}

// Interval returns the search window of the job.
func (j *Job) Interval() loops.Interval {
	return loops.Interval{Start: j.StartSeconds, End: j.EndSeconds}
}

// Loop is a rendered loop persisted for a job.
type Loop struct {
	ID           int64
	JobID        string
	Position     int
	Score        float64
	StartFrame   int
	EndFrame     int
	StartSeconds float64
	Duration     float64
	WebMLocation string
	GIFLocation  string
	MP4Location  string
}

// NewJob describes a job to enqueue.
type NewJob struct {
	SourcePath string
	Interval   loops.Interval
	Sound      bool
	Stabilize  bool
}

// Store persists jobs and their loops in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database at path.
func Open(path string) (*Store, error) {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("ensure database dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Create inserts a queued job.
func (s *Store) Create(ctx context.Context, req NewJob) (*Job, error) {
	if req.SourcePath == "" {
		return nil, errors.New("source path is required")
	}

	job := &Job{
		ID:           uuid.New().String(),
		SourcePath:   req.SourcePath,
		StartSeconds: req.Interval.Start,
		EndSeconds:   req.Interval.End,
		Sound:        req.Sound,
		Stabilize:    req.Stabilize,
		Status:       StatusQueued,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, source_path, start_seconds, end_seconds, sound, stabilize, status, progress, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		job.ID, job.SourcePath, job.StartSeconds, job.EndSeconds,
		boolToInt(job.Sound), boolToInt(job.Stabilize), job.Status,
		job.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// Get returns a job with its loops, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.Loops, err = s.loopsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// List returns the most recent jobs first, without their loops.
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// UpdateProgress records the latest pipeline status of a running job.
func (s *Store) UpdateProgress(ctx context.Context, id, status string, progress float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, progress = ? WHERE id = ?`, status, progress, id)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return requireRow(res, id)
}

// Complete stores the rendered loops and marks the job done.
func (s *Store) Complete(ctx context.Context, id string, records []loops.LoopRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, rec := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO loops (job_id, position, score, start_frame, end_frame, start_seconds, duration,
				webm_location, gif_location, mp4_location)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, rec.Rank, rec.Score, rec.StartFrame, rec.EndFrame, rec.StartSeconds, rec.Duration,
			rec.WebMLocation, rec.GIFLocation, rec.MP4Location,
		)
		if err != nil {
			return fmt.Errorf("insert loop: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET done = 1, failed = 0, status = ?, progress = 100, finished_at = ?
		WHERE id = ?`,
		StatusDone, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete tx: %w", err)
	}
	return nil
}

// Fail marks the job as finished unsuccessfully.
func (s *Store) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET done = 1, failed = 1, status = ?, error_message = ?, finished_at = ?
		WHERE id = ?`,
		StatusFailed, msg, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return requireRow(res, id)
}

func (s *Store) loopsFor(ctx context.Context, jobID string) ([]Loop, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, position, score, start_frame, end_frame, start_seconds, duration,
			webm_location, gif_location, mp4_location
		FROM loops WHERE job_id = ? ORDER BY position`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query loops: %w", err)
	}
	defer rows.Close()

	var out []Loop
	for rows.Next() {
		var l Loop
		if err := rows.Scan(&l.ID, &l.JobID, &l.Position, &l.Score, &l.StartFrame, &l.EndFrame,
			&l.StartSeconds, &l.Duration, &l.WebMLocation, &l.GIFLocation, &l.MP4Location); err != nil {
			return nil, fmt.Errorf("scan loop: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const jobColumns = `id, source_path, start_seconds, end_seconds, sound, stabilize, status, progress,
	done, failed, error_message, created_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job                            Job
		sound, stabilize, done, failed int
		errMsg, finishedAt             sql.NullString
		createdAt                      string
	)
	err := row.Scan(&job.ID, &job.SourcePath, &job.StartSeconds, &job.EndSeconds,
		&sound, &stabilize, &job.Status, &job.Progress, &done, &failed,
		&errMsg, &createdAt, &finishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	job.Sound = sound != 0
	job.Stabilize = stabilize != 0
	job.Done = done != 0
	job.Failed = failed != 0
	job.Error = errMsg.String

	if job.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		job.FinishedAt = &t
	}
	return &job, nil
}

// ErrJobNotFound is returned when an update targets a missing job.
var ErrJobNotFound = errors.New("job not found")

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
