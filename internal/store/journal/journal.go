// Package journal 把批次报告写入本地 sqlite，作为报告接收方之一。
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"orderflow/internal/types"

	_ "modernc.org/sqlite"
)

// Entry 是报告列表中的一行摘要。
type Entry struct {
	BatchID    string             `json:"batch_id"`
	Venue      string             `json:"venue"`
	Balance    string             `json:"balance"`
	Currency   string             `json:"currency"`
	Counts     types.ReportCounts `json:"counts"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Journal wraps a sqlite database for batch reports.
type Journal struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens or creates the sqlite database.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, path: path}, nil
}

// Close closes the underlying db.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func (j *Journal) handle() (*sql.DB, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, fmt.Errorf("journal 未初始化")
	}
	return j.db, nil
}

// Send 实现 pipeline.Notifier，同一 batch_id 重复写入时覆盖。
func (j *Journal) Send(ctx context.Context, report types.BatchReport) error {
	db, err := j.handle()
	if err != nil {
		return err
	}
	if strings.TrimSpace(report.BatchID) == "" {
		return fmt.Errorf("batch_id 不能为空")
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report failed: %w", err)
	}
	c := report.Counts()
	_, err = db.ExecContext(ctx, `
		INSERT INTO batch_reports(batch_id, venue, balance, currency, invalid, rejected, evaluation_errors,
			executed, venue_errors, timed_out, report, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(batch_id) DO UPDATE SET
			venue=excluded.venue,
			balance=excluded.balance,
			currency=excluded.currency,
			invalid=excluded.invalid,
			rejected=excluded.rejected,
			evaluation_errors=excluded.evaluation_errors,
			executed=excluded.executed,
			venue_errors=excluded.venue_errors,
			timed_out=excluded.timed_out,
			report=excluded.report,
			started_at=excluded.started_at,
			finished_at=excluded.finished_at;
	`, report.BatchID, report.Venue, report.Balance.Amount.String(), nullIfEmpty(report.Balance.Currency),
		c.Invalid, c.Rejected, c.EvaluationErrors, c.Executed, c.VenueErrors, c.TimedOut,
		string(body), report.StartedAt.UnixMilli(), report.FinishedAt.UnixMilli())
	return err
}

// List 按完成时间倒序返回最近的报告摘要。
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	db, err := j.handle()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT batch_id, venue, balance, COALESCE(currency, ''), invalid, rejected, evaluation_errors,
			executed, venue_errors, timed_out, started_at, finished_at
		FROM batch_reports
		ORDER BY finished_at DESC, batch_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e                 Entry
			started, finished int64
		)
		if err := rows.Scan(&e.BatchID, &e.Venue, &e.Balance, &e.Currency,
			&e.Counts.Invalid, &e.Counts.Rejected, &e.Counts.EvaluationErrors,
			&e.Counts.Executed, &e.Counts.VenueErrors, &e.Counts.TimedOut,
			&started, &finished); err != nil {
			return nil, err
		}
		e.StartedAt = time.UnixMilli(started)
		e.FinishedAt = time.UnixMilli(finished)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get 返回完整报告；不存在时 ok=false。
func (j *Journal) Get(ctx context.Context, batchID string) (types.BatchReport, bool, error) {
	db, err := j.handle()
	if err != nil {
		return types.BatchReport{}, false, err
	}
	var body string
	err = db.QueryRowContext(ctx, `SELECT report FROM batch_reports WHERE batch_id = ?`, batchID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return types.BatchReport{}, false, nil
	}
	if err != nil {
		return types.BatchReport{}, false, err
	}
	var report types.BatchReport
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		return types.BatchReport{}, false, fmt.Errorf("decode report %s failed: %w", batchID, err)
	}
	return report, true, nil
}

func ensureSchema(db *sql.DB) error {
	stmt := `
	CREATE TABLE IF NOT EXISTS batch_reports (
		batch_id TEXT PRIMARY KEY,
		venue TEXT NOT NULL,
		balance TEXT NOT NULL,
		currency TEXT,
		invalid INTEGER NOT NULL DEFAULT 0,
		rejected INTEGER NOT NULL DEFAULT 0,
		evaluation_errors INTEGER NOT NULL DEFAULT 0,
		executed INTEGER NOT NULL DEFAULT 0,
		venue_errors INTEGER NOT NULL DEFAULT 0,
		timed_out INTEGER NOT NULL DEFAULT 0,
		report TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_batch_reports_finished ON batch_reports(finished_at);
	`
	_, err := db.Exec(stmt)
	return err
}

func nullIfEmpty(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
