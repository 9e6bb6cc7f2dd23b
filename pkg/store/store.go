// Package store keeps the history of report runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Sternrassler/job-site-monitor/pkg/client"
	"github.com/Sternrassler/job-site-monitor/pkg/estimator"
	"github.com/Sternrassler/job-site-monitor/pkg/logging"
	"github.com/Sternrassler/job-site-monitor/pkg/report"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// timeLayout sorts lexicographically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Record is one stored estimate.
type Record struct {
	ReportID       string
	ReportDate     string
	Period         client.Period
	TotalCount     int
	NativeCount    int
	PartnerACount  int
	PartnerBCount  int
	PartnerARange  *estimator.Range
	PartnerBRange  *estimator.Range
	RequestCount   int
	ElapsedSeconds float64
	GeneratedAt    time.Time
	Payload        json.RawMessage
}

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store dir: %w", err)
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// sqlite wants a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logging.NewLogger("store")}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS estimates (
  report_id TEXT NOT NULL,
  report_date TEXT NOT NULL,
  period TEXT NOT NULL,
  total_count INTEGER NOT NULL,
  native_count INTEGER NOT NULL,
  partner_a_count INTEGER NOT NULL,
  partner_b_count INTEGER NOT NULL,
  partner_a_start INTEGER,
  partner_a_end INTEGER,
  partner_b_start INTEGER,
  partner_b_end INTEGER,
  request_count INTEGER NOT NULL DEFAULT 0,
  elapsed_seconds REAL NOT NULL DEFAULT 0,
  generated_at TEXT NOT NULL,
  payload TEXT NOT NULL,
  PRIMARY KEY (report_id, period)
);`); err != nil {
		return fmt.Errorf("create estimates: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_estimates_period_generated
  ON estimates(period, generated_at DESC);`); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveReport stores both estimates of rep in one transaction. Saving the
// same report twice replaces the earlier rows.
func (s *Store) SaveReport(ctx context.Context, rep *report.Report) error {
	if rep == nil {
		return errors.New("report cannot be nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	saved := 0
	for _, res := range []*estimator.Result{rep.All, rep.Today} {
		if res == nil {
			continue
		}
		if err := insertResult(ctx, tx, rep, res); err != nil {
			return err
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug().
		Str("report_id", rep.ID.String()).
		Int("rows", saved).
		Msg("Report stored")
	return nil
}

func insertResult(ctx context.Context, tx *sql.Tx, rep *report.Report, res *estimator.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal %s result: %w", res.Period, err)
	}

	aStart, aEnd := rangeColumns(res.PartnerARange)
	bStart, bEnd := rangeColumns(res.PartnerBRange)

	_, err = tx.ExecContext(ctx, `
INSERT OR REPLACE INTO estimates (
  report_id, report_date, period, total_count, native_count, partner_a_count, partner_b_count,
  partner_a_start, partner_a_end, partner_b_start, partner_b_end,
  request_count, elapsed_seconds, generated_at, payload
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rep.ID.String(), rep.ReportDate, string(res.Period),
		res.TotalCount, res.NativeCount, res.PartnerACount, res.PartnerBCount,
		aStart, aEnd, bStart, bEnd,
		res.RequestCount, res.ElapsedSeconds,
		rep.GeneratedAt.UTC().Format(timeLayout), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert %s estimate: %w", res.Period, err)
	}
	return nil
}

func rangeColumns(r *estimator.Range) (sql.NullInt64, sql.NullInt64) {
	if r == nil {
		return sql.NullInt64{}, sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(r.StartPage), Valid: true}, sql.NullInt64{Int64: int64(r.EndPage), Valid: true}
}

// Recent returns up to limit records for period, newest first.
func (s *Store) Recent(ctx context.Context, period client.Period, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT report_id, report_date, period, total_count, native_count, partner_a_count, partner_b_count,
       request_count, elapsed_seconds, generated_at, payload
FROM estimates
WHERE period = ?
ORDER BY generated_at DESC
LIMIT ?;`, string(period), limit)
	if err != nil {
		return nil, fmt.Errorf("query estimates: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			p         string
			generated string
			payload   string
		)
		if err := rows.Scan(
			&rec.ReportID, &rec.ReportDate, &p,
			&rec.TotalCount, &rec.NativeCount, &rec.PartnerACount, &rec.PartnerBCount,
			&rec.RequestCount, &rec.ElapsedSeconds, &generated, &payload,
		); err != nil {
			return nil, fmt.Errorf("scan estimate: %w", err)
		}
		rec.Period = client.Period(p)
		rec.Payload = json.RawMessage(payload)
		if t, err := time.Parse(timeLayout, generated); err == nil {
			rec.GeneratedAt = t
		}

		var res estimator.Result
		if err := json.Unmarshal(rec.Payload, &res); err == nil {
			rec.PartnerARange = res.PartnerARange
			rec.PartnerBRange = res.PartnerBRange
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
