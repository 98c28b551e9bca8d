package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	_ "github.com/mattn/go-sqlite3"

	"adbfleet/models"
)

//go:embed migrations.sql
var migrations string

// DefaultLimit is used by List when limit is not positive.
const DefaultLimit = 50

// ErrNotFound is returned by Get for an unknown dispatch id.
var ErrNotFound = errors.New("dispatch not found")

// History is the SQLite-backed log of completed dispatches.
type History struct {
	db     *sql.DB
	logger log.Logger
}

// Open opens (creating if needed) the history database at path and runs the
// migrations.
func Open(path string, logger log.Logger) (*History, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// sqlite allows one writer; observers may record concurrently.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	if _, err := db.Exec(migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}

	logger = log.With(logger, "component", "history")
	level.Info(logger).Log("msg", "history database initialized", "path", path)
	return &History{db: db, logger: logger}, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

// Record stores one dispatch and its per-device outcomes.
func (h *History) Record(ctx context.Context, rec models.DispatchRecord) error {
	devices, err := json.Marshal(rec.Devices)
	if err != nil {
		return fmt.Errorf("encode devices: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO dispatches (id, command, devices, failed, timestamp) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Command, string(devices), rec.Failed, rec.Timestamp,
	); err != nil {
		return fmt.Errorf("insert dispatch %s: %w", rec.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dispatch_results (dispatch_id, position, device, stdout, stderr, exit_code, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare results: %w", err)
	}
	defer stmt.Close()

	for i, o := range rec.Results {
		if _, err := stmt.ExecContext(ctx, rec.ID, i, o.Device, o.Stdout, o.Stderr, o.ExitCode, o.Error); err != nil {
			return fmt.Errorf("insert result %s/%d: %w", rec.ID, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dispatch %s: %w", rec.ID, err)
	}
	level.Debug(h.logger).Log("msg", "recorded dispatch", "id", rec.ID, "devices", len(rec.Results))
	return nil
}

// Save records rec, logging instead of returning failures. It matches the
// signature expected by service.RecordObserver.
func (h *History) Save(ctx context.Context, rec models.DispatchRecord) {
	if err := h.Record(ctx, rec); err != nil {
		level.Error(h.logger).Log("msg", "failed to record dispatch", "id", rec.ID, "err", err)
	}
}

// List returns the most recent dispatches, newest first.
func (h *History) List(ctx context.Context, limit int) ([]models.DispatchRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, command, devices, failed, timestamp FROM dispatches
		 ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}

	records := []models.DispatchRecord{}
	for rows.Next() {
		rec, err := scanDispatch(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list dispatches: %w", err)
	}
	rows.Close()

	for i := range records {
		results, err := h.results(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Results = results
	}
	return records, nil
}

// Get returns one dispatch by id.
func (h *History) Get(ctx context.Context, id string) (models.DispatchRecord, error) {
	row := h.db.QueryRowContext(ctx,
		`SELECT id, command, devices, failed, timestamp FROM dispatches WHERE id = ?`, id)
	rec, err := scanDispatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DispatchRecord{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.DispatchRecord{}, err
	}
	rec.Results, err = h.results(ctx, id)
	return rec, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDispatch(s scanner) (models.DispatchRecord, error) {
	var rec models.DispatchRecord
	var devices string
	if err := s.Scan(&rec.ID, &rec.Command, &devices, &rec.Failed, &rec.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan dispatch: %w", err)
	}
	if err := json.Unmarshal([]byte(devices), &rec.Devices); err != nil {
		return rec, fmt.Errorf("decode devices of %s: %w", rec.ID, err)
	}
	return rec, nil
}

func (h *History) results(ctx context.Context, id string) ([]models.DeviceOutcome, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT device, stdout, stderr, exit_code, error FROM dispatch_results
		 WHERE dispatch_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("load results of %s: %w", id, err)
	}
	defer rows.Close()

	outcomes := []models.DeviceOutcome{}
	for rows.Next() {
		var o models.DeviceOutcome
		if err := rows.Scan(&o.Device, &o.Stdout, &o.Stderr, &o.ExitCode, &o.Error); err != nil {
			return nil, fmt.Errorf("scan result of %s: %w", id, err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
