package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/byod/internal/model"
)

const maxHistoryLimit = 1000

// InsertCycleBatch appends cycle records in a single transaction. If the
// batch fails it is retried record by record so one bad row does not drop
// the rest.
func (s *Store) InsertCycleBatch(records []*model.CycleRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.insertCyclesTx(ctx, records)
	if err == nil {
		return nil
	}

	var failed int
	for _, r := range records {
		if rerr := s.insertCyclesTx(ctx, []*model.CycleRecord{r}); rerr != nil {
			failed++
			log.Printf("duckdb: dropping cycle record (id=%s outcome=%s): %v", r.ID, r.Outcome, rerr)
		}
	}
	if failed == len(records) {
		return fmt.Errorf("inserting %d cycle records: %w", len(records), err)
	}
	if failed > 0 {
		log.Printf("duckdb: batch partially failed: %d/%d cycle records dropped", failed, len(records))
	}
	return nil
}

func (s *Store) insertCyclesTx(ctx context.Context, records []*model.CycleRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO poll_cycles (id, started_at, duration_ns, trigger_kind, http_status, directive_status, outcome, message, image_url, payload_bytes, next_interval_ns) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		var directiveStatus any
		if r.DirectiveStatus != nil {
			directiveStatus = int32(*r.DirectiveStatus)
		}
		if _, err := stmt.ExecContext(ctx,
			id, r.StartedAt.UTC(), int64(r.Duration), string(r.Trigger),
			int32(r.HTTPStatus), directiveStatus, string(r.Outcome),
			r.Message, r.ImageURL, int64(r.PayloadBytes), int64(r.NextInterval),
		); err != nil {
			return fmt.Errorf("cycle insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// RecentCycles returns up to limit cycles, newest first.
func (s *Store) RecentCycles(limit int) ([]model.CycleRecord, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, started_at, duration_ns, trigger_kind, http_status, directive_status, outcome, message, image_url, payload_bytes, next_interval_ns
		FROM poll_cycles ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CycleRecord
	for rows.Next() {
		var (
			rec             model.CycleRecord
			durationNS      int64
			nextNS          int64
			trigger         string
			outcome         string
			httpStatus      int32
			directiveStatus sql.NullInt32
			payloadBytes    int64
		)
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &durationNS, &trigger, &httpStatus,
			&directiveStatus, &outcome, &rec.Message, &rec.ImageURL, &payloadBytes, &nextNS); err != nil {
			log.Printf("duckdb scan error (RecentCycles): %v", err)
			continue
		}
		rec.Duration = time.Duration(durationNS)
		rec.NextInterval = time.Duration(nextNS)
		rec.Trigger = model.Trigger(trigger)
		rec.Outcome = model.Outcome(outcome)
		rec.HTTPStatus = int(httpStatus)
		rec.PayloadBytes = int(payloadBytes)
		if directiveStatus.Valid {
			v := int(directiveStatus.Int32)
			rec.DirectiveStatus = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// OutcomeCounts returns the number of cycles per outcome.
func (s *Store) OutcomeCounts() (map[model.Outcome]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM poll_cycles GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[model.Outcome]int64)
	for rows.Next() {
		var outcome string
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			log.Printf("duckdb scan error (OutcomeCounts): %v", err)
			continue
		}
		result[model.Outcome(outcome)] = count
	}
	return result, rows.Err()
}

// CycleCount returns the total number of stored cycles.
func (s *Store) CycleCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM poll_cycles`).Scan(&n)
	return n, err
}

// DeleteBefore removes cycles that started before cutoff and returns how
// many rows were deleted.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM poll_cycles WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
