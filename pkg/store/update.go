package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Change is one row of the range_changes audit log.
type Change struct {
	ID        int64           `json:"id"`
	Entity    Entity          `json:"entity"`
	EntityID  int64           `json:"entity_id"`
	Action    string          `json:"action"`
	Before    json.RawMessage `json:"before"`
	After     json.RawMessage `json:"after"`
	ChangedAt time.Time       `json:"changed_at"`
}

// RangeState is the range portion of a row.
type RangeState struct {
	RangeStart string `json:"range_start"`
	RangeEnd   string `json:"range_end"`
	KeyStart   string `json:"key_start"`
	KeyEnd     string `json:"key_end"`
}

// UpdateRange validates start and end, then rewrites the range and keys of
// one row and appends a change record, all in one transaction.
// A missing or deleted row gives ErrNotFound; a bad code or reversed range
// gives the callnum validation error.
func (s *Store) UpdateRange(ctx context.Context, e Entity, id int64, start, end string) (Change, error) {
	if !e.valid() {
		return Change{}, fmt.Errorf("update range: unknown entity %q", e)
	}
	var ch Change
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var before RangeState
		err := tx.QueryRowContext(ctx,
			`SELECT range_start, range_end, key_start, key_end FROM `+e.table()+` WHERE id = ? AND is_deleted = 0`, id,
		).Scan(&before.RangeStart, &before.RangeEnd, &before.KeyStart, &before.KeyEnd)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s %d: %w", e, id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read %s %d: %w", e, id, err)
		}

		ps, pe, err := s.parser.ValidateRange(start, end)
		if err != nil {
			return err
		}
		after := RangeState{RangeStart: start, RangeEnd: end, KeyStart: ps.ComparableKey, KeyEnd: pe.ComparableKey}

		now := time.Now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE `+e.table()+` SET range_start = ?, range_end = ?, key_start = ?, key_end = ?, updated_at = ? WHERE id = ?`,
			after.RangeStart, after.RangeEnd, after.KeyStart, after.KeyEnd, now.Unix(), id); err != nil {
			return fmt.Errorf("update %s %d: %w", e, id, err)
		}
		ch, err = logChange(ctx, tx, e, id, "update_range", before, after, now)
		return err
	})
	if err != nil {
		return Change{}, err
	}
	return ch, nil
}

// SetActive toggles is_active on one row and logs the change.
func (s *Store) SetActive(ctx context.Context, e Entity, id int64, active bool) error {
	if !e.valid() {
		return fmt.Errorf("set active: unknown entity %q", e)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var was bool
		err := tx.QueryRowContext(ctx,
			`SELECT is_active FROM `+e.table()+` WHERE id = ? AND is_deleted = 0`, id).Scan(&was)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s %d: %w", e, id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read %s %d: %w", e, id, err)
		}
		now := time.Now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE `+e.table()+` SET is_active = ?, updated_at = ? WHERE id = ?`, active, now.Unix(), id); err != nil {
			return fmt.Errorf("update %s %d: %w", e, id, err)
		}
		type state struct {
			Active bool `json:"is_active"`
		}
		_, err = logChange(ctx, tx, e, id, "toggle_active", state{was}, state{active}, now)
		return err
	})
}

func logChange(ctx context.Context, tx *sql.Tx, e Entity, id int64, action string, before, after any, at time.Time) (Change, error) {
	b, err := json.Marshal(before)
	if err != nil {
		return Change{}, err
	}
	a, err := json.Marshal(after)
	if err != nil {
		return Change{}, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO range_changes (entity, entity_id, action, before_state, after_state, changed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(e), id, action, string(b), string(a), at.Unix())
	if err != nil {
		return Change{}, fmt.Errorf("log change: %w", err)
	}
	changeID, _ := res.LastInsertId()
	return Change{
		ID: changeID, Entity: e, EntityID: id, Action: action,
		Before: b, After: a, ChangedAt: time.Unix(at.Unix(), 0),
	}, nil
}

// Changes returns the most recent change records, newest first.
// limit <= 0 means 50.
func (s *Store) Changes(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity, entity_id, action, before_state, after_state, changed_at
		FROM range_changes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var (
			c             Change
			before, after string
			at            int64
		)
		if err := rows.Scan(&c.ID, &c.Entity, &c.EntityID, &c.Action, &before, &after, &at); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		c.Before, c.After = json.RawMessage(before), json.RawMessage(after)
		c.ChangedAt = time.Unix(at, 0)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// RefreshReport summarizes a RefreshKeys run.
type RefreshReport struct {
	Total     int `json:"total"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

type rangeRow struct {
	entity     Entity
	id         int64
	start, end string
	keyStart   string
	keyEnd     string
}

// RefreshKeys recomputes key_start/key_end for every row of every table from
// its stored range. Rows whose range no longer parses, or is reversed, are
// logged and counted as failed; the run continues.
func (s *Store) RefreshKeys(ctx context.Context, logger *slog.Logger) (RefreshReport, error) {
	var all []rangeRow
	for _, e := range Entities {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, range_start, range_end, key_start, key_end FROM `+e.table()+` ORDER BY id`)
		if err != nil {
			return RefreshReport{}, fmt.Errorf("read %s: %w", e.table(), err)
		}
		for rows.Next() {
			r := rangeRow{entity: e}
			if err := rows.Scan(&r.id, &r.start, &r.end, &r.keyStart, &r.keyEnd); err != nil {
				rows.Close()
				return RefreshReport{}, fmt.Errorf("scan %s: %w", e.table(), err)
			}
			all = append(all, r)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return RefreshReport{}, fmt.Errorf("read %s: %w", e.table(), err)
		}
	}

	report := RefreshReport{Total: len(all)}
	now := time.Now().Unix()
	for _, r := range all {
		ps, pe, err := s.parser.ValidateRange(r.start, r.end)
		if err != nil {
			logger.Warn("refresh keys: skipping row", "entity", r.entity, "id", r.id,
				"range_start", r.start, "range_end", r.end, "error", err)
			report.Failed++
			continue
		}
		if ps.ComparableKey == r.keyStart && pe.ComparableKey == r.keyEnd {
			report.Unchanged++
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE `+r.entity.table()+` SET key_start = ?, key_end = ?, updated_at = ? WHERE id = ?`,
			ps.ComparableKey, pe.ComparableKey, now, r.id); err != nil {
			return report, fmt.Errorf("update %s %d: %w", r.entity, r.id, err)
		}
		logger.Debug("refresh keys", "entity", r.entity, "id", r.id,
			"key_start", ps.ComparableKey, "key_end", pe.ComparableKey)
		report.Updated++
	}
	return report, nil
}
