package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// BookLocation is the shelf holding a comparable key, joined up to its module.
type BookLocation struct {
	ShelfID      int64  `json:"shelf_id"`
	ShelfNumber  int    `json:"shelf_number"`
	RangeStart   string `json:"shelf_range_start"`
	RangeEnd     string `json:"shelf_range_end"`
	ImagePath    string `json:"shelf_image_path,omitempty"`
	ModuleNumber int    `json:"module_number"`
	ModuleName   string `json:"module_name"`
	Side         string `json:"part_name"`
	UnitName     string `json:"unit_name"`
	Text         string `json:"location_text"`
}

// LocateKey returns the first active shelf whose key range holds key.
// Inactive or deleted ancestors hide their shelves.
func (s *Store) LocateKey(ctx context.Context, key string) (BookLocation, error) {
	const q = `SELECT s.id, s.number, s.range_start, s.range_end, COALESCE(s.image_path, ''),
		m.number, m.name, mp.side, su.name
		FROM shelves s
		JOIN shelving_units su ON s.shelving_unit_id = su.id
		JOIN module_parts mp ON su.module_part_id = mp.id
		JOIN modules m ON mp.module_id = m.id
		WHERE s.key_start <= ? AND s.key_end >= ?
		  AND s.is_deleted = 0 AND s.is_active = 1
		  AND su.is_deleted = 0 AND su.is_active = 1
		  AND mp.is_deleted = 0 AND mp.is_active = 1
		  AND m.is_deleted = 0 AND m.is_active = 1
		ORDER BY s.key_start, s.id
		LIMIT 1`

	var loc BookLocation
	err := s.db.QueryRowContext(ctx, q, key, key).Scan(&loc.ShelfID, &loc.ShelfNumber,
		&loc.RangeStart, &loc.RangeEnd, &loc.ImagePath,
		&loc.ModuleNumber, &loc.ModuleName, &loc.Side, &loc.UnitName)
	if errors.Is(err, sql.ErrNoRows) {
		return BookLocation{}, fmt.Errorf("key %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return BookLocation{}, fmt.Errorf("locate key %s: %w", key, err)
	}
	loc.Text = fmt.Sprintf("Module %d - %s - Unit %s - Shelf %d", loc.ModuleNumber, loc.Side, loc.UnitName, loc.ShelfNumber)
	return loc, nil
}

// Stats counts the live (not deleted) structure.
type Stats struct {
	Modules           int `json:"total_modules"`
	Parts             int `json:"total_parts"`
	Units             int `json:"total_units"`
	Shelves           int `json:"total_shelves"`
	ActiveShelves     int `json:"active_shelves"`
	ShelvesWithImages int `json:"shelves_with_images"`
}

// Stats returns structure counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	const q = `SELECT
		(SELECT COUNT(*) FROM modules WHERE is_deleted = 0),
		(SELECT COUNT(*) FROM module_parts WHERE is_deleted = 0),
		(SELECT COUNT(*) FROM shelving_units WHERE is_deleted = 0),
		(SELECT COUNT(*) FROM shelves WHERE is_deleted = 0),
		(SELECT COUNT(*) FROM shelves WHERE is_deleted = 0 AND is_active = 1),
		(SELECT COUNT(*) FROM shelves WHERE is_deleted = 0 AND image_path IS NOT NULL)`

	var st Stats
	err := s.db.QueryRowContext(ctx, q).Scan(&st.Modules, &st.Parts, &st.Units,
		&st.Shelves, &st.ActiveShelves, &st.ShelvesWithImages)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// Shelf is a stored shelf row.
type Shelf struct {
	ID         int64  `json:"id"`
	UnitID     int64  `json:"shelving_unit_id"`
	Number     int    `json:"number"`
	RangeStart string `json:"range_start"`
	RangeEnd   string `json:"range_end"`
	KeyStart   string `json:"key_start"`
	KeyEnd     string `json:"key_end"`
	Active     bool   `json:"is_active"`
}

// Shelves lists live shelves ordered by key_start.
func (s *Store) Shelves(ctx context.Context) ([]Shelf, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, shelving_unit_id, number, range_start, range_end,
		key_start, key_end, is_active
		FROM shelves WHERE is_deleted = 0 ORDER BY key_start, id`)
	if err != nil {
		return nil, fmt.Errorf("list shelves: %w", err)
	}
	defer rows.Close()

	var shelves []Shelf
	for rows.Next() {
		var sh Shelf
		if err := rows.Scan(&sh.ID, &sh.UnitID, &sh.Number, &sh.RangeStart, &sh.RangeEnd,
			&sh.KeyStart, &sh.KeyEnd, &sh.Active); err != nil {
			return nil, fmt.Errorf("scan shelf: %w", err)
		}
		shelves = append(shelves, sh)
	}
	return shelves, rows.Err()
}
