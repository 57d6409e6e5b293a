package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/shelfmark/pkg/locator"
)

// Seed replaces the stored structure with lib. Keys come from the already
// parsed ranges, so lib must have been loaded with the same whitelist as
// the store's parser. The change log is kept.
func (s *Store) Seed(ctx context.Context, lib *locator.Library) error {
	now := time.Now().Unix()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"shelves", "shelving_units", "module_parts", "modules"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		for _, m := range lib.Modules {
			moduleID, err := insert(ctx, tx,
				`INSERT INTO modules (number, name, range_start, range_end, key_start, key_end, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				m.ID, m.Name, m.Range.Start.Raw, m.Range.End.Raw,
				m.Range.Start.ComparableKey, m.Range.End.ComparableKey, now)
			if err != nil {
				return fmt.Errorf("seed module %d: %w", m.ID, err)
			}
			for _, f := range m.Faces {
				partID, err := insert(ctx, tx,
					`INSERT INTO module_parts (module_id, side, range_start, range_end, key_start, key_end, updated_at)
					VALUES (?, ?, ?, ?, ?, ?, ?)`,
					moduleID, string(f.Side), f.Range.Start.Raw, f.Range.End.Raw,
					f.Range.Start.ComparableKey, f.Range.End.ComparableKey, now)
				if err != nil {
					return fmt.Errorf("seed module %d %s: %w", m.ID, f.Side, err)
				}
				for _, u := range f.Units {
					unitID, err := insert(ctx, tx,
						`INSERT INTO shelving_units (module_part_id, name, range_start, range_end, key_start, key_end, updated_at)
						VALUES (?, ?, ?, ?, ?, ?, ?)`,
						partID, u.ID, u.Range.Start.Raw, u.Range.End.Raw,
						u.Range.Start.ComparableKey, u.Range.End.ComparableKey, now)
					if err != nil {
						return fmt.Errorf("seed unit %s: %w", u.ID, err)
					}
					for _, sh := range u.Shelves {
						var image *string
						if sh.Image != "" {
							image = &sh.Image
						}
						if _, err := insert(ctx, tx,
							`INSERT INTO shelves (shelving_unit_id, number, range_start, range_end, key_start, key_end, image_path, updated_at)
							VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
							unitID, sh.Number, sh.Range.Start.Raw, sh.Range.End.Raw,
							sh.Range.Start.ComparableKey, sh.Range.End.ComparableKey, image, now); err != nil {
							return fmt.Errorf("seed unit %s shelf %d: %w", u.ID, sh.Number, err)
						}
					}
				}
			}
		}
		return nil
	})
}

func insert(ctx context.Context, tx *sql.Tx, q string, args ...any) (int64, error) {
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
