package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/shelfmark/pkg/callnum"
	"github.com/hazyhaar/shelfmark/pkg/locator"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "shelfmark.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := tempStore(t)
	lib, err := locator.LoadLibrary("../locator/testdata/library.yaml", s.Parser())
	if err != nil {
		t.Fatalf("LoadLibrary: %v", err)
	}
	if err := s.Seed(context.Background(), lib); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return s
}

func key(t *testing.T, code string) string {
	t.Helper()
	c, err := callnum.Parse(code)
	if err != nil {
		t.Fatalf("Parse(%q): %v", code, err)
	}
	return c.ComparableKey
}

func shelfID(t *testing.T, s *Store, rangeStart string) int64 {
	t.Helper()
	shelves, err := s.Shelves(context.Background())
	if err != nil {
		t.Fatalf("Shelves: %v", err)
	}
	for _, sh := range shelves {
		if sh.RangeStart == rangeStart {
			return sh.ID
		}
	}
	t.Fatalf("no shelf starting at %q", rangeStart)
	return 0
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}
	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats on empty db: %v", err)
	}
	if st != (Stats{}) {
		t.Errorf("empty stats = %+v", st)
	}
}

func TestSeed_Stats(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	want := Stats{Modules: 2, Parts: 3, Units: 6, Shelves: 12, ActiveShelves: 12, ShelvesWithImages: 1}
	got, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}

	// Seeding again replaces rather than duplicates.
	lib, _ := locator.LoadLibrary("../locator/testdata/library.yaml", nil)
	if err := s.Seed(ctx, lib); err != nil {
		t.Fatalf("re-Seed: %v", err)
	}
	if got, _ := s.Stats(ctx); got != want {
		t.Errorf("Stats after re-seed = %+v, want %+v", got, want)
	}
}

func TestSeed_Keys(t *testing.T) {
	s := seededStore(t)
	shelves, err := s.Shelves(context.Background())
	if err != nil {
		t.Fatalf("Shelves: %v", err)
	}
	for _, sh := range shelves {
		if len(sh.KeyStart) != callnum.KeyLen || len(sh.KeyEnd) != callnum.KeyLen {
			t.Errorf("shelf %d keys %q/%q not %d chars", sh.ID, sh.KeyStart, sh.KeyEnd, callnum.KeyLen)
		}
		if sh.KeyStart > sh.KeyEnd {
			t.Errorf("shelf %d key_start %q > key_end %q", sh.ID, sh.KeyStart, sh.KeyEnd)
		}
	}
}

func TestLocateKey(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	tests := []struct {
		code   string
		module int
		side   string
		unit   string
		shelf  int
	}{
		{"511.33 C823M", 1, "front", "A", 1},
		{"511.33 R456S", 1, "front", "A", 2},
		{"530 T595FI", 1, "front", "C", 1},
		{"551.5 A789C", 1, "back", "D", 1},
		{"AR861 B3", 2, "front", "E", 1},
	}
	for _, tt := range tests {
		loc, err := s.LocateKey(ctx, key(t, tt.code))
		if err != nil {
			t.Errorf("LocateKey(%q): %v", tt.code, err)
			continue
		}
		if loc.ModuleNumber != tt.module || loc.Side != tt.side || loc.UnitName != tt.unit || loc.ShelfNumber != tt.shelf {
			t.Errorf("LocateKey(%q) = %s, want module %d %s unit %s shelf %d",
				tt.code, loc.Text, tt.module, tt.side, tt.unit, tt.shelf)
		}
	}

	loc, _ := s.LocateKey(ctx, key(t, "511.33 C823M"))
	if loc.ImagePath != "module1/front/a1.jpg" {
		t.Errorf("ImagePath = %q", loc.ImagePath)
	}
	if loc.Text != "Module 1 - front - Unit A - Shelf 1" {
		t.Errorf("Text = %q", loc.Text)
	}
	if loc.RangeStart != "511.33 A000A" || loc.ModuleName != "Sciences" {
		t.Errorf("loc = %+v", loc)
	}
}

func TestLocateKey_MatchesKeyInRange(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	shelves, err := s.Shelves(ctx)
	if err != nil {
		t.Fatalf("Shelves: %v", err)
	}

	for _, code := range []string{"511.33 C823M", "511.33 R456S", "530 T595FI", "551.5 A789C", "AR861 B3", "100 A1"} {
		k := key(t, code)
		var want int64
		for _, sh := range shelves {
			if sh.Active && callnum.KeyInRange(k, sh.KeyStart, sh.KeyEnd) {
				want = sh.ID
				break
			}
		}
		loc, err := s.LocateKey(ctx, k)
		switch {
		case want == 0 && !errors.Is(err, ErrNotFound):
			t.Errorf("LocateKey(%q) = %v, %v; no shelf key range holds it", code, loc.ShelfID, err)
		case want != 0 && (err != nil || loc.ShelfID != want):
			t.Errorf("LocateKey(%q) = %d, %v; want shelf %d", code, loc.ShelfID, err, want)
		}
	}
}

func TestLocateKey_NotFound(t *testing.T) {
	s := seededStore(t)
	for _, code := range []string{"100 A1", "510.5 A1B", "999"} {
		if _, err := s.LocateKey(context.Background(), key(t, code)); !errors.Is(err, ErrNotFound) {
			t.Errorf("LocateKey(%q) err = %v, want ErrNotFound", code, err)
		}
	}
}

func TestUpdateRange(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	id := shelfID(t, s, "511.33 A000A")

	ch, err := s.UpdateRange(ctx, EntityShelf, id, "511.33 A000A", "511.33 B999Z")
	if err != nil {
		t.Fatalf("UpdateRange: %v", err)
	}
	if ch.Action != "update_range" || ch.EntityID != id || ch.Entity != EntityShelf {
		t.Errorf("change = %+v", ch)
	}

	if _, err := s.LocateKey(ctx, key(t, "511.33 C823M")); !errors.Is(err, ErrNotFound) {
		t.Errorf("C823M after shrinking shelf 1: err = %v, want ErrNotFound", err)
	}
	if _, err := s.LocateKey(ctx, key(t, "511.33 B2")); err != nil {
		t.Errorf("B2 after shrinking shelf 1: %v", err)
	}

	changes, err := s.Changes(ctx, 10)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(changes))
	}
	if got := string(changes[0].Before); got == "" || got == string(changes[0].After) {
		t.Errorf("before = %s, after = %s", changes[0].Before, changes[0].After)
	}
}

func TestUpdateRange_Errors(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	id := shelfID(t, s, "511.33 A000A")

	if _, err := s.UpdateRange(ctx, EntityShelf, id, "511.33 M999Z", "511.33 A000A"); !errors.Is(err, callnum.ErrInvalidRangeOrder) {
		t.Errorf("reversed: err = %v, want ErrInvalidRangeOrder", err)
	}
	if _, err := s.UpdateRange(ctx, EntityShelf, id, "ES511 A1", "511.33 A000A"); !errors.Is(err, callnum.ErrInvalidCountry) {
		t.Errorf("bad country: err = %v, want ErrInvalidCountry", err)
	}
	if _, err := s.UpdateRange(ctx, EntityModule, 999, "500 A1", "599 Z9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id: err = %v, want ErrNotFound", err)
	}
	if _, err := s.UpdateRange(ctx, Entity("room"), 1, "500 A1", "599 Z9"); err == nil {
		t.Error("unknown entity should fail")
	}

	// Failed updates leave no trace.
	changes, _ := s.Changes(ctx, 0)
	if len(changes) != 0 {
		t.Errorf("changes after failed updates = %d, want 0", len(changes))
	}
	if _, err := s.LocateKey(ctx, key(t, "511.33 C823M")); err != nil {
		t.Errorf("shelf 1 should be unchanged: %v", err)
	}
}

func TestSetActive(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	id := shelfID(t, s, "511.33 A000A")

	if err := s.SetActive(ctx, EntityShelf, id, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := s.LocateKey(ctx, key(t, "511.33 C823M")); !errors.Is(err, ErrNotFound) {
		t.Errorf("inactive shelf still found: %v", err)
	}
	st, _ := s.Stats(ctx)
	if st.ActiveShelves != 11 {
		t.Errorf("ActiveShelves = %d, want 11", st.ActiveShelves)
	}

	if err := s.SetActive(ctx, EntityShelf, id, true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := s.LocateKey(ctx, key(t, "511.33 C823M")); err != nil {
		t.Errorf("reactivated shelf: %v", err)
	}

	changes, _ := s.Changes(ctx, 10)
	if len(changes) != 2 || changes[0].Action != "toggle_active" {
		t.Errorf("changes = %+v", changes)
	}
	if err := s.SetActive(ctx, EntityUnit, 999, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing unit: err = %v, want ErrNotFound", err)
	}
}

func TestSetActive_HidesDescendants(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	var moduleID int64
	if err := s.db.QueryRow(`SELECT id FROM modules WHERE number = 1`).Scan(&moduleID); err != nil {
		t.Fatalf("module id: %v", err)
	}
	if err := s.SetActive(ctx, EntityModule, moduleID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := s.LocateKey(ctx, key(t, "530 T595FI")); !errors.Is(err, ErrNotFound) {
		t.Errorf("shelf under inactive module found: %v", err)
	}
}

func TestRefreshKeys(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stale := shelfID(t, s, "511.33 A000A")
	broken := shelfID(t, s, "511.33 N000A")
	if _, err := s.db.Exec(`UPDATE shelves SET key_start = '' WHERE id = ?`, stale); err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.Exec(`UPDATE shelves SET range_start = 'ES511 A1' WHERE id = ?`, broken); err != nil {
		t.Fatal(err)
	}

	report, err := s.RefreshKeys(ctx, logger)
	if err != nil {
		t.Fatalf("RefreshKeys: %v", err)
	}
	want := RefreshReport{Total: 23, Updated: 1, Unchanged: 21, Failed: 1}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}
	if _, err := s.LocateKey(ctx, key(t, "511.33 C823M")); err != nil {
		t.Errorf("refreshed shelf not found: %v", err)
	}

	// A second pass has nothing left to update.
	report, _ = s.RefreshKeys(ctx, logger)
	if report.Updated != 0 || report.Failed != 1 {
		t.Errorf("second report = %+v", report)
	}
}

func TestParseEntity(t *testing.T) {
	tests := []struct {
		in   string
		want Entity
	}{
		{"module", EntityModule},
		{"Modules", EntityModule},
		{"parts", EntityPart},
		{"shelving_units", EntityUnit},
		{"units", EntityUnit},
		{"shelves", EntityShelf},
	}
	for _, tt := range tests {
		got, err := ParseEntity(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseEntity(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseEntity("room"); err == nil {
		t.Error("ParseEntity(room) should fail")
	}
}
