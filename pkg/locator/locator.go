package locator

import (
	"fmt"
	"math"
	"sort"

	"github.com/hazyhaar/shelfmark/pkg/callnum"
)

// Level is how deep a search descends into the tree.
type Level string

const (
	LevelModule Level = "module"
	LevelFace   Level = "face"
	LevelUnit   Level = "unit"
	LevelShelf  Level = "shelf"
)

// ParseLevel maps a user string to a Level; "" means LevelShelf.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case "":
		return LevelShelf, nil
	case LevelModule, LevelFace, LevelUnit, LevelShelf:
		return Level(s), nil
	default:
		return "", fmt.Errorf("unknown level %q", s)
	}
}

// Confidence grades a Location.
type Confidence string

const (
	// High: the code is inside the range at the requested level.
	High Confidence = "high"
	// Medium: the shelving unit matches but no shelf range holds the code.
	Medium Confidence = "medium"
	// Low: the code falls just outside a shelf range (possible overflow).
	Low Confidence = "low"
)

func (c Confidence) rank() int {
	switch c {
	case High:
		return 0
	case Medium:
		return 1
	default:
		return 2
	}
}

// Location is where a code is, or may be, shelved. Zero Face/Unit/Shelf
// mean the search stopped above that level.
type Location struct {
	Module     int        `json:"module"`
	ModuleName string     `json:"module_name"`
	Face       Side       `json:"face,omitempty"`
	Unit       string     `json:"unit,omitempty"`
	Shelf      int        `json:"shelf,omitempty"`
	Range      Range      `json:"range"`
	Confidence Confidence `json:"confidence"`
}

// DefaultOverflowTolerance is the classification-number distance within
// which a shelf is reported as a low-confidence overflow candidate.
const DefaultOverflowTolerance = 1.0

// Locator walks a Library. It holds no mutable state.
type Locator struct {
	lib       *Library
	parser    *callnum.Parser
	tolerance float64
}

// Option configures a Locator.
type Option func(*Locator)

// WithParser sets the parser used for search codes.
func WithParser(p *callnum.Parser) Option {
	return func(l *Locator) { l.parser = p }
}

// WithOverflowTolerance overrides DefaultOverflowTolerance. Values <= 0
// disable overflow detection.
func WithOverflowTolerance(t float64) Option {
	return func(l *Locator) { l.tolerance = t }
}

// New returns a Locator over lib.
func New(lib *Library, opts ...Option) *Locator {
	l := &Locator{lib: lib, tolerance: DefaultOverflowTolerance}
	for _, opt := range opts {
		opt(l)
	}
	if l.parser == nil {
		l.parser = callnum.NewParser()
	}
	return l
}

// Library returns the tree being searched.
func (l *Locator) Library() *Library { return l.lib }

// Find returns the first location holding code at the given level.
// ok is false when nothing matches; err is set only when code does not parse.
func (l *Locator) Find(code string, level Level) (loc Location, ok bool, err error) {
	parsed, err := l.parser.Parse(code)
	if err != nil {
		return Location{}, false, err
	}
	loc, ok = l.FindParsed(parsed, level)
	return loc, ok, nil
}

// FindParsed is Find for an already parsed code.
func (l *Locator) FindParsed(code callnum.ParsedCode, level Level) (Location, bool) {
	if level == "" {
		level = LevelShelf
	}
	for _, m := range l.lib.Modules {
		if !m.Range.Contains(code) {
			continue
		}
		if level == LevelModule {
			return moduleLocation(m, High), true
		}
		for _, f := range m.Faces {
			if !f.Range.Contains(code) {
				continue
			}
			if level == LevelFace {
				return faceLocation(m, f, High), true
			}
			for _, u := range f.Units {
				if !u.Range.Contains(code) {
					continue
				}
				if level == LevelUnit {
					return unitLocation(m, f, u, High), true
				}
				for _, s := range u.Shelves {
					if s.Range.Contains(code) {
						return shelfLocation(m, f, u, s, High), true
					}
				}
			}
		}
	}
	return Location{}, false
}

// FindOptions tune FindAll.
type FindOptions struct {
	Level            Level
	IncludeOverflows bool
}

// FindAll returns every candidate location ordered high, medium, low.
//
// At LevelShelf, a shelf containing the code is high; a shelf whose range
// ends (or starts) within the overflow tolerance of the code's
// classification number is low when IncludeOverflows is set; a matching unit
// with no matching shelf is reported as medium if nothing was found before
// it. At LevelUnit every matching unit is medium. Coarser levels report
// every matching module or face as high.
func (l *Locator) FindAll(code string, opts FindOptions) ([]Location, error) {
	parsed, err := l.parser.Parse(code)
	if err != nil {
		return nil, err
	}
	level := opts.Level
	if level == "" {
		level = LevelShelf
	}

	var locs []Location
	for _, m := range l.lib.Modules {
		if !m.Range.Contains(parsed) {
			continue
		}
		if level == LevelModule {
			locs = append(locs, moduleLocation(m, High))
			continue
		}
		for _, f := range m.Faces {
			if !f.Range.Contains(parsed) {
				continue
			}
			if level == LevelFace {
				locs = append(locs, faceLocation(m, f, High))
				continue
			}
			for _, u := range f.Units {
				if !u.Range.Contains(parsed) {
					continue
				}
				if level == LevelUnit {
					locs = append(locs, unitLocation(m, f, u, Medium))
					continue
				}
				exact := false
				for _, s := range u.Shelves {
					switch {
					case s.Range.Contains(parsed):
						locs = append(locs, shelfLocation(m, f, u, s, High))
						exact = true
					case opts.IncludeOverflows && l.nearRange(parsed, s.Range):
						locs = append(locs, shelfLocation(m, f, u, s, Low))
					}
				}
				if !exact && len(locs) == 0 {
					locs = append(locs, unitLocation(m, f, u, Medium))
				}
			}
		}
	}

	sort.SliceStable(locs, func(i, j int) bool {
		return locs[i].Confidence.rank() < locs[j].Confidence.rank()
	})
	return locs, nil
}

// nearRange reports whether code lies outside r but within the tolerance
// of its nearest bound, measured on classification numbers.
func (l *Locator) nearRange(code callnum.ParsedCode, r Range) bool {
	if l.tolerance <= 0 {
		return false
	}
	v := callnum.ClassValue(code)
	if callnum.Compare(code, r.Start) < 0 {
		return math.Abs(callnum.ClassValue(r.Start)-v) < l.tolerance
	}
	if callnum.Compare(code, r.End) > 0 {
		return math.Abs(v-callnum.ClassValue(r.End)) < l.tolerance
	}
	return false
}

func moduleLocation(m Module, c Confidence) Location {
	return Location{Module: m.ID, ModuleName: m.Name, Range: m.Range, Confidence: c}
}

func faceLocation(m Module, f Face, c Confidence) Location {
	loc := moduleLocation(m, c)
	loc.Face, loc.Range = f.Side, f.Range
	return loc
}

func unitLocation(m Module, f Face, u Unit, c Confidence) Location {
	loc := faceLocation(m, f, c)
	loc.Unit, loc.Range = u.ID, u.Range
	return loc
}

func shelfLocation(m Module, f Face, u Unit, s Shelf, c Confidence) Location {
	loc := unitLocation(m, f, u, c)
	loc.Shelf, loc.Range = s.Number, s.Range
	return loc
}
