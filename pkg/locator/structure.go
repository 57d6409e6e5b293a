// CLAUDE:SUMMARY Physical library tree (module > face > shelving unit > shelf) loaded from a YAML structure file.
package locator

import (
	"fmt"
	"os"

	"github.com/hazyhaar/shelfmark/pkg/callnum"
	"gopkg.in/yaml.v3"
)

// Side of a module.
type Side string

const (
	Front Side = "front"
	Back  Side = "back"
)

// Range is an inclusive pair of parsed bounds.
type Range struct {
	Start callnum.ParsedCode `json:"start"`
	End   callnum.ParsedCode `json:"end"`
}

// Contains reports start <= code <= end under callnum.Compare.
func (r Range) Contains(code callnum.ParsedCode) bool {
	return callnum.InRange(code, r.Start, r.End)
}

// Library is the whole physical collection. It is built once and only read
// afterwards.
type Library struct {
	Modules []Module `json:"modules"`
}

// Module is one free-standing piece of furniture.
type Module struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Range Range  `json:"range"`
	Faces []Face `json:"faces"`
}

// Face is the front or back of a module.
type Face struct {
	Side  Side   `json:"side"`
	Range Range  `json:"range"`
	Units []Unit `json:"units"`
}

// Unit is a vertical shelving unit within a face.
type Unit struct {
	ID      string  `json:"id"`
	Range   Range   `json:"range"`
	Shelves []Shelf `json:"shelves"`
}

// Shelf is numbered from 1 at the top. Image is an optional photo path.
type Shelf struct {
	Number int    `json:"number"`
	Range  Range  `json:"range"`
	Image  string `json:"image,omitempty"`
}

// structure file schema

type rangeSpec struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type moduleSpec struct {
	ID    int        `yaml:"id"`
	Name  string     `yaml:"name"`
	Range rangeSpec  `yaml:"range"`
	Faces []faceSpec `yaml:"faces"`
}

type faceSpec struct {
	Side  Side       `yaml:"side"`
	Range rangeSpec  `yaml:"range"`
	Units []unitSpec `yaml:"units"`
}

type unitSpec struct {
	ID      string      `yaml:"id"`
	Range   rangeSpec   `yaml:"range"`
	Shelves []shelfSpec `yaml:"shelves"`
}

type shelfSpec struct {
	Number int       `yaml:"number"`
	Range  rangeSpec `yaml:"range"`
	Image  string    `yaml:"image"`
}

type structureSpec struct {
	Modules []moduleSpec `yaml:"modules"`
}

// LoadLibrary reads a YAML structure file.
func LoadLibrary(path string, p *callnum.Parser) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read structure %s: %w", path, err)
	}
	lib, err := ParseLibrary(data, p)
	if err != nil {
		return nil, fmt.Errorf("structure %s: %w", path, err)
	}
	return lib, nil
}

// ParseLibrary decodes a YAML structure and parses every range bound.
// A nil parser means the default country whitelist.
func ParseLibrary(data []byte, p *callnum.Parser) (*Library, error) {
	if p == nil {
		p = callnum.NewParser()
	}
	var spec structureSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse structure: %w", err)
	}

	lib := &Library{Modules: make([]Module, 0, len(spec.Modules))}
	for _, ms := range spec.Modules {
		m := Module{ID: ms.ID, Name: ms.Name}
		var err error
		if m.Range, err = buildRange(p, ms.Range, "module %d", ms.ID); err != nil {
			return nil, err
		}
		for _, fs := range ms.Faces {
			f := Face{Side: fs.Side}
			if f.Side != Front && f.Side != Back {
				return nil, fmt.Errorf("module %d: unknown face side %q", ms.ID, fs.Side)
			}
			if f.Range, err = buildRange(p, fs.Range, "module %d face %s", ms.ID, fs.Side); err != nil {
				return nil, err
			}
			for _, us := range fs.Units {
				u := Unit{ID: us.ID}
				if u.Range, err = buildRange(p, us.Range, "module %d unit %s", ms.ID, us.ID); err != nil {
					return nil, err
				}
				for _, ss := range us.Shelves {
					s := Shelf{Number: ss.Number, Image: ss.Image}
					if s.Range, err = buildRange(p, ss.Range, "module %d unit %s shelf %d", ms.ID, us.ID, ss.Number); err != nil {
						return nil, err
					}
					u.Shelves = append(u.Shelves, s)
				}
				f.Units = append(f.Units, u)
			}
			m.Faces = append(m.Faces, f)
		}
		lib.Modules = append(lib.Modules, m)
	}
	return lib, nil
}

func buildRange(p *callnum.Parser, rs rangeSpec, where string, args ...any) (Range, error) {
	start, end, err := p.ValidateRange(rs.Start, rs.End)
	if err != nil {
		return Range{}, fmt.Errorf("%s: %w", fmt.Sprintf(where, args...), err)
	}
	return Range{Start: start, End: end}, nil
}
