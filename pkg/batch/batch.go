// CLAUDE:SUMMARY CSV batch encoder: reads call numbers in any declared encoding and writes code/key/type rows, skipping bad rows.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hazyhaar/shelfmark/pkg/callnum"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Options describe the input CSV.
type Options struct {
	Delimiter string // single character, default ","
	Encoding  string // WHATWG label, e.g. "windows-1252"; empty means UTF-8
	HasHeader bool
	Column    string // header name of the code column; first column when empty
	Sorted    bool   // emit rows in shelf order instead of input order
}

// Failure is one input row that did not parse.
type Failure struct {
	Line  int    `json:"line"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Report summarizes an Encode run.
type Report struct {
	Rows     int       `json:"rows"`
	Encoded  int       `json:"encoded"`
	Failures []Failure `json:"failures,omitempty"`
}

// Encode reads call numbers from r and writes "code,comparable_key,type"
// rows to w. Rows that fail to parse are recorded in the report and skipped;
// only I/O and header errors abort the run.
func Encode(r io.Reader, w io.Writer, p *callnum.Parser, opts Options) (Report, error) {
	if p == nil {
		p = callnum.NewParser()
	}

	if enc := opts.Encoding; enc != "" && !isUTF8(enc) {
		e, err := htmlindex.Get(enc)
		if err != nil {
			return Report{}, fmt.Errorf("unsupported encoding %q: %w", enc, err)
		}
		r = transform.NewReader(r, e.NewDecoder())
	}

	cr := csv.NewReader(r)
	if opts.Delimiter != "" {
		cr.Comma = []rune(opts.Delimiter)[0]
	}
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	col := 0
	if opts.HasHeader {
		header, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return Report{}, writeRows(w, nil)
		}
		if err != nil {
			return Report{}, fmt.Errorf("read header: %w", err)
		}
		if opts.Column != "" {
			col = -1
			for i, h := range header {
				if strings.TrimSpace(h) == opts.Column {
					col = i
					break
				}
			}
			if col < 0 {
				return Report{}, fmt.Errorf("column %q not found in header %v", opts.Column, header)
			}
		}
	}

	var (
		report Report
		codes  []callnum.ParsedCode
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return report, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if col >= len(record) || strings.TrimSpace(record[col]) == "" {
			continue
		}
		report.Rows++

		raw := strings.TrimSpace(record[col])
		code, err := p.Parse(raw)
		if err != nil {
			report.Failures = append(report.Failures, Failure{Line: line, Code: raw, Error: err.Error()})
			continue
		}
		codes = append(codes, code)
	}
	report.Encoded = len(codes)

	if opts.Sorted {
		sort.SliceStable(codes, func(i, j int) bool { return callnum.Compare(codes[i], codes[j]) < 0 })
	}
	return report, writeRows(w, codes)
}

func writeRows(w io.Writer, codes []callnum.ParsedCode) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"code", "comparable_key", "type"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range codes {
		if err := cw.Write([]string{c.Raw, c.ComparableKey, c.Type.String()}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func isUTF8(enc string) bool {
	switch strings.ToLower(strings.ReplaceAll(enc, "-", "")) {
	case "utf8", "":
		return true
	}
	return false
}
