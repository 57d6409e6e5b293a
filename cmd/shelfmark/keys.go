package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hazyhaar/shelfmark/pkg/batch"
)

func cmdKeys(args []string) {
	fs := flag.NewFlagSet("keys", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	in := fs.String("in", "-", "input CSV file (- for stdin)")
	out := fs.String("out", "-", "output CSV file (- for stdout)")
	delimiter := fs.String("delimiter", ",", "input field delimiter")
	encoding := fs.String("encoding", "", "input encoding, e.g. windows-1252 (default UTF-8)")
	header := fs.Bool("header", false, "input has a header row")
	column := fs.String("column", "", "header name of the call number column (default first column)")
	sorted := fs.Bool("sorted", false, "write rows in shelf order")
	fs.Parse(args)

	_, logger, parser := setup(*cfgPath)

	var r io.Reader = os.Stdin
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			logger.Error("open input", "path", *in, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}
	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			logger.Error("create output", "path", *out, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	report, err := batch.Encode(r, w, parser, batch.Options{
		Delimiter: *delimiter,
		Encoding:  *encoding,
		HasHeader: *header,
		Column:    *column,
		Sorted:    *sorted,
	})
	if err != nil {
		logger.Error("encode", "error", err)
		os.Exit(1)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(os.Stderr, "line %d: %s: %s\n", f.Line, f.Code, f.Error)
	}
	logger.Info("keys encoded", "rows", report.Rows, "encoded", report.Encoded, "failed", len(report.Failures))
}
