package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/hazyhaar/shelfmark/pkg/callnum"
)

// cmdParse parses codes given as arguments, or one per stdin line when
// there are none. Exit status is 1 if any code failed.
func cmdParse(args []string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	asJSON := fs.Bool("json", false, "print one JSON object per code")
	fs.Parse(args)

	_, _, parser := setup(*cfgPath)

	codes := fs.Args()
	if len(codes) == 0 {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				codes = append(codes, line)
			}
		}
		if err := sc.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "read stdin: %v\n", err)
			os.Exit(1)
		}
	}

	failed := false
	enc := json.NewEncoder(os.Stdout)
	for _, raw := range codes {
		code, err := parser.Parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", raw, err)
			failed = true
			continue
		}
		if *asJSON {
			enc.Encode(code)
			continue
		}
		printCode(code)
	}
	if failed {
		os.Exit(1)
	}
}

func printCode(c callnum.ParsedCode) {
	cutter := c.Cutter()
	if cutter == "" {
		cutter = "-"
	}
	fmt.Printf("%-20s  %s  %-14s  class=%s.%s  country=%s  cutter=%s%s  suffix=%s%s\n",
		c.Raw, c.ComparableKey, c.Type, c.ClassNumber, c.ClassDecimal, c.Country,
		cutter, c.CutterTitle, c.CutterSuffixLetter, c.CutterSuffixNumber)
}
