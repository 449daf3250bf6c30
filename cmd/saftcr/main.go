// Command saftcr is the interactive validator CLI: a read-eval loop that
// prompts for an audit-file path, runs the five-pass analysis, writes a
// report, and optionally deletes the source file (spec.md §6).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/beevik/etree"

	"github.com/nemhandel/saftcr"
	"github.com/nemhandel/saftcr/config"
	"github.com/nemhandel/saftcr/locale"
	"github.com/nemhandel/saftcr/logging"
	"github.com/nemhandel/saftcr/report"
)

const (
	exitOK    = 0
	exitError = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	xsdPath := flag.String("xsd", "", "path to the SAF-T Cash Register XSD")
	trustDir := flag.String("trust-dir", "", "directory of trusted issuer certificates (*.cer)")
	configPath := flag.String("config", config.DefaultPath(), "path to saftcr.ini")
	outputDir := flag.String("output", ".", "directory under which Checked/Tjekket is created")
	flag.Parse()

	if *xsdPath == "" {
		fmt.Fprintln(os.Stderr, "saftcr: -xsd is required")
		return exitError
	}

	logger, err := logging.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, "saftcr: cannot start logger:", err)
		return exitError
	}
	defer logger.Sync()

	cfg, err := config.LoadOrCreate(*configPath, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "saftcr:", err)
		return exitError
	}
	lang := locale.Language(cfg.Language)
	table := locale.NewStatic()

	xsdDoc := etree.NewDocument()
	if err := xsdDoc.ReadFromFile(*xsdPath); err != nil {
		fmt.Fprintln(os.Stderr, "saftcr: cannot read XSD:", err)
		return exitError
	}

	var trust *saftcr.TrustStore
	if *trustDir != "" {
		trust, err = saftcr.LoadTrustStore(*trustDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "saftcr: cannot load trust store:", err)
			return exitError
		}
	}

	ac, err := saftcr.NewAnalysisContext(xsdDoc, trust, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "saftcr: cannot build analysis context:", err)
		return exitError
	}

	return replLoop(ac, lang, table, *outputDir, os.Stdin, os.Stdout)
}

func replLoop(ac *saftcr.AnalysisContext, lang locale.Language, table locale.Table, outputDir string, in *os.File, out *os.File) int {
	scanner := bufio.NewScanner(in)
	ctx := context.Background()

	for {
		fmt.Fprint(out, "Path to XML file (blank to quit): ")
		if !scanner.Scan() {
			return exitOK
		}
		path := strings.TrimSpace(scanner.Text())
		if path == "" {
			return exitOK
		}

		rpt, err := ac.Analyze(ctx, path)
		if err != nil {
			fmt.Fprintln(out, "could not analyze file:", err)
			continue
		}

		fi, statErr := os.Stat(path)
		var ts report.FileTimestamps
		if statErr == nil {
			ts.Modified = fi.ModTime()
		}

		var extractor *saftcr.Extractor
		if doc, lmErr := reparseForReport(path); lmErr == nil {
			extractor = doc
		}
		var meta saftcr.Metadata
		if extractor != nil {
			meta = extractor.Metadata()
		}

		writtenPath, err := report.Write(path, *rpt, meta, ts, lang, table, outputDir)
		if err != nil {
			fmt.Fprintln(out, "could not write report:", err)
			continue
		}

		fmt.Fprintf(out, "%s%s\n", rpt.Prefix, writtenPath)

		yes, no := table.YesNo(lang)
		for {
			fmt.Fprintf(out, "Delete source file? (%s/%s): ", yes, no)
			if !scanner.Scan() {
				return exitOK
			}
			answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
			if answer == yes {
				os.Remove(path)
				break
			}
			if answer == no {
				break
			}
		}
	}
}

// reparseForReport re-reads the (already-analyzed) file purely to extract
// report metadata; Analyze's own parsed tree is not retained past the call
// since it may have been structurally repaired in place.
func reparseForReport(path string) (*saftcr.Extractor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, err
	}
	lm, err := saftcr.BuildLineMap(raw, doc)
	if err != nil {
		return nil, err
	}
	return saftcr.NewExtractor(doc, lm), nil
}
