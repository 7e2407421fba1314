// Package report renders analysis results as text, CSV or JSON, to a writer
// or to files in an output directory.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/aggregate"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/diagnostics"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/logger"
)

const (
	FormatText = "text"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Document is everything a report shows about one run.
type Document struct {
	RunID       string                `json:"run_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Inputs      []string              `json:"inputs"`
	Truncated   bool                  `json:"truncated"`
	Counters    aggregate.Counters    `json:"counters"`
	Cardinality aggregate.Cardinality `json:"cardinality"`
	Result      *diagnostics.Result   `json:"result"`
}

// Options select the format and destination.
type Options struct {
	Format string
	// Dir, when set, receives report files instead of the writer.
	Dir string
	// FlaggedOnly limits the diagnostics table to flagged rows.
	FlaggedOnly bool
}

// Write renders doc. With opts.Dir set, files are written atomically into
// that directory and their paths returned; otherwise the report goes to w.
func Write(w io.Writer, doc *Document, opts Options) ([]string, error) {
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = FormatText
	}
	if doc.Result == nil {
		doc.Result = &diagnostics.Result{}
	}

	if opts.Dir == "" {
		switch format {
		case FormatText:
			return nil, writeText(w, doc, opts.FlaggedOnly)
		case FormatJSON:
			return nil, writeJSON(w, doc)
		case FormatCSV:
			return nil, writeDiagnosticsCSV(w, doc.Result, opts.FlaggedOnly)
		default:
			return nil, fmt.Errorf("unknown report format %q", opts.Format)
		}
	}

	var files []string
	emit := func(name string, render func(io.Writer) error) error {
		path := filepath.Join(opts.Dir, name)
		if err := writeFileAtomic(path, render); err != nil {
			return err
		}
		logger.L().Debugw("wrote report file", "path", path)
		files = append(files, path)
		return nil
	}

	var err error
	switch format {
	case FormatText:
		err = emit("report.txt", func(w io.Writer) error { return writeText(w, doc, opts.FlaggedOnly) })
	case FormatJSON:
		err = emit("report.json", func(w io.Writer) error { return writeJSON(w, doc) })
	case FormatCSV:
		for _, t := range csvTables(doc.Result, opts.FlaggedOnly) {
			t := t
			if err = emit(t.name+".csv", t.write); err != nil {
				break
			}
		}
	default:
		err = fmt.Errorf("unknown report format %q", opts.Format)
	}
	return files, err
}
