package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/config"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/diagnostics"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/enrich"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/logger"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/report"
)

// RunSummary is appended to the run log after every analyze run.
type RunSummary struct {
	Timestamp    string   `json:"timestamp"`
	RunID        string   `json:"run_id"`
	Inputs       []string `json:"inputs"`
	Output       string   `json:"output,omitempty"`
	RejectFile   string   `json:"reject_file,omitempty"`
	Lines        int64    `json:"lines"`
	Parsed       int64    `json:"parsed"`
	Skipped      int64    `json:"skipped"`
	LoginRecords int64    `json:"login_records"`
	Successes    int64    `json:"successful_logins"`
	Failures     int64    `json:"failed_logins"`
	Mounts       int      `json:"mounts"`
	Entities     int      `json:"entities"`
	FlaggedRows  int      `json:"flagged_rows"`
	Truncated    bool     `json:"truncated"`
	DurationMS   int64    `json:"duration_ms"`
}

func appendRunLog(path string, summary RunSummary) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	return enc.Encode(summary)
}

// openRejectFile opens the reject file if configured, returns nil if not configured
func openRejectFile(cfg *config.Config) (io.WriteCloser, error) {
	if cfg == nil || cfg.Output.RejectFile == "" {
		return nil, nil
	}
	return os.OpenFile(cfg.Output.RejectFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// RunAnalyze is the analyze command's core: load lookups, aggregate inputs,
// run diagnostics and write the report. It is factored out from the Cobra
// command so it can be unit tested. A cancelled ctx yields a report over the
// input read so far, marked truncated.
func RunAnalyze(ctx context.Context, inputs []string, out io.Writer, cfg *config.Config) (*diagnostics.Result, error) {
	log := logger.L()
	log.Infow("starting analyze run",
		"inputs", inputs,
		"format", cfg.Output.Format,
		"output_dir", cfg.Output.Dir,
		"workers", cfg.Input.Workers)

	lookups, err := enrich.LoadLookups(cfg.Lookups)
	if err != nil {
		return nil, err
	}
	if m, e := lookups.Len(); m+e > 0 {
		log.Infow("loaded lookup tables", "mounts", m, "entities", e)
	}

	engine, err := diagnostics.New(diagnostics.FromConfig(cfg.Thresholds), diagnostics.WithEntityNamer(lookups))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	opts := OptionsFromConfig(cfg, enrich.NewBuilderFromConfig(cfg, lookups))
	rejectFile, err := openRejectFile(cfg)
	if err != nil {
		log.Errorw("failed to open reject file",
			"path", cfg.Output.RejectFile,
			"err", err.Error())
		return nil, fmt.Errorf("open reject file: %w", err)
	}
	if rejectFile != nil {
		defer rejectFile.Close()
		opts.Rejects = rejectFile
	}

	res, err := Analyze(ctx, inputs, opts)
	if err != nil {
		return nil, err
	}
	diag := engine.Run(res.Aggregator)

	doc := &report.Document{
		RunID:       res.RunID,
		GeneratedAt: res.Finished,
		Inputs:      res.Inputs(),
		Truncated:   res.Truncated,
		Counters:    res.Counters,
		Cardinality: res.Aggregator.Cardinality(),
		Result:      diag,
	}
	files, err := report.Write(out, doc, report.Options{
		Format:      cfg.Output.Format,
		Dir:         cfg.Output.Dir,
		FlaggedOnly: cfg.Output.FlaggedOnly,
	})
	if err != nil {
		return diag, fmt.Errorf("write report: %w", err)
	}
	for _, f := range files {
		log.Infow("wrote report", "path", f)
	}

	duration := res.Finished.Sub(res.Started)
	if cfg.Logging.RunLog != "" {
		summary := RunSummary{
			Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
			RunID:        res.RunID,
			Inputs:       doc.Inputs,
			Output:       cfg.Output.Dir,
			RejectFile:   cfg.Output.RejectFile,
			Lines:        res.Counters.Lines,
			Parsed:       res.Counters.Parsed,
			Skipped:      res.Counters.Skipped,
			LoginRecords: res.Counters.LoginRecords,
			Successes:    res.Counters.Successes,
			Failures:     res.Counters.Failures,
			Mounts:       diag.Totals.Mounts,
			Entities:     diag.Totals.Entities,
			FlaggedRows:  len(diag.Flagged()),
			Truncated:    res.Truncated,
			DurationMS:   duration.Milliseconds(),
		}
		if err := appendRunLog(cfg.Logging.RunLog, summary); err != nil {
			log.Errorw("failed to write run log",
				"path", cfg.Logging.RunLog,
				"err", err.Error())
		} else {
			log.Debugw("wrote run summary", "path", cfg.Logging.RunLog)
		}
	}

	log.Infow("completed analyze run",
		"run_id", res.RunID,
		"duration", duration,
		"lines_processed", res.Counters.Lines,
		"login_records", res.Counters.LoginRecords,
		"skipped", res.Counters.Skipped,
		"flagged_rows", len(diag.Flagged()),
		"truncated", res.Truncated)
	return diag, nil
}
