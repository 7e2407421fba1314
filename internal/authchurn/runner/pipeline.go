package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/aggregate"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/config"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/enrich"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/logger"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/parsers"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/reader"
)

// seqFileShift places the file index above the line number in an event's
// global sequence number.
const seqFileShift = 40

// Options tune the pipeline.
type Options struct {
	Workers          int
	ChunkLines       int
	MaxLineBytes     int
	ProgressInterval int64

	Builder *enrich.Builder
	// Rejects receives unparsable lines as NDJSON when non-nil.
	Rejects io.Writer
}

// OptionsFromConfig maps the input section of cfg.
func OptionsFromConfig(cfg *config.Config, b *enrich.Builder) Options {
	return Options{
		Workers:          cfg.Input.Workers,
		ChunkLines:       cfg.Input.ChunkLines,
		MaxLineBytes:     cfg.Input.MaxLineBytes,
		ProgressInterval: int64(cfg.Input.ProgressInterval),
		Builder:          b,
	}
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.ChunkLines <= 0 {
		o.ChunkLines = 8192
	}
	if o.Builder == nil {
		o.Builder = enrich.NewBuilder(nil)
	}
}

// SourceStats describes one input after it was read.
type SourceStats struct {
	Name        string             `json:"name"`
	Compression reader.Compression `json:"compression"`
	Lines       int64              `json:"lines"`
	Truncated   bool               `json:"truncated,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Result is the merged outcome of a pipeline run.
type Result struct {
	RunID      string
	Aggregator *aggregate.Aggregator
	Counters   aggregate.Counters
	Sources    []SourceStats
	// Truncated is set when input stopped early, by cancellation or a read
	// error. The aggregate is still complete for what was read.
	Truncated bool
	Started   time.Time
	Finished  time.Time
}

// Inputs returns the names of every source that was opened.
func (r *Result) Inputs() []string {
	names := make([]string, len(r.Sources))
	for i, s := range r.Sources {
		names[i] = s.Name
	}
	return names
}

func newResult() *Result {
	return &Result{
		RunID:      uuid.NewString(),
		Aggregator: aggregate.New(),
		Started:    time.Now().UTC(),
	}
}

// Analyze reads paths in order ("-" is stdin) and aggregates every
// Kubernetes login in them. Missing files fail the run before any input is
// read. Cancelling ctx stops reading and returns what was aggregated so far.
func Analyze(ctx context.Context, paths []string, opts Options) (*Result, error) {
	opts.normalize()
	if len(paths) == 0 {
		paths = []string{reader.Stdin}
	}
	for _, p := range paths {
		if p == reader.Stdin {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("input %s: %w", p, err)
		}
	}

	res := newResult()
	rj := newRejectWriter(opts.Rejects)
	for i, p := range paths {
		if ctx.Err() != nil {
			res.Truncated = true
			break
		}
		src, err := reader.Open(p)
		if err != nil {
			return nil, err
		}
		runSource(ctx, res, i, src, opts, rj)
		src.Close()
	}
	res.Finished = time.Now().UTC()
	return res, nil
}

// AnalyzeReader aggregates a single already opened stream.
func AnalyzeReader(ctx context.Context, name string, r io.Reader, opts Options) (*Result, error) {
	opts.normalize()
	src, err := reader.NewSource(name, r)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	res := newResult()
	runSource(ctx, res, 0, src, opts, newRejectWriter(opts.Rejects))
	res.Finished = time.Now().UTC()
	return res, nil
}

func runSource(ctx context.Context, res *Result, fileIndex int, src *reader.Source, opts Options, rj *rejectWriter) {
	agg, counters, stats := analyzeStream(ctx, fileIndex, src, opts, rj)
	res.Aggregator.Merge(agg)
	res.Counters.Add(counters)
	res.Sources = append(res.Sources, stats)
	if stats.Truncated {
		res.Truncated = true
	}
}

// chunk is a run of consecutive lines. A nil line marks one that exceeded
// the maximum length.
type chunk struct {
	first uint64
	lines [][]byte
}

// partial is one worker's private state.
type partial struct {
	agg      *aggregate.Aggregator
	counters aggregate.Counters
	builder  *enrich.Builder
	rejects  *rejectWriter
	source   string
}

func (p *partial) process(c chunk) {
	for i, line := range c.lines {
		seq := c.first + uint64(i)
		p.counters.Lines++
		if line == nil {
			p.counters.Skipped++
			p.counters.TooLong++
			continue
		}
		p.processLine(line, seq)
	}
}

func (p *partial) processLine(line []byte, seq uint64) {
	res := parsers.Normalize(line)
	if !res.OK() {
		p.counters.Skipped++
		p.rejects.write(p.source, seq, line, res.Err)
		return
	}
	p.counters.Parsed++

	rec := &res.Record
	if rec.Type == parsers.TypeResponse {
		p.counters.Responses++
	}

	ev, outcome := p.builder.Build(rec, seq)
	if outcome == enrich.NotLogin {
		return
	}
	p.counters.LoginRecords++

	switch outcome {
	case enrich.Ignored:
		p.counters.Ignored++
	case enrich.Filtered:
		p.counters.Filtered++
	case enrich.Accepted:
		if ev.Success {
			p.counters.Successes++
		} else {
			p.counters.Failures++
		}
		p.agg.Observe(ev)
	}
}

// analyzeStream fans line chunks out to opts.Workers workers, each owning an
// aggregator, and merges them once every worker is done.
func analyzeStream(ctx context.Context, fileIndex int, src *reader.Source, opts Options, rj *rejectWriter) (*aggregate.Aggregator, aggregate.Counters, SourceStats) {
	log := logger.L()
	stats := SourceStats{Name: src.Name, Compression: src.Compression}
	log.Infow("reading input", "source", src.Name, "compression", src.Compression, "workers", opts.Workers)

	chunks := make(chan chunk, opts.Workers)
	partials := make([]*partial, opts.Workers)
	var g errgroup.Group
	for w := range partials {
		p := &partial{
			agg:     aggregate.New(),
			builder: opts.Builder,
			rejects: rj,
			source:  src.Name,
		}
		partials[w] = p
		g.Go(func() error {
			for c := range chunks {
				p.process(c)
			}
			return nil
		})
	}

	base := uint64(fileIndex) << seqFileShift
	lr := reader.NewLineReader(src, opts.MaxLineBytes)
	cur := chunk{first: base + 1, lines: make([][]byte, 0, opts.ChunkLines)}
	start := time.Now()

	send := func() bool {
		if len(cur.lines) == 0 {
			return true
		}
		select {
		case chunks <- cur:
		case <-ctx.Done():
			return false
		}
		cur = chunk{first: base + uint64(lr.Line()) + 1, lines: make([][]byte, 0, opts.ChunkLines)}
		return true
	}

read:
	for {
		if ctx.Err() != nil {
			stats.Truncated = true
			break
		}
		line, err := lr.Next()
		switch {
		case err == nil:
			cur.lines = append(cur.lines, line)
		case errors.Is(err, reader.ErrLineTooLong):
			cur.lines = append(cur.lines, nil)
		case errors.Is(err, io.EOF):
			break read
		default:
			log.Warnw("input ended early", "source", src.Name, "line", lr.Line(), "err", err.Error())
			stats.Truncated = true
			stats.Error = err.Error()
			break read
		}

		if n := lr.Line(); opts.ProgressInterval > 0 && n%opts.ProgressInterval == 0 {
			log.Infow("processing progress",
				"source", src.Name,
				"lines_read", n,
				"lines_per_second", float64(n)/time.Since(start).Seconds())
		}

		if len(cur.lines) >= opts.ChunkLines && !send() {
			stats.Truncated = true
			break
		}
	}
	// workers drain until chunks is closed, so lines already read are
	// processed even after cancellation
	if len(cur.lines) > 0 {
		chunks <- cur
	}
	close(chunks)
	_ = g.Wait()

	stats.Lines = lr.Line()
	agg := partials[0].agg
	var counters aggregate.Counters
	for _, p := range partials {
		if p.agg != agg {
			agg.Merge(p.agg)
		}
		counters.Add(p.counters)
	}

	if stats.Truncated {
		log.Warnw("input truncated", "source", src.Name, "lines_read", stats.Lines)
	}
	log.Infow("finished input",
		"source", src.Name,
		"lines", stats.Lines,
		"login_records", counters.LoginRecords,
		"skipped", counters.Skipped,
		"duration", time.Since(start))
	return agg, counters, stats
}
