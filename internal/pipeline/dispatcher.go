package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"stockwarehouse/internal/refresh"
	"stockwarehouse/internal/staging"
)

// maxSummaryErrors caps how many per-file errors the run summary keeps.
const maxSummaryErrors = 20

// SkipLister reports which symbols are already loaded for a source, so a
// bulk run can skip their files without opening them.
type SkipLister interface {
	LoadedSymbols(ctx context.Context, sourceName string) (map[string]bool, error)
}

// Refresher rebuilds the gold view.
type Refresher interface {
	Refresh(ctx context.Context, view string, preferNonBlocking bool) error
}

// RunSummary aggregates the outcome of a bulk run.
type RunSummary struct {
	Files     int      `json:"files"`
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Partial   int      `json:"partial"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Refreshes int      `json:"refreshes"`
	Errors    []string `json:"errors,omitempty"`
}

// Dispatcher fans a directory of price files out over a bounded worker pool.
type Dispatcher struct {
	pipeline  *Pipeline
	skips     SkipLister
	refresher Refresher
	tracker   *refresh.Tracker
	view      string
	workers   int
	resume    bool

	mu        sync.Mutex
	refreshMu sync.Mutex
	summary   RunSummary
}

// NewDispatcher builds a dispatcher over pipeline with the given worker
// count and refresh batching. With resume set, files whose symbol already
// has rows for the source are skipped.
func NewDispatcher(p *Pipeline, skips SkipLister, refresher Refresher,
	tracker *refresh.Tracker, view string, workers int, resume bool) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	return &Dispatcher{
		pipeline:  p,
		skips:     skips,
		refresher: refresher,
		tracker:   tracker,
		view:      view,
		workers:   workers,
		resume:    resume,
	}
}

// Run loads every CSV file under dir against sourceName. Per-file failures
// are counted, not fatal; the run itself fails only when the directory is
// unreadable or the final refresh fails. The gold view is refreshed after
// each batch of successful loads and once unconditionally at the end.
func (d *Dispatcher) Run(ctx context.Context, dir, sourceName string) (*RunSummary, error) {
	files, err := listCSVFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CSV files found in %s", dir)
	}

	// One skip-set for the whole run. Files loaded by this run are not
	// re-checked against it.
	loaded := map[string]bool{}
	if d.resume {
		loaded, err = d.skips.LoadedSymbols(ctx, sourceName)
		if err != nil {
			return nil, fmt.Errorf("failed to list loaded symbols: %w", err)
		}
		log.Infof("resume: %d symbols already loaded for %s", len(loaded), sourceName)
	}

	d.summary = RunSummary{Files: len(files)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, file := range files {
		file := file
		if loaded[staging.SymbolFromFilename(file)] {
			d.mu.Lock()
			d.summary.Skipped++
			d.mu.Unlock()
			continue
		}
		g.Go(func() error {
			d.loadOne(gctx, file, sourceName)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &d.summary, err
	}

	// Final refresh regardless of the threshold, so the view always
	// reflects the run that just finished.
	if err := d.runRefresh(ctx, true); err != nil {
		return &d.summary, fmt.Errorf("failed final refresh: %w", err)
	}

	log.WithFields(log.Fields{
		"files":     d.summary.Files,
		"succeeded": d.summary.Succeeded,
		"partial":   d.summary.Partial,
		"failed":    d.summary.Failed,
		"skipped":   d.summary.Skipped,
		"refreshes": d.summary.Refreshes,
	}).Info("bulk run complete")
	return &d.summary, nil
}

func (d *Dispatcher) loadOne(ctx context.Context, file, sourceName string) {
	result, err := d.pipeline.LoadFile(ctx, file, sourceName)

	d.mu.Lock()
	d.summary.Processed++
	switch {
	case err != nil:
		d.summary.Failed++
		if len(d.summary.Errors) < maxSummaryErrors {
			d.summary.Errors = append(d.summary.Errors, fmt.Sprintf("%s: %v", filepath.Base(file), err))
		}
	case result.Rejected > 0:
		d.summary.Partial++
	default:
		d.summary.Succeeded++
	}
	d.mu.Unlock()

	if err != nil {
		log.Errorf("failed to load %s: %v", file, err)
		return
	}

	d.tracker.RecordLoads(1)
	if d.tracker.Due() {
		if rerr := d.runRefresh(ctx, false); rerr != nil {
			// A mid-run refresh failure does not stop loading; the
			// final refresh will try again.
			log.Errorf("mid-run refresh failed: %v", rerr)
		}
	}
}

// runRefresh serializes refreshes so only one runs at a time. Threshold
// refreshes re-check Due under the lock; the final refresh is unconditional.
func (d *Dispatcher) runRefresh(ctx context.Context, force bool) error {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()
	if !force && !d.tracker.Due() {
		return nil
	}
	if err := d.refresher.Refresh(ctx, d.view, true); err != nil {
		return err
	}
	d.tracker.MarkRefreshed()
	d.mu.Lock()
	d.summary.Refreshes++
	d.mu.Unlock()
	return nil
}

func listCSVFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
