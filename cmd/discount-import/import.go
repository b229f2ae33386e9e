package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/folio-checkout/internal/domain/apperr"
	"github.com/xenking/folio-checkout/internal/domain/discount"
)

const progressEvery = 10_000

// importer is the part of discount.Service the import uses.
type importer interface {
	Import(ctx context.Context, req discount.CreateRequest, actor discount.Actor, source string) (*discount.Code, error)
}

// options are the terms applied to every imported code.
type options struct {
	template      discount.CreateRequest
	workers       int
	bloomCapacity uint
	bloomFPR      float64
}

type record struct {
	code   string
	source string
}

type stats struct {
	read       atomic.Int64
	invalid    atomic.Int64
	duplicates atomic.Int64
	imported   atomic.Int64
	conflicts  atomic.Int64
}

func (s *stats) attrs() []any {
	return []any{
		slog.Int64("read", s.read.Load()),
		slog.Int64("invalid", s.invalid.Load()),
		slog.Int64("duplicates", s.duplicates.Load()),
		slog.Int64("imported", s.imported.Load()),
		slog.Int64("conflicts", s.conflicts.Load()),
	}
}

// dedupe remembers codes already seen. The bloom filter answers "new" for
// most codes without touching the set; the set settles the maybes.
type dedupe struct {
	filter         *bloom.BloomFilter
	seen           map[string]struct{}
	falsePositives int
}

func newDedupe(capacity uint, fpr float64) *dedupe {
	return &dedupe{
		filter: bloom.NewWithEstimates(capacity, fpr),
		seen:   make(map[string]struct{}),
	}
}

// add reports whether code was not seen before.
func (d *dedupe) add(code string) bool {
	if d.filter.TestOrAddString(code) {
		if _, ok := d.seen[code]; ok {
			return false
		}
		d.falsePositives++
	}
	d.seen[code] = struct{}{}
	return true
}

// importFiles streams every file concurrently, drops invalid and repeated
// codes, and imports the rest with opts.workers goroutines.
func importFiles(ctx context.Context, files []string, imp importer, opts options) (*stats, error) {
	st := &stats{}
	g, ctx := errgroup.WithContext(ctx)

	records := make(chan record, 1024)
	readers, readCtx := errgroup.WithContext(ctx)
	for _, path := range files {
		readers.Go(func() error {
			source := filepath.Base(path)
			return streamGzFile(readCtx, path, func(line string) error {
				raw, ok := parseLine(line)
				if !ok {
					return nil
				}
				st.read.Add(1)
				select {
				case records <- record{code: raw, source: source}:
					return nil
				case <-readCtx.Done():
					return readCtx.Err()
				}
			})
		})
	}
	g.Go(func() error {
		defer close(records)
		return readers.Wait()
	})

	jobs := make(chan record, 1024)
	g.Go(func() error {
		defer close(jobs)
		seen := newDedupe(opts.bloomCapacity, opts.bloomFPR)
		defer func() {
			slog.Debug("dedupe finished",
				slog.Int("unique", len(seen.seen)),
				slog.Int("bloom_false_positives", seen.falsePositives),
			)
		}()
		for rec := range records {
			code, err := discount.SanitizeCode(rec.code)
			if err != nil {
				st.invalid.Add(1)
				continue
			}
			if !seen.add(code) {
				st.duplicates.Add(1)
				continue
			}
			select {
			case jobs <- record{code: code, source: rec.source}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	actor := discount.Actor{ID: "discount-import", Type: discount.ActorSystem}
	for range max(opts.workers, 1) {
		g.Go(func() error {
			for rec := range jobs {
				req := opts.template
				req.Code = rec.code
				_, err := imp.Import(ctx, req, actor, rec.source)
				switch {
				case err == nil:
					if n := st.imported.Add(1); n%progressEvery == 0 {
						slog.Info("import progress", st.attrs()...)
					}
				case apperr.KindOf(err) == apperr.KindConflict:
					st.conflicts.Add(1)
				case apperr.KindOf(err) == apperr.KindValidation:
					st.invalid.Add(1)
				default:
					return errors.Wrapf(err, "import %s", rec.code)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return st, err
	}
	return st, nil
}

// parseLine trims a line and skips blanks and # comments.
func parseLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", false
	}
	return line, true
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
