package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/roach88/recsync/internal/collection"
	"github.com/roach88/recsync/internal/record"
)

// Result is the outcome of scanning one directory.
type Result struct {
	// Records are the discovered records in dependency order.
	Records *collection.Collection

	// Graph is the full dependency graph, ghosts included.
	Graph *Graph

	// Cycles lists dependency cycles that were broken while sorting.
	Cycles []CycleWarning

	// Skipped lists files that could not be read or parsed.
	Skipped []string
}

// Scanner discovers serialized records on a filesystem.
type Scanner struct {
	fs     afero.Fs
	logger *slog.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithLogger sets the logger used for skipped files and cycle warnings.
func WithLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = l
	}
}

// NewScanner creates a scanner over fs. A nil fs means the OS filesystem.
func NewScanner(fs afero.Fs, opts ...ScannerOption) *Scanner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	s := &Scanner{
		fs:     fs,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fs returns the filesystem the scanner reads.
func (s *Scanner) Fs() afero.Fs {
	return s.fs
}

// Scan walks dir recursively and returns every record found, sorted so each
// record appears after all records it depends on.
//
// A missing directory returns an empty result and no error.
// Files that fail to parse are logged and skipped.
func (s *Scanner) Scan(ctx context.Context, dir string) (*Result, error) {
	empty := &Result{Records: collection.Must(), Graph: BuildGraph(collection.Must())}

	info, err := s.fs.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("source directory not found, nothing to discover", "dir", dir)
		return empty, nil
	}
	if err != nil {
		return nil, record.WrapIO(dir, "stat source directory", err)
	}
	if !info.IsDir() {
		return nil, &record.Error{Code: record.ErrCodeIO, Message: "source is not a directory", Path: dir}
	}

	parsed := collection.Must()
	var skipped []string

	err = afero.Walk(s.fs, dir, func(path string, info os.FileInfo, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if walkErr != nil {
			s.logger.Warn("skipping unreadable path", "path", path, "error", walkErr)
			skipped = append(skipped, path)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || filepath.Ext(path) != record.FileExt {
			return nil
		}

		r, err := record.Load(s.fs, path)
		if err != nil {
			s.logger.Warn("skipping malformed record file", "path", path, "error", err)
			skipped = append(skipped, path)
			return nil
		}
		if r.Identity == "" {
			s.logger.Warn("skipping record file without uuid", "path", path)
			skipped = append(skipped, path)
			return nil
		}
		if prev := parsed.Get(r.Identity); prev != nil {
			s.logger.Warn("duplicate record identity, last file wins",
				"uuid", r.Identity, "previous", prev.SourcePath, "path", path)
		}
		return parsed.Add(r)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, record.WrapIO(dir, "walk source directory", err)
	}

	g := BuildGraph(parsed)
	cycles := AnalyzeCycles(g)
	for _, c := range cycles {
		s.logger.Warn("breaking dependency cycle", "dir", dir, "cycle", c.Message)
	}

	ordered := collection.Must()
	for _, id := range g.Sort() {
		if r := parsed.Get(id); r != nil {
			_ = ordered.Add(r)
		}
	}

	s.logger.Debug("discovered records", "dir", dir, "records", ordered.Len(),
		"ghosts", len(g.Ghosts()), "skipped", len(skipped))

	return &Result{
		Records: ordered,
		Graph:   g,
		Cycles:  cycles,
		Skipped: skipped,
	}, nil
}

// Discover is a convenience wrapper returning only the ordered records.
func (s *Scanner) Discover(ctx context.Context, dir string) (*collection.Collection, error) {
	res, err := s.Scan(ctx, dir)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}
