package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alexandersjoberg/sidekick/pkg/metric"
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"
)

var (
	contentTypes = map[string]string{
		".csv": "text/csv",
		".zip": "application/zip",
		".npy": "application/npy",
	}
	supportedExtensions = mapset.NewSetFromMapKeys(contentTypes)
)

// SupportedExtensions returns the accepted file extensions, sorted.
func SupportedExtensions() []string {
	extensions := supportedExtensions.ToSlice()
	sort.Strings(extensions)
	return extensions
}

// validatePaths resolves paths and checks all of them before reporting, so
// that one error names every missing file or every bad extension.
func validatePaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	resolved := make([]string, 0, len(paths))
	missing := make([]string, 0)
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
			missing = append(missing, abs)
			continue
		}
		if info.IsDir() {
			missing = append(missing, abs)
			continue
		}
		resolved = append(resolved, abs)
	}
	if len(missing) > 0 {
		return nil, &FilesNotFoundError{Paths: missing}
	}

	unsupported := make([]string, 0)
	for _, path := range resolved {
		if !supportedExtensions.Contains(strings.ToLower(filepath.Ext(path))) {
			unsupported = append(unsupported, path)
		}
	}
	if len(unsupported) > 0 {
		return nil, &UnsupportedExtensionError{Paths: unsupported}
	}
	return resolved, nil
}

// Stage validates paths, creates a wrapper and uploads every file into it
// with at most MaxWorkers uploads in flight. Nothing is sent when a path is
// invalid. The first failed upload cancels the others.
func (c *Client) Stage(ctx context.Context, paths []string, name, description string) (*Session, error) {
	resolved, err := validatePaths(paths)
	if err != nil {
		return nil, err
	}
	wrapperID, err := c.CreateWrapper(ctx, name, description)
	if err != nil {
		return nil, err
	}

	jobs := make(map[string]string, len(resolved))
	var mu sync.Mutex
	var inFlight atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(c.maxWorkers, len(resolved)))
	for _, path := range resolved {
		g.Go(func() error {
			metric.Gauge(metric.UploadFilesInFlight, float64(inFlight.Add(1)), nil)
			uploadID, err := c.UploadFile(gctx, wrapperID, path)
			metric.Gauge(metric.UploadFilesInFlight, float64(inFlight.Add(-1)), nil)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if existing, ok := jobs[uploadID]; ok {
				return fmt.Errorf("%w: upload id %s returned for both %s and %s",
					ErrMalformedResponse, uploadID, existing, path)
			}
			jobs[uploadID] = path
			c.reporter.FileStaged(path, uploadID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Session{WrapperID: wrapperID, Jobs: jobs}, nil
}
