package pipeline

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/harborworks/lighter/digest"
	"github.com/harborworks/lighter/manifest"
	"github.com/harborworks/lighter/metrics"
)

// DefaultConcurrency is the hash worker limit applied when the config does
// not set one.
const DefaultConcurrency = 8

// hashFiles reads and hashes every scanned file across a bounded worker
// pool. Results land at their input index, so record order matches walk
// order regardless of completion order. The first error cancels the pool;
// no further work is scheduled after cancellation.
func hashFiles(ctx context.Context, root string, files []string, maxFileSize int64, concurrency int, collector *metrics.Collector) ([]manifest.FileRecord, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	records := make([]manifest.FileRecord, len(files))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var firstErr error

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i, rel := range files {
		// Stop scheduling once canceled (error or caller cancellation).
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			if firstErr != nil {
				return nil, firstErr
			}
			return nil, ctx.Err()
		}

		wg.Add(1)
		go func(idx int, rel string) {
			defer wg.Done()
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			content, err := digest.ReadFile(filepath.Join(root, filepath.FromSlash(rel)), maxFileSize)
			if err != nil {
				setErr(err)
				return
			}

			ext := digest.Ext(rel)
			records[idx] = manifest.FileRecord{
				LogicalPath: manifest.NormalizePath(rel),
				Content:     content,
				ContentKey:  digest.Key(content, ext),
				ContentType: manifest.TypeByExt(ext),
			}
			collector.IncFileHashed(int64(len(content)))
		}(i, rel)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
