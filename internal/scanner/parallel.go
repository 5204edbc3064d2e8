package scanner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Nomadcxx/strmsync/internal/progress"
)

// ScanAll scans roots on a bounded pool. Every worker fills its own set and
// the sets are unioned after all workers finish, so nothing is shared while
// scanning. Supports context cancellation for graceful shutdown.
func (s *Scanner) ScanAll(ctx context.Context, roots []Root, workers int, pr *progress.Reporter) (KeySet, Stats, error) {
	if workers <= 0 {
		workers = 1
	}

	pr.Start(progress.StageScanning, len(roots), fmt.Sprintf("Scanning %d library roots...", len(roots)))

	sets := make([]KeySet, len(roots))
	stats := make([]Stats, len(roots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, root := range roots {
		g.Go(func() error {
			keys, st, err := s.Scan(gctx, root)
			if err != nil {
				return errorf(root, err)
			}
			sets[i] = keys
			stats[i] = st
			pr.Increment(fmt.Sprintf("Scanned %s", root.Path))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	merged := make(KeySet)
	var total Stats
	for i := range roots {
		merged.Union(sets[i])
		total.add(stats[i])
	}
	total.Keys = merged.Len()

	return merged, total, nil
}
