// Package enrich fetches album detail pages concurrently.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"comic-catalog-provider/internal/domain"
)

// DefaultConcurrency is the number of detail pages fetched at once.
const DefaultConcurrency = 4

// FetchFunc retrieves the details behind one detail URL.
type FetchFunc func(ctx context.Context, detailURL string) (domain.Details, error)

// PartialFailure lists the albums whose details could not be fetched. Those
// albums are still returned, with empty details.
type PartialFailure struct {
	Failed map[int]error
}

func (e *PartialFailure) Error() string {
	indexes := make([]int, 0, len(e.Failed))
	for i := range e.Failed {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	return fmt.Sprintf("detail fetch failed for %d album(s) at %v", len(indexes), indexes)
}

// Enrich attaches details to every album with a detail URL, running at most
// limit fetches at once. The returned slice has the same length and order as
// albums. A per-album failure leaves that album with empty details and is
// reported through *PartialFailure; an ended ctx stops scheduling and is
// returned as ctx.Err().
func Enrich(ctx context.Context, albums []domain.Album, fetch FetchFunc, limit int) ([]domain.Album, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	out := make([]domain.Album, len(albums))
	copy(out, albums)
	errs := make([]error, len(albums))

	g := new(errgroup.Group)
	g.SetLimit(limit)

	for i := range out {
		if ctx.Err() != nil {
			break
		}
		out[i].Details = domain.Details{}
		if out[i].DetailURL == "" {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return nil
			}
			details, err := fetch(ctx, out[i].DetailURL)
			if err != nil {
				errs[i] = err
				return nil
			}
			if details != nil {
				out[i].Details = details
			}
			return nil
		})
	}
	_ = g.Wait()

	for i := range out {
		if out[i].Details == nil {
			out[i].Details = domain.Details{}
		}
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}

	failed := map[int]error{}
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed[i] = err
		slog.Warn("Album detail fetch failed",
			"index", i, "album_id", out[i].ID, "url", out[i].DetailURL, "error", err)
	}
	if len(failed) > 0 {
		return out, &PartialFailure{Failed: failed}
	}
	return out, nil
}
