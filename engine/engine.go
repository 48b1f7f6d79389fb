// Package engine orchestrates the sagas that span the metadata store and
// the remote media store: upload, delete, move, visibility. Each saga is a
// short-lived sequenced operation with defined compensating actions on
// partial failure; per-asset locks serialize sagas touching the same asset.
package engine

import (
	"context"
	"strconv"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog/log"

	"gallery/cache"
	"gallery/errs"
	"gallery/remote"
	"gallery/store"
)

// MaxBatchSize caps delete/move batches.
const MaxBatchSize = 500

type Engine struct {
	store  *store.Store
	remote *remote.Client
	cache  *cache.Cache

	// Lock table keyed by asset id. Sagas for different assets run
	// concurrently; sagas for the same asset are serialized so a move and
	// a delete cannot race each other.
	locks cmap.ConcurrentMap[string, *sync.Mutex]
}

func New(st *store.Store, rc *remote.Client, c *cache.Cache) *Engine {
	return &Engine{
		store:  st,
		remote: rc,
		cache:  c,
		locks:  cmap.New[*sync.Mutex](),
	}
}

func (e *Engine) lockAsset(id uint64) func() {
	key := strconv.FormatUint(id, 10)
	mu := e.locks.Upsert(key, nil, func(exists bool, inMap, _ *sync.Mutex) *sync.Mutex {
		if exists {
			return inMap
		}
		return &sync.Mutex{}
	})
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) invalidateListings(ctx context.Context) {
	e.cache.Invalidate(ctx)
}

func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.KindValidation, err, "operation canceled")
	}
	return nil
}

func logOrphan(remoteID uint64, cause error) {
	log.Error().Uint64("remote_id", remoteID).Err(cause).
		Msg("Orphaned remote object after local commit failure, scheduling compensating delete")
}
