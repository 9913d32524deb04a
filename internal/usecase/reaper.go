package usecase

import (
	"context"
	"log/slog"
	"time"
)

type roomLister interface {
	ActiveRoomIDs(ctx context.Context) ([]string, error)
}

type staleEvictor interface {
	EvictStale(ctx context.Context, roomID string, threshold time.Duration) ([]string, error)
}

// Reaper sweeps all active rooms on a fixed interval and evicts
// players whose heartbeat has gone stale. Evictions go through the
// same commit discipline as player commands, so a sweep never races a
// move into an inconsistent state.
type Reaper struct {
	logger    *slog.Logger
	rooms     roomLister
	evictor   staleEvictor
	interval  time.Duration
	threshold time.Duration
}

func NewReaper(logger *slog.Logger, rooms roomLister, evictor staleEvictor, interval, threshold time.Duration) *Reaper {
	return &Reaper{
		logger:    logger,
		rooms:     rooms,
		evictor:   evictor,
		interval:  interval,
		threshold: threshold,
	}
}

// Run blocks until the context ends, sweeping once per interval.
func (that *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(that.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			that.Sweep(ctx)
		}
	}
}

// Sweep evicts stale players from every active room.
func (that *Reaper) Sweep(ctx context.Context) {
	log := that.logger.With("method", "Sweep")

	ids, err := that.rooms.ActiveRoomIDs(ctx)
	if err != nil {
		log.Error("failed to list active rooms", "error", err)
		return
	}

	for _, roomID := range ids {
		evicted, err := that.evictor.EvictStale(ctx, roomID, that.threshold)
		if err != nil {
			log.Error("failed to evict stale players", "roomID", roomID, "error", err)
			continue
		}

		if len(evicted) > 0 {
			log.Info("evicted stale players", "roomID", roomID, "players", evicted)
		}
	}
}
