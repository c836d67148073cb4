package system

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spacemmo/server/internal/core/event"
	coresys "github.com/spacemmo/server/internal/core/system"
	"github.com/spacemmo/server/internal/persist"
)

// LedgerWriter stores batches of combat records.
type LedgerWriter interface {
	WriteBatch(ctx context.Context, entries []persist.LedgerEntry) error
}

// LedgerSystem turns bus events into combat ledger entries and flushes them
// to a background writer every interval ticks, so the game loop never waits
// on the database. Phase 5 (Persist).
type LedgerSystem struct {
	writer    LedgerWriter
	shard     int
	interval  int
	tickCount int
	pending   []persist.LedgerEntry // game loop only
	now       func() time.Time

	batches chan []persist.LedgerEntry
	wg      sync.WaitGroup
	log     *zap.Logger
}

func NewLedgerSystem(bus *event.Bus, writer LedgerWriter, shardID, intervalTicks int, log *zap.Logger) *LedgerSystem {
	s := &LedgerSystem{
		writer:   writer,
		shard:    shardID,
		interval: intervalTicks,
		now:      time.Now,
		batches:  make(chan []persist.LedgerEntry, 16),
		log:      log,
	}
	event.Subscribe(bus, s.onJoined)
	event.Subscribe(bus, s.onLeft)
	event.Subscribe(bus, s.onHit)
	event.Subscribe(bus, s.onHandoff)
	return s
}

// Start launches the writer goroutine. It exits once Close has drained the
// batch channel.
func (s *LedgerSystem) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for batch := range s.batches {
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := s.writer.WriteBatch(writeCtx, batch); err != nil {
				s.log.Error("ledger write failed", zap.Int("entries", len(batch)), zap.Error(err))
			}
			cancel()
		}
	}()
}

func (s *LedgerSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *LedgerSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.flush()
}

// Close flushes whatever is pending and waits for the writer to finish.
// Called once from the game loop at shutdown.
func (s *LedgerSystem) Close() {
	s.flush()
	close(s.batches)
	s.wg.Wait()
}

func (s *LedgerSystem) flush() {
	if len(s.pending) == 0 {
		return
	}
	batch := s.pending
	s.pending = nil
	select {
	case s.batches <- batch:
	default:
		s.log.Warn("ledger backlog full, dropping batch", zap.Int("entries", len(batch)))
	}
}

func (s *LedgerSystem) record(e persist.LedgerEntry) {
	e.Shard = s.shard
	e.RecordedAt = s.now()
	s.pending = append(s.pending, e)
}

func (s *LedgerSystem) onJoined(ev event.ShipJoined) {
	s.record(persist.LedgerEntry{
		Kind:   persist.KindJoin,
		ShipID: uint64(ev.ShipID),
		X:      ev.Motion.X,
		Y:      ev.Motion.Y,
	})
}

func (s *LedgerSystem) onLeft(ev event.ShipLeft) {
	s.record(persist.LedgerEntry{
		Kind:   persist.KindLeave,
		ShipID: uint64(ev.ShipID),
		Hits:   ev.Hits,
		Kills:  ev.Kills,
	})
}

func (s *LedgerSystem) onHit(ev event.RocketHit) {
	s.record(persist.LedgerEntry{
		Kind:     persist.KindHit,
		ShipID:   uint64(ev.Target),
		OtherID:  uint64(ev.Shooter),
		RocketID: int64(ev.RocketID),
		X:        ev.X,
		Y:        ev.Y,
	})
}

func (s *LedgerSystem) onHandoff(ev event.HandoffAdvised) {
	s.record(persist.LedgerEntry{
		Kind:    persist.KindHandoff,
		ShipID:  uint64(ev.ShipID),
		OtherID: uint64(ev.To),
		X:       ev.Motion.X,
		Y:       ev.Motion.Y,
	})
}
