// Package session wraps pkg/engine with the host-integration concerns a
// real deployment needs around a pure function: structured logging of
// every call, a correlation id threaded through each one, and
// human-readable before/after sizes in the log line rather than raw
// byte counts.
package session

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbtuple/tupleup/internal/arena"
	"github.com/dbtuple/tupleup/internal/config"
	"github.com/dbtuple/tupleup/pkg/engine"
)

// Session is a logged, correlation-tracked handle onto the update
// engine, scoped to one arena so a caller driving many updates in
// sequence can reuse its allocations and Reset between batches.
type Session struct {
	log   *zap.Logger
	cfg   config.Config
	dict  engine.FieldDictionary
	arena *arena.Arena
}

// New creates a Session. log may be nil, in which case a no-op logger
// is used.
func New(log *zap.Logger, cfg config.Config, dict engine.FieldDictionary) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		log:   log,
		cfg:   cfg,
		dict:  dict,
		arena: arena.New(cfg.ArenaSlabBytes),
	}
}

// Update runs one update call, logging its outcome under a fresh
// correlation id.
func (s *Session) Update(record, ops []byte) ([]byte, error) {
	id := uuid.New()
	start := time.Now()
	out, err := engine.Update(record, ops, s.cfg, s.dict, s.arena)
	elapsed := time.Since(start)

	if err != nil {
		s.log.Warn("update failed",
			zap.String("correlation_id", id.String()),
			zap.Error(err),
			zap.Duration("elapsed", elapsed),
		)
		return nil, err
	}

	s.log.Info("update applied",
		zap.String("correlation_id", id.String()),
		zap.String("before", humanize.Bytes(uint64(len(record)))),
		zap.String("after", humanize.Bytes(uint64(len(out)))),
		zap.Duration("elapsed", elapsed),
	)
	return out, nil
}

// Reset releases every scratch allocation this session's arena has
// made so far, for a caller that wants to bound memory growth across a
// long-running batch of updates.
func (s *Session) Reset() {
	s.arena.Reset()
}
