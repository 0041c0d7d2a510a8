package state

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// OpenStore probes backend once. When the probe fails the returned store is
// process-local for the rest of the process lifetime; it is never re-probed.
func OpenStore(ctx context.Context, backend Backend, cfg StoreConfig, opts ...StoreOption) *SessionStore {
	opts = append([]StoreOption{WithKeyPrefix(cfg.KeyPrefix), WithTTL(cfg.TTL)}, opts...)

	if backend == nil {
		log.Warn().Str("backend", cfg.Backend).Msg("session store backend not configured, using in-memory store")
		return NewMemoryStore(opts...)
	}

	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := backend.Ping(probeCtx); err != nil {
		log.Warn().Err(err).Str("backend", cfg.Backend).Msg("session store unreachable, falling back to in-memory store")
		return NewMemoryStore(opts...)
	}

	log.Info().Str("backend", cfg.Backend).Dur("ttl", cfg.TTL).Msg("session store connected")
	return NewSessionStore(backend, opts...)
}
