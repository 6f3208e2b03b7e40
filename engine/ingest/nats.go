package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/askcv/askcv/engine/index"
	"github.com/askcv/askcv/pkg/fn"
	"github.com/askcv/askcv/pkg/natsutil"
)

const (
	// RebuildSubject accepts rebuild requests (request/reply).
	RebuildSubject = "askcv.admin.rebuild"
	// RebuiltSubject carries an event after every rebuild attempt.
	RebuiltSubject = "askcv.index.rebuilt"
)

// RebuildRequest asks for a fresh index.
type RebuildRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RebuildEvent describes the outcome of a rebuild.
type RebuildEvent struct {
	BuildID    string `json:"build_id,omitempty"`
	Chunks     int    `json:"chunks"`
	Dimension  int    `json:"dimension"`
	ModelInfo  string `json:"model_info,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Event reports the outcome of one build.
func Event(idx *index.Index, took time.Duration, err error) RebuildEvent {
	ev := RebuildEvent{DurationMS: took.Milliseconds()}
	if err != nil {
		ev.Error = err.Error()
		return ev
	}
	ev.BuildID = idx.BuildID()
	ev.Chunks = idx.Len()
	ev.Dimension = idx.Dimension()
	ev.ModelInfo = idx.ModelInfo()
	return ev
}

// RebuildFunc runs one rebuild and reports it as an event.
func (b *Builder) RebuildFunc(h *index.Handle) func(context.Context) RebuildEvent {
	return func(ctx context.Context) RebuildEvent {
		start := time.Now()
		idx, err := b.Rebuild(ctx, h)
		return Event(idx, time.Since(start), err)
	}
}

// Serve answers rebuild requests on RebuildSubject and announces each
// outcome on RebuiltSubject.
func Serve(nc *nats.Conn, b *Builder, h *index.Handle, timeout time.Duration) (*nats.Subscription, error) {
	log := b.log
	rebuild := b.RebuildFunc(h)
	onErr := func(err error) { log.Warn("ingest: nats", "err", err) }

	return natsutil.Handle(nc, RebuildSubject, func(ctx context.Context, req RebuildRequest) RebuildEvent {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		log.Info("rebuild requested", "via", "nats", "reason", req.Reason)
		ev := rebuild(ctx)
		if ev.Error != "" {
			log.Error("rebuild failed", "err", ev.Error)
		}
		if err := natsutil.Publish(ctx, nc, RebuiltSubject, ev); err != nil {
			onErr(err)
		}
		return ev
	}, onErr)
}

// Announce publishes ev on RebuiltSubject; rebuilds triggered outside NATS use it.
func Announce(ctx context.Context, nc *nats.Conn, ev RebuildEvent, log *slog.Logger) {
	if nc == nil {
		return
	}
	if err := natsutil.Publish(ctx, nc, RebuiltSubject, ev); err != nil {
		log.Warn("ingest: announce rebuild", "err", err)
	}
}

// FollowRetry bounds how long Follow waits for announced artifacts to appear
// on disk. A writer renames the two artifact files one after the other.
var FollowRetry = fn.RetryOpts{MaxAttempts: 5, InitialWait: 100 * time.Millisecond, MaxWait: time.Second}

// Follow loads the artifacts in dir into h whenever a build is announced on
// RebuiltSubject, so a running server picks up indexes built offline.
// Failed builds and the build h already holds are ignored.
func Follow(nc *nats.Conn, h *index.Handle, dir string, want index.Expect, log *slog.Logger) (*nats.Subscription, error) {
	onErr := func(err error) { log.Warn("ingest: nats", "err", err) }
	return natsutil.Subscribe(nc, RebuiltSubject, func(ctx context.Context, ev RebuildEvent) {
		if ev.Error != "" || ev.BuildID == "" {
			return
		}
		if cur := h.Load(); cur != nil && cur.BuildID() == ev.BuildID {
			return
		}
		load := fn.RetryStage(FollowRetry, fn.Lift(func(_ context.Context, id string) (*index.Index, error) {
			idx, err := index.Load(dir, want)
			if err != nil {
				return nil, err
			}
			if idx.BuildID() != id {
				return nil, fmt.Errorf("ingest: follow: %s holds build %s, want %s", dir, idx.BuildID(), id)
			}
			return idx, nil
		}))
		idx, err := load(ctx, ev.BuildID).Unwrap()
		if err != nil {
			log.Warn("announced index not loaded", "build_id", ev.BuildID, "err", err)
			return
		}
		old := h.Swap(idx)
		log.Info("index reloaded", "build_id", idx.BuildID(), "chunks", idx.Len(), "replaced", old != nil)
	}, onErr)
}
