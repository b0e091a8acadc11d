package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/moqsession/moq/internal/wire"
	"github.com/moqsession/moq/session"
	"github.com/moqsession/moq/transport/quicgo"
)

// demoNamespace/demoTrackName identify the one track this server publishes:
// a clock that ticks out a timestamp object once a second. demoTrackAlias is
// a per-session constant: every SUBSCRIBE accepted on a connection is given
// this same alias, and nothing stops one client from subscribing twice.
var (
	demoNamespace = wire.Tuple{[]byte("moqd"), []byte("demo")}
	demoTrackName = []byte("clock")
)

const demoTrackAlias = 1
const tickInterval = time.Second

// serveConn runs one connection's Session: it publishes the demo clock
// track, serves any SUBSCRIBE against it by streaming one object per tick,
// and blocks in sess.Run until the connection ends or ctx is cancelled.
func serveConn(ctx context.Context, connID string, tr *quicgo.Transport) {
	log := slog.With("session", connID)
	sess := session.New(session.Config{Role: session.RoleServer}, tr, log)

	pub, err := sess.Publish(demoNamespace, demoTrackName)
	if err != nil {
		log.Error("publish demo track", "error", err)
		return
	}

	go func() {
		for ev := range sess.IncomingSubscribes() {
			if !ev.Namespace.Equal(demoNamespace) || string(ev.TrackName) != string(demoTrackName) {
				_ = ev.Reject(0, "unknown track")
				continue
			}
			if err := ev.Accept(demoTrackAlias, wire.Location{}, false); err != nil {
				log.Debug("accept subscribe", "error", err)
				continue
			}
			go streamClock(ctx, log, pub)
		}
	}()

	if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
		log.Debug("session ended", "error", err)
	}
}

// streamClock opens one data stream per tick group and writes a single
// timestamp object to it, grounded on the teacher's per-frame stream-write
// loop (distribution/moq_writer.go) but with one object per group instead of
// one object per video frame.
func streamClock(ctx context.Context, log *slog.Logger, pub interface {
	OpenDataStream(ctx context.Context, trackAlias, groupID, subgroupID uint64, priority byte) (*session.DataStream, error)
}) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var groupID uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		ds, err := pub.OpenDataStream(ctx, demoTrackAlias, groupID, 0, 128)
		if err != nil {
			log.Debug("open data stream", "error", err)
			return
		}
		payload := []byte(fmt.Sprintf("tick %d at %s", groupID, time.Now().UTC().Format(time.RFC3339)))
		if err := ds.WriteObject(0, 0, nil, payload); err != nil {
			log.Debug("write clock object", "error", err)
			ds.Close()
			return
		}
		if err := ds.Close(); err != nil {
			log.Debug("close data stream", "error", err)
			return
		}
		groupID++
	}
}
