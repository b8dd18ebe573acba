// Command nirserver wires a static image catalog and a synthetic frame
// source into the streaming server. The real camera acquisition driver and
// GPU pipeline are not part of this repository; this binary
// stands in for them with a ticker that publishes a small generated frame,
// the same role original_source's imager-polling main loop played for
// HoloNetwork and XRayManager.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/jpillora/backoff"

	nircamera "github.com/DKandrew/NirCamera"
	"github.com/DKandrew/NirCamera/catalog"
	nirlog15 "github.com/DKandrew/NirCamera/log/log15"
)

func main() {
	var (
		ip            = flag.String("ip", "0.0.0.0", "bind address")
		port          = flag.String("port", "9000", "bind port")
		workers       = flag.Int("workers", 4, "reactor worker pool size")
		maxClients    = flag.Int("max-clients", 64, "pre-created connection slots")
		catalogDir    = flag.String("catalog-dir", "./images", "directory of N.jpg catalog images")
		frameInterval = flag.Duration("frame-interval", 33*time.Millisecond, "synthetic frame publish interval")
	)
	flag.Parse()

	base := log15.New()
	base.SetHandler(log15.StreamHandler(os.Stderr, log15.LogfmtFormat()))
	logger := nirlog15.NewLogger(base)

	cat := catalog.NewDirProvider(*catalogDir)

	srv := nircamera.New(*ip, *port, cat,
		nircamera.WithWorkers(*workers),
		nircamera.WithMaxClients(*maxClients),
		nircamera.WithLogger(logger),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Run(ctx); err != nil {
		base.Crit("server failed to start", "err", err)
		os.Exit(1)
	}

	go runSyntheticFrameSource(ctx, srv, *frameInterval, base)

	<-ctx.Done()
	base.Info("shutting down")
	if err := srv.Close(); err != nil {
		base.Error("error during shutdown", "err", err)
	}
}

// runSyntheticFrameSource stands in for the camera+GPU pipeline: it
// publishes a small generated frame on every tick. There's no real hardware
// here to fail, so every 37th tick simulates an acquisition glitch instead of
// generating a frame; on a glitch the loop backs off via b.Duration() rather
// than retrying immediately, the same retry shape as the reconnecting tunnel
// client, and a subsequent successful tick calls b.Reset() to drop back to
// Min.
func runSyntheticFrameSource(ctx context.Context, srv *nircamera.Server, interval time.Duration, log log15.Logger) {
	const simulatedFailureEvery = 37

	b := &backoff.Backoff{
		Min:    50 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq++

			if seq%simulatedFailureEvery == 0 {
				d := b.Duration()
				log.Warn("simulated acquisition glitch, backing off", "seq", seq, "backoff", d)
				select {
				case <-ctx.Done():
					return
				case <-time.After(d):
				}
				continue
			}

			frame := fmt.Appendf(nil, "frame-%08d", seq)
			srv.Publish(frame)
			b.Reset()
		}
	}
}
