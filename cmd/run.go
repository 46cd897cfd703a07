// SPDX-License-Identifier: MIT
package cmd

import (
	"affect/internal/audio"
	"affect/internal/config"
	"affect/internal/log"
	"affect/internal/metrics"
	"affect/internal/session"
	"affect/internal/transport"
	"affect/internal/transport/udp"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// resultBuffer bounds how many results may wait for the transports.
const resultBuffer = 4

// runLive captures from the configured device until ctx is cancelled or a
// supervised goroutine fails.
//
// Capture runs on the PortAudio callback thread and only hands chunks to the
// AsyncRunner; extraction and classification happen on the runner's worker,
// and delivery on the errgroup's consumer goroutine.
func runLive(ctx context.Context, cfg *config.Config) error {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.NewRegistry())
	}

	model, err := loadClassifier(cfg)
	if err != nil {
		return err
	}
	sess, err := session.New(cfg.Session(), model, session.WithMetrics(m))
	if err != nil {
		return err
	}
	if err := sess.Initialize(cfg.Audio.SampleRate); err != nil {
		return err
	}

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	runner := session.NewAsyncRunner(ctx, sess, resultBuffer)

	engine, err := audio.NewEngine(audio.EngineConfig{
		DeviceID:        cfg.Audio.InputDevice,
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		Channels:        cfg.Audio.InputChannels,
		LowLatency:      cfg.Audio.LowLatency,
	}, runner)
	if err != nil {
		runner.Close()
		return err
	}

	sinks, err := openTransports(ctx, g, cfg, m)
	if err != nil {
		runner.Close()
		return err
	}
	defer sinks.Close()

	if m != nil {
		g.Go(func() error {
			log.Infof("Serving metrics on %s/metrics", cfg.Metrics.Address)
			return m.ListenAndServe(ctx, cfg.Metrics.Address)
		})
	}

	// Deliver results until the runner closes its channel.
	g.Go(func() error {
		for res := range runner.Results() {
			if res.Kind == session.Failed {
				return res.Err
			}
			if res.Skipped != nil && !res.Updated {
				log.Debugf("Analysis skipped: %v", res.Skipped)
			}
			msg, ok := transport.NewMessage(res, time.Now())
			if !ok {
				continue
			}
			if err := sinks.Send(msg); err != nil {
				log.Warnf("Transport error: %v", err)
			}
		}
		return nil
	})

	if err := engine.StartInputStream(); err != nil {
		runner.Close()
		return err
	}

	if cfg.Recording.Enabled {
		if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
			log.Errorf("Cannot create recording directory: %v", err)
		} else {
			path := audio.RecordingPath(cfg.Recording.OutputDir, time.Now())
			if err := engine.StartRecording(path, cfg.Recording.BitDepth); err != nil {
				log.Errorf("Cannot start recording: %v", err)
			} else {
				log.Infof("Recording input to %s", path)
			}
		}
	}

	// Shutdown: stop the callback before closing the runner it feeds.
	g.Go(func() error {
		<-ctx.Done()
		if err := engine.Close(); err != nil {
			log.Errorf("Error closing audio engine: %v", err)
		}
		runner.Close()
		if dropped := runner.Dropped(); dropped > 0 {
			log.Infof("%d chunk(s) dropped while analysis was busy", dropped)
		}
		return nil
	})

	return g.Wait()
}

// openTransports builds the result fanout. Servers are started on g.
func openTransports(ctx context.Context, g *errgroup.Group, cfg *config.Config, m *metrics.Metrics) (transport.Fanout, error) {
	sinks := transport.Fanout{transport.NewLoggingTransport()}

	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(m)
		sinks = append(sinks, ws)
		g.Go(func() error {
			return ws.ListenAndServe(ctx, cfg.Transport.WebSocketAddress)
		})
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			sinks.Close()
			return nil, fmt.Errorf("failed to create UDP sender: %w", err)
		}
		pub, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, m)
		if err != nil {
			sender.Close()
			sinks.Close()
			return nil, err
		}
		pub.Start()
		sinks = append(sinks, pub)
	}

	return sinks, nil
}
