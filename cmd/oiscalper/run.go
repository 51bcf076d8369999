package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/oi-scalper/internal/export"
	"github.com/dgnsrekt/oi-scalper/internal/notify"
	"github.com/dgnsrekt/oi-scalper/internal/server"
	"github.com/dgnsrekt/oi-scalper/internal/session"
	"github.com/dgnsrekt/oi-scalper/internal/sse"
	"github.com/dgnsrekt/oi-scalper/internal/ws"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the option chain and serve signals until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(cmd.Context())
		},
	}
}

func runService(ctx context.Context) error {
	pl, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	logger.Info("configuration loaded",
		zap.String("instrument", cfg.Instrument.Name),
		zap.Int("candidates", len(cfg.Instrument.Candidates)),
		zap.Duration("interval", cfg.PollInterval()),
		zap.Bool("useRSI", cfg.Signal.UseRSI),
		zap.Bool("enforceHours", cfg.Market.EnforceHours),
		zap.Bool("serverEnabled", cfg.Server.Enabled),
		zap.Bool("wsEnabled", cfg.Server.WSEnabled),
	)

	ntfyCfg := notify.LoadConfig()
	if err := ntfyCfg.Validate(); err != nil {
		return err
	}
	signals := notify.NewSignalSink(notify.New(ntfyCfg, cfg.Instrument.Name, logger), logger)
	pl.poller.AddSink(signals)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.Enabled {
		var (
			feeds   server.Feeds
			clients server.ClientCounter
		)
		if cfg.Server.WSEnabled {
			hub, err := ws.NewHub("signals", pl.state.ID(), replayFrom(pl.state), logger)
			if err != nil {
				return err
			}
			feeds.Stream, clients = hub, hub
			feeds.Negotiate = ws.NewNegotiateHandler(pl.state.ID(), logger).HandleNegotiate
			pl.poller.AddSink(hub)
			g.Go(func() error {
				hub.Run(gctx)
				return nil
			})
		}
		if cfg.Server.SSEEnabled {
			events := sse.NewBroadcaster(pl.state, time.Duration(cfg.Server.SSEHeartbeatSec)*time.Second, logger)
			feeds.Events = events.HandleSSE
			pl.poller.AddSink(events)
			g.Go(func() error {
				events.Run(gctx)
				return nil
			})
		}

		srv := server.NewServer(pl.state, pl.poller, clients, cfg.Instrument.Name, logger)
		router, err := server.NewRouter(srv, feeds, logger)
		if err != nil {
			return err
		}

		httpServer := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}

		g.Go(func() error {
			logger.Info("starting server", zap.String("addr", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown error", zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		return pl.poller.Run(gctx)
	})

	err = g.Wait()
	signals.Close()

	if path := cfg.Export.OnExitPath; path != "" {
		if exportErr := export.WriteFile(path, pl.state.Snapshot()); exportErr != nil {
			logger.Error("failed to export decision log", zap.Error(exportErr))
		} else {
			logger.Info("decision log exported",
				zap.String("path", path),
				zap.Int("records", len(pl.state.Snapshot())))
		}
	}

	logger.Info("stopped")
	return err
}

// replayFrom serves the latest record and status to websocket clients as
// they join.
func replayFrom(state *session.State) ws.Replayer {
	return func(group string) (map[string]any, bool) {
		switch group {
		case ws.GroupSignals:
			rec, ok := state.Latest()
			if !ok {
				return nil, false
			}
			m, err := ws.RecordMessage(rec)
			return m, err == nil
		case ws.GroupStatus:
			status, at := state.Status()
			if status == "" {
				return nil, false
			}
			return ws.StatusMessage(status, at, nil), true
		}
		return nil, false
	}
}
