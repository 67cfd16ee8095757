package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TradePulse/internal/domain/repository"
	"TradePulse/internal/engine"
	"TradePulse/internal/service/bybit"
	"TradePulse/pkg/config"
	xhttp "TradePulse/pkg/http"
	applogger "TradePulse/pkg/logger"
)

// App encapsulates the application lifecycle: rehydration, the trading
// scheduler, the optional price stream, and the control-plane HTTP server.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	engine     *engine.Engine
	sched      *engine.Scheduler
	stream     *bybit.Stream
	handler    xhttp.Handler
	sink       repository.HistorySink
	posStore   repository.PositionStore
	httpServer *xhttp.Server
}

// New creates an App with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	eng *engine.Engine,
	sched *engine.Scheduler,
	stream *bybit.Stream,
	handler xhttp.Handler,
	sink repository.HistorySink,
	posStore repository.PositionStore,
) *App {
	return &App{
		cfg:      cfg,
		logger:   logger,
		engine:   eng,
		sched:    sched,
		stream:   stream,
		handler:  handler,
		sink:     sink,
		posStore: posStore,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rehydrate open positions before the first trading cycle so restarts
	// resume protection instead of re-entering.
	rehydrateCtx, rcancel := context.WithTimeout(ctx, 30*time.Second)
	err := a.engine.Rehydrate(rehydrateCtx)
	rcancel()
	if err != nil {
		a.logger.Error("rehydrate failed", applogger.Error(err))
		return err
	}

	a.httpServer = xhttp.NewServer(a.handler, a.logger,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	go func() {
		if err := a.sched.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("scheduler stopped", applogger.Error(err))
		}
	}()
	a.logger.Info("scheduler started",
		applogger.Strings("symbols", a.cfg.Engine.Symbols),
		applogger.String("mode", a.cfg.Exchange.Mode))

	if a.stream != nil {
		go a.runStream(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start", applogger.Error(err))
		return err
	}
	a.logger.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// runStream keeps the kline stream alive and folds its ticks into the
// engine's indicator store: mark prices on every update, confirmed bars
// appended to the candle window between scheduler refreshes. Decisions
// still run only against scheduler snapshots.
func (a *App) runStream(ctx context.Context) {
	if err := a.stream.Connect(ctx); err != nil {
		a.logger.Warn("stream connect", applogger.Error(err))
	} else if err := a.stream.Subscribe(ctx); err != nil {
		a.logger.Warn("stream subscribe", applogger.Error(err))
		_ = a.stream.Close()
	}

	for ctx.Err() == nil {
		if !a.stream.IsConnected() {
			// Reconnect waits the configured delay before redialing, so a
			// failing endpoint retries on that cadence rather than spinning.
			if err := a.stream.Reconnect(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				a.logger.Warn("stream reconnect", applogger.Error(err))
				continue
			}
		}

		ticks, errs := a.stream.Read(ctx)
	consume:
		for {
			select {
			case <-ctx.Done():
				_ = a.stream.Close()
				return
			case tick, ok := <-ticks:
				if !ok {
					break consume
				}
				a.engine.ApplyTick(tick.Symbol, tick.Price, tick.Candle, tick.Confirmed)
			case err, ok := <-errs:
				if ok && err != nil {
					a.logger.Warn("stream read", applogger.Error(err))
				}
				break consume
			}
		}
		_ = a.stream.Close()
	}
}

// shutdown stops the HTTP server and closes infrastructure in reverse
// dependency order.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("http shutdown", applogger.Error(err))
		}
	}
	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.logger.Warn("stream close", applogger.Error(err))
		}
	}
	if err := a.sink.Close(); err != nil {
		a.logger.Warn("history sink close", applogger.Error(err))
	}
	if err := a.posStore.Close(); err != nil {
		a.logger.Warn("position store close", applogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return nil
}
