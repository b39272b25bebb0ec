package types

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/poknet/pokengine/pkg/audit"
	"github.com/poknet/pokengine/pkg/auth"
	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/events"
	"github.com/poknet/pokengine/pkg/governance"
	"github.com/poknet/pokengine/pkg/params"
	"github.com/poknet/pokengine/pkg/registry"
	"github.com/poknet/pokengine/pkg/selection"
	"github.com/poknet/pokengine/pkg/slashing"
	"github.com/poknet/pokengine/pkg/treasury"
)

// App holds the engine's components and the shared runtime pieces (logger,
// HTTP server, cron scheduler). Everything is wired once in Initialize and
// read-only afterwards.
type App struct {
	Clock     clock.Clock
	Params    *params.Store
	Registry  *registry.Registry
	Slashing  *slashing.Engine
	Proposals *governance.Lifecycle
	Treasury  *treasury.Ledger
	Selector  *selection.Selector
	Auth      *auth.Issuer
	Recorder  *audit.Recorder

	// AuditSink is the optional ClickHouse persistence for audit entries.
	AuditSink *audit.ClickHouseSink
	// Events is the optional Redis stream publisher. Nil when disabled.
	Events *events.Publisher

	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
	// Cron runs the periodic sweeps (yield accrual, proposal finalization,
	// suspension expiry).
	Cron *cron.Cron
}

// Now reads the injected clock.
func (a *App) Now() clock.Millis { return a.Clock.Now() }

// StartCron starts the sweep scheduler.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("Sweep scheduler started")
}

// StopCron stops the scheduler and waits for in-flight jobs.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
}

// Start starts the application and blocks until the context is cancelled.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.StopCron()

	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}
	if a.AuditSink != nil {
		if err := a.AuditSink.Close(); err != nil {
			a.Logger.Error("Failed to close audit sink", zap.Error(err))
		}
	}

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
