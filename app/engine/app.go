package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/poknet/pokengine/app/engine/types"
	"github.com/poknet/pokengine/pkg/audit"
	"github.com/poknet/pokengine/pkg/auth"
	"github.com/poknet/pokengine/pkg/clock"
	"github.com/poknet/pokengine/pkg/events"
	"github.com/poknet/pokengine/pkg/governance"
	"github.com/poknet/pokengine/pkg/logging"
	"github.com/poknet/pokengine/pkg/params"
	"github.com/poknet/pokengine/pkg/registry"
	"github.com/poknet/pokengine/pkg/selection"
	"github.com/poknet/pokengine/pkg/slashing"
	"github.com/poknet/pokengine/pkg/treasury"
	"github.com/poknet/pokengine/pkg/utils"
)

// depositDisburser routes proposal deposit flows into the treasury. Refunds
// are recorded as withdrawals from the governance pool; burns stay in the
// governance pool so the total ledger balance is conserved.
type depositDisburser struct {
	ledger *treasury.Ledger
	logger *zap.Logger
}

func (d depositDisburser) Refund(to string, amount uint64, now clock.Millis) {
	if amount == 0 {
		return
	}
	// Refunds are disbursements of escrowed funds; emergency mode and the
	// governance pool's daily cap must not swallow them.
	if err := d.ledger.Disburse(treasury.PoolGovernance, amount, "deposit refund", to, now); err != nil {
		d.logger.Error("Failed to refund proposal deposit",
			zap.String("to", to), zap.Uint64("amount", amount), zap.Error(err))
	}
}

func (d depositDisburser) Burn(amount uint64, now clock.Millis) {
	// Burned deposits already sit in the governance pool from escrow, so a
	// burn is a no-op transfer. Logged for the record.
	if amount > 0 {
		d.logger.Info("Proposal deposit burned", zap.Uint64("amount", amount))
	}
}

// Initialize wires the engine components together. The order matters:
// parameters first, then the registry and treasury that read them, then the
// engines that mutate both.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	clk := clock.System{}
	now := clk.Now()

	store := params.NewStore(logger)

	recorder := audit.NewRecorder(logger)
	store.SetChangeSink(recorder)

	// Optional ClickHouse persistence for the audit trail.
	var sink *audit.ClickHouseSink
	if utils.Env("AUDIT_CLICKHOUSE_ENABLED", "false") == "true" {
		sink, err = audit.NewClickHouseSink(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize audit sink - entries stay in memory only", zap.Error(err))
			sink = nil
		} else {
			recorder.SetSink(sink)
		}
	}

	bootstrapEnd := now + store.MustGet(params.KeyBootstrapDuration)
	reg := registry.New(logger, store, bootstrapEnd)

	ledger := treasury.NewLedger(logger, store)
	ledger.SetRecorder(recorder)

	slasher := slashing.NewEngine(logger, store, reg)
	slasher.SetRecorder(recorder)
	slasher.SetStakeSink(func(amount uint64, ts clock.Millis) {
		if err := ledger.Deposit(treasury.PoolInsurance, amount, "slashed stake", ts); err != nil {
			logger.Error("Failed to deposit slashed stake", zap.Error(err))
		}
	})

	proposals := governance.New(logger, store, reg)
	proposals.SetRecorder(recorder)
	proposals.SetDisburser(depositDisburser{ledger: ledger, logger: logger})
	proposals.RegisterExecutor(governance.TypeParameterUpdate, func(p *governance.Proposal, ts clock.Millis) error {
		return store.Update(p.TargetKey, p.TargetValue, p.ID, ts)
	})

	// Escrowed deposits land in the governance pool on creation. The
	// lifecycle only tells us about disbursements, so escrow itself is wired
	// through the controller's create handler.

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	selector := selection.New(logger, store, reg, selection.NewWeightProportional(rng))

	issuer := auth.NewIssuer([]byte(utils.Env("SESSION_SECRET", "change-me-please")))

	// Optional Redis stream feed for external consumers.
	var publisher *events.Publisher
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		publisher, err = events.New(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis publisher - stream events disabled", zap.Error(err))
			publisher = nil
		} else {
			go publisher.Run(ctx, recorder)
		}
	} else {
		logger.Info("Redis disabled - stream events will not be available")
	}

	app := &types.App{
		Clock:     clk,
		Params:    store,
		Registry:  reg,
		Slashing:  slasher,
		Proposals: proposals,
		Treasury:  ledger,
		Selector:  selector,
		Auth:      issuer,
		Recorder:  recorder,
		AuditSink: sink,
		Events:    publisher,
		Logger:    logger,
	}

	return app
}

// cronLogger adapts zap to the cron.Logger interface used by the recovery
// middleware.
type cronLogger struct{ logger *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Sugar().Infow(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

// SetupScheduler registers the periodic sweeps: yield accrual, proposal
// finalization and execution, and suspension expiry. CRON_SPEC uses the
// seconds field; the default runs once a minute.
func SetupScheduler(app *types.App) error {
	logger := cronLogger{logger: app.Logger}
	app.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger)))

	spec := utils.Env("CRON_SPEC", "0 * * * * *")

	_, err := app.Cron.AddFunc(spec, func() {
		now := app.Now()

		if accrued, err := app.Treasury.AccrueAllDue(now); err != nil {
			app.Logger.Warn("Yield accrual sweep failed", zap.Error(err))
		} else if accrued > 0 {
			app.Logger.Info("Yield accrued", zap.Uint64("amount", accrued))
		}

		if n := app.Proposals.FinalizeDue(now); n > 0 {
			app.Logger.Info("Proposals finalized", zap.Int("count", n))
		}
		if n := app.Proposals.ExecuteDue(now); n > 0 {
			app.Logger.Info("Proposals executed", zap.Int("count", n))
		}

		if n, err := app.Registry.ReactivateDue(now); err != nil {
			app.Logger.Warn("Suspension sweep failed", zap.Error(err))
		} else if n > 0 {
			app.Logger.Info("Validators reactivated", zap.Int("count", n))
		}
	})
	return err
}
