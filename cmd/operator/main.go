// Command operator runs the lottery protocol's off-chain coordination
// daemon: it drives both games' draw state machines on a schedule,
// indexes and settles finalized draws, and serves the read-only HTTP API.
// Grounded on the teacher's cmd/coordinator/main.go for its flag/signal/
// shutdown shape, generalized from a single HTTPS server into a daemon
// that also runs a cron-scheduled draw loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/robfig/cron/v3"

	"github.com/rolldown-labs/lottery-protocol/internal/botstate"
	"github.com/rolldown-labs/lottery-protocol/internal/config"
	"github.com/rolldown-labs/lottery-protocol/internal/draw"
	"github.com/rolldown-labs/lottery-protocol/internal/httpapi"
	"github.com/rolldown-labs/lottery-protocol/internal/indexer"
	"github.com/rolldown-labs/lottery-protocol/internal/ledger"
	"github.com/rolldown-labs/lottery-protocol/internal/ledger/postgres"
	"github.com/rolldown-labs/lottery-protocol/internal/logging"
	"github.com/rolldown-labs/lottery-protocol/internal/protoerr"
	"github.com/rolldown-labs/lottery-protocol/internal/randomness"
	"github.com/rolldown-labs/lottery-protocol/internal/webhook"
)

// Exit codes per spec.md §6.
const (
	exitClean               = 0
	exitFatalConfig         = 1
	exitUnrecoverableChain  = 2
	exitIndexerHashMismatch = 3
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: operator <run|dry-run|set-webhook|migrate|verify> [flags]")
		os.Exit(exitFatalConfig)
	}

	var code int
	switch os.Args[1] {
	case "run":
		code = runDaemon(false)
	case "dry-run":
		code = runDaemon(true)
	case "set-webhook":
		code = setWebhook(os.Args[2:])
	case "migrate":
		code = runMigrate(os.Args[2:])
	case "verify":
		code = runVerify(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		code = exitFatalConfig
	}
	os.Exit(code)
}

func setWebhook(args []string) int {
	fs := flag.NewFlagSet("set-webhook", flag.ExitOnError)
	url := fs.String("url", "", "webhook URL")
	token := fs.String("token", "", "bot token (not transmitted or stored; only its presence is logged)")
	fs.Parse(args)

	if *url == "" {
		fmt.Fprintln(os.Stderr, "set-webhook requires -url")
		return exitFatalConfig
	}
	log := logging.NewDefault("operator")
	log.WithField("url", *url).WithField("has_token", *token != "").Info("webhook configured")
	return exitClean
}

func runMigrate(args []string) int {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dsn := fs.String("dsn", "", "postgres DSN")
	dir := fs.String("dir", "migrations", "migrations directory")
	down := fs.Bool("down", false, "roll back instead of applying")
	fs.Parse(args)

	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "migrate requires -dsn")
		return exitFatalConfig
	}

	m, err := migrate.New("file://"+*dir, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate init: %v\n", err)
		return exitFatalConfig
	}
	if *down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil && err != migrate.ErrNoChange {
		fmt.Fprintf(os.Stderr, "migrate run: %v\n", err)
		return exitFatalConfig
	}
	return exitClean
}

// runVerify independently recomputes a finalized draw's verification hash
// from the stored ticket records and compares it against the hash recorded
// in the DrawRecord, exactly the check spec.md §4.5 expects an auditor (or
// the chain, on submission) to perform. This is the one call site that
// exercises exitIndexerHashMismatch: the scheduler loop in runDaemon never
// exits the process over a single game's indexing trouble (it retries on
// the next tick instead), so the exit code belongs to this standalone,
// single-shot command rather than the daemon.
func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	dsn := fs.String("dsn", "", "postgres DSN")
	game := fs.String("game", "main", "game id (main|quickpick)")
	drawID := fs.Uint64("draw", 0, "draw id to verify")
	fs.Parse(args)

	if *dsn == "" || *drawID == 0 {
		fmt.Fprintln(os.Stderr, "verify requires -dsn and -draw")
		return exitFatalConfig
	}
	gameID := ledger.GameMain
	if *game == "quickpick" {
		gameID = ledger.GameQuickPick
	}

	log := logging.NewDefault("operator")
	ctx := context.Background()

	store, err := postgres.Open(ctx, postgres.Config{DSN: *dsn})
	if err != nil {
		log.WithError(err).Error("connect store")
		return exitFatalConfig
	}
	defer store.Close()

	rec, err := store.GetDrawRecord(ctx, gameID, *drawID)
	if err != nil {
		log.WithError(err).Error("load draw record")
		return exitFatalConfig
	}

	scan, err := indexer.Scan(ctx, store, gameID, *drawID, rec.WinningNumbers, rec.Nonce, pickCountFor(gameID))
	if err != nil {
		log.WithError(err).Error("recompute scan")
		return exitFatalConfig
	}

	if scan.VerificationHash != rec.VerificationHash {
		log.WithField("game", string(gameID)).WithField("draw_id", *drawID).Error("verification hash mismatch")
		return exitIndexerHashMismatch
	}
	log.WithField("game", string(gameID)).WithField("draw_id", *drawID).Info("verification hash confirmed")
	return exitClean
}

func pickCountFor(gameID ledger.GameID) int {
	if gameID == ledger.GameQuickPick {
		return ledger.QPPickCount
	}
	return ledger.MainPickCount
}

// systemClock implements draw.Clock against wall time and a slot counter
// approximated from Unix time (no real chain connection is available in
// this retrieval pack; operators wire a real slot source at the Adapter
// boundary instead).
type systemClock struct{}

func (systemClock) NowUnix() int64     { return time.Now().Unix() }
func (systemClock) CurrentSlot() uint64 { return uint64(time.Now().Unix()) }

func runDaemon(dryRun bool) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return exitFatalConfig
	}

	log := logging.New("operator", logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := buildStore(ctx, dryRun, cfg)
	if err != nil {
		log.WithError(err).Error("build store")
		return exitFatalConfig
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	led := ledger.New(store)
	rng := randomness.NewMockAdapter()
	clock := systemClock{}
	machine := draw.New(led, rng, clock)

	var notifier *webhook.Notifier
	if dryRun {
		notifier = webhook.New("")
	} else {
		notifier = webhook.New(cfg.Webhook.URL)
	}

	var bot *botstate.Store
	if !dryRun && cfg.Redis.Addr != "" {
		bot, err = botstate.Open(ctx, botstate.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			log.WithError(err).Error("connect redis")
			return exitFatalConfig
		}
		defer bot.Close()
	}

	c := cron.New()
	games := []ledger.GameID{ledger.GameMain, ledger.GameQuickPick}
	for _, gameID := range games {
		gameID := gameID
		_, err := c.AddFunc("@every 1m", func() {
			runGameCycle(ctx, machine, store, notifier, bot, log, gameID)
		})
		if err != nil {
			log.WithError(err).Error("schedule game cycle")
			return exitFatalConfig
		}
	}
	c.Start()
	defer c.Stop()

	srv := httpapi.New(led, log, cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst)
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", httpSrv.Addr).Info("http api listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutdown requested")
	case err := <-serveErr:
		log.WithError(err).Error("http server error")
		return exitUnrecoverableChain
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	return exitClean
}

func buildStore(ctx context.Context, dryRun bool, cfg *config.Config) (ledger.Store, error) {
	if dryRun {
		return ledger.NewMemoryStore(), nil
	}
	return postgres.Open(ctx, postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
}

// runGameCycle advances one game by exactly one phase transition per
// invocation, matching however far the game's current phase allows; a
// full Open->Finalized cycle therefore spans several scheduler ticks,
// each resuming from the phase persisted in the ledger store.
func runGameCycle(ctx context.Context, machine *draw.Machine, store ledger.Store, notifier *webhook.Notifier, bot *botstate.Store, log *logging.Logger, gameID ledger.GameID) {
	state, err := loadGameState(ctx, store, gameID)
	if err != nil {
		log.WithField("game", string(gameID)).WithError(err).Warn("load game state")
		return
	}

	switch state.Phase {
	case ledger.PhaseOpen:
		if _, err := machine.CommitDraw(ctx, gameID, string(gameID)); err != nil {
			if err != protoerr.ErrDrawNotReady {
				log.WithField("game", string(gameID)).WithError(err).Warn("commit draw")
			}
		}
	case ledger.PhaseCommitted:
		if _, _, err := machine.ExecuteDraw(ctx, gameID); err != nil {
			if err == protoerr.ErrRandomnessNotReady {
				return
			}
			log.WithField("game", string(gameID)).WithError(err).Error("execute draw")
			if _, abortErr := machine.AbortDraw(ctx, gameID); abortErr != nil {
				log.WithField("game", string(gameID)).WithError(abortErr).Error("abort draw")
			}
			notifyFailure(ctx, notifier, gameID, webhook.KindRandomnessStall, err)
		}
	case ledger.PhaseExecuted:
		advanceIndexed(ctx, machine, store, notifier, bot, log, gameID, state)
	case ledger.PhaseIndexed:
		advanceFinalized(ctx, machine, store, notifier, bot, log, gameID, state)
	}
}

func loadGameState(ctx context.Context, store ledger.Store, gameID ledger.GameID) (ledger.GameState, error) {
	return store.LoadGame(ctx, gameID)
}

func advanceIndexed(ctx context.Context, machine *draw.Machine, store ledger.Store, notifier *webhook.Notifier, bot *botstate.Store, log *logging.Logger, gameID ledger.GameID, state ledger.GameState) {
	probs := tierProbsFor(gameID)
	nonce := state.CurrentDrawID // deterministic nonce; advanceFinalized re-scans with the same value
	_, _, err := machine.IndexDraw(ctx, gameID, nonce, probs)
	if err != nil {
		log.WithField("game", string(gameID)).WithError(err).Error("index draw")
		notifyFailure(ctx, notifier, gameID, webhook.KindHashMismatch, err)
		if bot != nil {
			bot.IncrementFailures(ctx, string(gameID))
		}
	}
}

func advanceFinalized(ctx context.Context, machine *draw.Machine, store ledger.Store, notifier *webhook.Notifier, bot *botstate.Store, log *logging.Logger, gameID ledger.GameID, state ledger.GameState) {
	scan, err := indexer.Scan(ctx, store, gameID, state.CurrentDrawID, state.WinningNumbers, state.CurrentDrawID, state.PickCount)
	if err != nil {
		log.WithField("game", string(gameID)).WithError(err).Error("re-scan for finalize")
		return
	}
	sub := draw.FinalizeSubmission{
		TierCounts:          scan.TierCounts,
		Nonce:               scan.Nonce,
		VerificationHash:    scan.VerificationHash,
		TotalTicketsScanned: scan.TotalTicketsScanned,
	}
	var seed [32]byte
	_, rec, err := machine.FinalizeDraw(ctx, gameID, sub, tierProbsFor(gameID), seed)
	if err != nil {
		if err == protoerr.ErrVerificationHashMismatch {
			notifyFailure(ctx, notifier, gameID, webhook.KindHashMismatch, err)
		}
		log.WithField("game", string(gameID)).WithError(err).Error("finalize draw")
		return
	}
	if bot != nil {
		bot.ResetFailures(ctx, string(gameID))
	}
	kind := webhook.KindDrawFinalized
	if rec.RolldownWasActive {
		kind = webhook.KindRolldownActive
	}
	notifyFailure(ctx, notifier, gameID, kind, nil)
}

func notifyFailure(ctx context.Context, notifier *webhook.Notifier, gameID ledger.GameID, kind string, err error) {
	msg := "ok"
	if err != nil {
		msg = err.Error()
	}
	_ = notifier.Notify(ctx, webhook.Event{
		Kind:      kind,
		GameID:    string(gameID),
		Message:   msg,
		Timestamp: time.Now(),
	})
}

func tierProbsFor(gameID ledger.GameID) []draw.TierProbability {
	if gameID == ledger.GameQuickPick {
		return []draw.TierProbability{
			{MatchCount: 5, Numerator: 1, Denominator: 324_632},
			{MatchCount: 4, Numerator: 150, Denominator: 324_632},
			{MatchCount: 3, Numerator: 4_500, Denominator: 324_632},
		}
	}
	return []draw.TierProbability{
		{MatchCount: 6, Numerator: 1, Denominator: 9_366_819},
		{MatchCount: 5, Numerator: 240, Denominator: 9_366_819},
		{MatchCount: 4, Numerator: 11_400, Denominator: 9_366_819},
		{MatchCount: 3, Numerator: 197_600, Denominator: 9_366_819},
		{MatchCount: 2, Numerator: 1_476_700, Denominator: 9_366_819},
	}
}
