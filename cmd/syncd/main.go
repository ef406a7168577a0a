// Command syncd is the headless polling daemon: the thinnest possible
// driver around internal/syncengine, flag-free and environment
// configured for service startup.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hkdb/gmsync/internal/accounts"
	"github.com/hkdb/gmsync/internal/blobstore"
	"github.com/hkdb/gmsync/internal/config"
	"github.com/hkdb/gmsync/internal/logging"
	"github.com/hkdb/gmsync/internal/mailclient"
	"github.com/hkdb/gmsync/internal/models"
	"github.com/hkdb/gmsync/internal/store"
	"github.com/hkdb/gmsync/internal/syncengine"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "syncd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(cfg.LogLevel, cfg.Environment != "production")
	log := logging.WithComponent("syncd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DataDir + "/gmsync.db")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	db.StartCheckpointRoutine(ctx)

	st := store.New(db)

	blobs, err := blobstore.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	accts, err := accounts.New(st, db, cfg.EncryptionKeyBase64, blobs)
	if err != nil {
		return fmt.Errorf("init accounts: %w", err)
	}

	engine := syncengine.New(st, cfg.ChunkSize)

	log.Info().Dur("pollInterval", cfg.PollInterval).Msg("syncd starting")

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	runOnce(ctx, log, db, st, accts, engine)
	for {
		select {
		case <-ticker.C:
			runOnce(ctx, log, db, st, accts, engine)
		case <-ctx.Done():
			log.Info().Msg("syncd shutting down")
			return nil
		}
	}
}

// runOnce spawns one goroutine per enabled account — parallel across
// accounts, sequential within one — each holding its own MailClient for
// the duration of its sync task; all of them share st and its pool.
func runOnce(ctx context.Context, log zerolog.Logger, db *store.DB, st *store.Store, accts *accounts.Accounts, engine *syncengine.Engine) {
	accountList, err := st.ListEnabledAccounts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list accounts failed")
		return
	}

	// One goroutine per account issues queries concurrently, so the idle
	// pool needs to scale with this poll's account count rather than stay
	// fixed at BaseIdleConns.
	db.UpdateIdleConns(len(accountList))

	var wg sync.WaitGroup
	for _, acct := range accountList {
		wg.Add(1)
		go func(acct models.Account) {
			defer wg.Done()
			syncAccount(ctx, log, accts, engine, acct)
		}(acct)
	}
	wg.Wait()
}

func syncAccount(ctx context.Context, log zerolog.Logger, accts *accounts.Accounts, engine *syncengine.Engine, acct models.Account) {
	// taskID ties together every log line from one account's sync task
	// this poll cycle, since runOnce fans out one goroutine per account.
	taskID := uuid.NewString()
	log = log.With().Str("task", taskID).Logger()

	mail, err := accts.Session(ctx, acct.Email)
	if err != nil {
		log.Error().Err(err).Str("account", acct.Email).Msg("failed to connect")
		return
	}
	defer mail.Close()

	sess := &syncengine.Session{
		Account: acct.Email,
		Folders: acct.SyncFolders,
		Mail:    mail,
		Reconnect: func(ctx context.Context) (mailclient.MailClient, error) {
			return accts.Session(ctx, acct.Email)
		},
	}

	if !acct.InitialSyncDone {
		if err := engine.InitialSync(ctx, sess); err != nil {
			log.Error().Err(err).Str("account", acct.Email).Msg("initial sync failed")
			return
		}
	}
	if err := engine.IncrementalSync(ctx, sess); err != nil {
		log.Error().Err(err).Str("account", acct.Email).Msg("incremental sync failed")
	}
}
