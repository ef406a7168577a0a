// Package syncengine is the core this whole system exists to build: an
// algorithm that reconciles a remote Gmail-style IMAP mailbox against a
// local relational store, deduplicating message bodies across folders
// and surviving partial failures. It consumes the mailclient.MailClient
// and store.Store collaborators only through their interfaces.
package syncengine

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/hkdb/gmsync/internal/logging"
	"github.com/hkdb/gmsync/internal/mailclient"
	"github.com/hkdb/gmsync/internal/models"
	"github.com/hkdb/gmsync/internal/store"
)

// DefaultChunkSize bounds how many UIDs are fetched/persisted per
// transaction.
const DefaultChunkSize = 200

// updatedChunkMultiplier is how much larger the "updated" (flags-only)
// chunk is than the "new" (full body) chunk, since only flags, not
// bodies, cross the wire for an already-known message.
const updatedChunkMultiplier = 5

// Session bundles one account's mail connection for the duration of a
// single sync task: no MailClient is shared across concurrently-syncing
// accounts. The Engine and its Store are shared by all sessions.
type Session struct {
	Account string
	Folders []string // declared priority order
	Mail    mailclient.MailClient
	// Reconnect obtains a fresh MailClient for Account, already logged
	// in and unselected — the single reconnect-and-retry path in
	// fetch.go calls this instead of reusing the dead connection.
	Reconnect func(ctx context.Context) (mailclient.MailClient, error)
}

// Engine drives InitialSync and IncrementalSync over a Session.
type Engine struct {
	store     *store.Store
	chunkSize int
	log       zerolog.Logger

	swallowedCommits int // see design note on SafeCommit observability
}

// New constructs an Engine bound to st, fetching/persisting in chunks
// of chunkSize.
func New(st *store.Store, chunkSize int) *Engine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Engine{
		store:     st,
		chunkSize: chunkSize,
		log:       logging.WithComponent("syncengine"),
	}
}

// SwallowedCommits returns how many batches this Engine has logged and
// discarded so far: SafeCommit failures, plus chunks dropped because
// their body or flag fetch failed. It keeps the log-and-continue policy
// observable.
func (e *Engine) SwallowedCommits() int { return e.swallowedCommits }

// InitialSync seeds the local store from empty or partial state for
// every folder in sess.Folders, in declared priority order.
func (e *Engine) InitialSync(ctx context.Context, sess *Session) error {
	for _, folder := range sess.Folders {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.initialSyncFolder(ctx, sess, folder); err != nil {
			e.log.Error().Err(err).Str("account", sess.Account).Str("folder", folder).Msg("initial sync folder failed")
			return fmt.Errorf("initial sync %s: %w", folder, err)
		}
	}

	if err := e.store.SetInitialSyncDone(ctx, sess.Account); err != nil {
		return fmt.Errorf("mark initial sync done: %w", err)
	}
	return nil
}

func (e *Engine) initialSyncFolder(ctx context.Context, sess *Session, folder string) error {
	selected, err := sess.Mail.SelectFolder(ctx, folder)
	if err != nil {
		return fmt.Errorf("select folder: %w", err)
	}

	gate, err := e.checkUIDValidity(ctx, sess, folder, selected.UIDValidity)
	if err != nil {
		return fmt.Errorf("uidvalidity gate: %w", err)
	}
	if gate == gateResyncRequired {
		if err := e.resyncUIDs(ctx, sess, folder, selected); err != nil {
			return fmt.Errorf("uid resync: %w", err)
		}
	}

	serverUIDs, err := sess.Mail.AllUIDs(ctx)
	if err != nil {
		return fmt.Errorf("all uids: %w", err)
	}

	existing, err := e.store.LocalUIDs(ctx, sess.Account, folder)
	if err != nil {
		return fmt.Errorf("local uids: %w", err)
	}
	existingUIDs := make([]models.UID, 0, len(existing))
	for uid := range existing {
		existingUIDs = append(existingUIDs, uid)
	}

	toDelete, toFetch := Reconcile(serverUIDs, existingUIDs)

	// warn_uids: vanished between restarts, cleaned up unconditionally.
	failed := false
	if len(toDelete) > 0 {
		e.log.Warn().Str("account", sess.Account).Str("folder", folder).Int("count", len(toDelete)).Msg("removing memberships absent from server")
		if !e.safeDeleteMemberships(ctx, sess.Account, folder, toDelete) {
			e.swallowedCommits++
			failed = true
		}
	}

	sort.Slice(toFetch, func(i, j int) bool { return toFetch[i] < toFetch[j] })

	gmsgids, err := sess.Mail.FetchGMsgIDs(ctx, toFetch)
	if err != nil {
		return fmt.Errorf("fetch g_msgids: %w", err)
	}
	known, err := e.store.KnownGMsgIDs(ctx, sess.Account)
	if err != nil {
		return fmt.Errorf("known g_msgids: %w", err)
	}

	fullDownload, linkOnly := Dedup(toFetch, gmsgids, known)

	if len(linkOnly) > 0 {
		if !e.persistLinkOnly(ctx, sess.Account, folder, linkOnly, gmsgids) {
			e.swallowedCommits++
			failed = true
		}
	}

	for _, chunk := range chunkUIDs(fullDownload, e.chunkSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.fetchAndPersistChunk(ctx, sess, folder, chunk) {
			e.swallowedCommits++
			failed = true
		}
	}
	if failed {
		// A discarded batch leaves the cursor where it was.
		return nil
	}

	existingCursor, err := e.store.LoadCursor(ctx, sess.Account, folder)
	if err != nil && err != store.ErrNotFound {
		return fmt.Errorf("load cursor: %w", err)
	}
	if err == store.ErrNotFound {
		return e.advanceCursor(ctx, sess.Account, folder, selected.UIDValidity, models.ModSeq(selected.HighestModSeq))
	}
	if existingCursor.HighestModSeq < models.ModSeq(selected.HighestModSeq) {
		return e.incrementalSyncFolder(ctx, sess, folder)
	}
	return nil
}

// IncrementalSync polls every folder in sess.Folders for changes since
// its cached cursor, skipping folders whose server HIGHESTMODSEQ has
// not moved.
func (e *Engine) IncrementalSync(ctx context.Context, sess *Session) error {
	cursors, err := e.store.LoadCursors(ctx, sess.Account, sess.Folders)
	if err != nil {
		return fmt.Errorf("load cursors: %w", err)
	}

	var needsUpdate []string
	for _, folder := range sess.Folders {
		status, err := sess.Mail.FolderStatus(ctx, folder)
		if err != nil {
			e.log.Warn().Err(err).Str("account", sess.Account).Str("folder", folder).Msg("folder status failed, skipping")
			continue
		}
		if models.ModSeq(status.HighestModSeq) > cursors[folder].HighestModSeq {
			needsUpdate = append(needsUpdate, folder)
		}
	}

	for _, folder := range needsUpdate {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.incrementalSyncFolder(ctx, sess, folder); err != nil {
			e.log.Error().Err(err).Str("account", sess.Account).Str("folder", folder).Msg("incremental sync folder failed")
			return fmt.Errorf("incremental sync %s: %w", folder, err)
		}
	}
	return nil
}
