package syncengine

import (
	"context"
	"fmt"

	"github.com/hkdb/gmsync/internal/models"
	"github.com/hkdb/gmsync/internal/store"
)

// incrementalSyncFolder polls one folder for everything that changed
// since its cached cursor: select, validate UIDVALIDITY, run the
// CONDSTORE-style search against the cached cursor, split the result
// into new vs. updated, persist each in appropriately-sized chunks,
// reconcile deletions, and finally advance the cursor.
func (e *Engine) incrementalSyncFolder(ctx context.Context, sess *Session, folder string) error {
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

	cached, err := e.store.LoadCursor(ctx, sess.Account, folder)
	if err != nil && err != store.ErrNotFound {
		return fmt.Errorf("load cursor: %w", err)
	}
	cachedHighestModSeq := cached.HighestModSeq
	if err == store.ErrNotFound {
		cachedHighestModSeq = 0
	}

	changed, err := sess.Mail.SearchModSeqGreaterThan(ctx, cachedHighestModSeq)
	if err != nil {
		return fmt.Errorf("search modseq: %w", err)
	}

	local, err := e.store.LocalUIDs(ctx, sess.Account, folder)
	if err != nil {
		return fmt.Errorf("local uids: %w", err)
	}

	var newUIDs, updatedUIDs []models.UID
	for _, uid := range changed {
		if _, ok := local[uid]; ok {
			updatedUIDs = append(updatedUIDs, uid)
		} else {
			newUIDs = append(newUIDs, uid)
		}
	}

	gmsgids, err := sess.Mail.FetchGMsgIDs(ctx, newUIDs)
	if err != nil {
		return fmt.Errorf("fetch g_msgids: %w", err)
	}
	known, err := e.store.KnownGMsgIDs(ctx, sess.Account)
	if err != nil {
		return fmt.Errorf("known g_msgids: %w", err)
	}
	fullDownload, linkOnly := Dedup(newUIDs, gmsgids, known)

	failed := false
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

	updatedChunkSize := e.chunkSize * updatedChunkMultiplier
	for _, chunk := range chunkUIDs(updatedUIDs, updatedChunkSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.updateFlagsChunk(ctx, sess, folder, chunk, local) {
			e.swallowedCommits++
			failed = true
		}
	}

	serverUIDs, err := sess.Mail.AllUIDs(ctx)
	if err != nil {
		return fmt.Errorf("all uids: %w", err)
	}
	localUIDs := make([]models.UID, 0, len(local))
	for uid := range local {
		localUIDs = append(localUIDs, uid)
	}
	toDelete, _ := Reconcile(serverUIDs, localUIDs)
	if len(toDelete) > 0 {
		if !e.safeDeleteMemberships(ctx, sess.Account, folder, toDelete) {
			e.swallowedCommits++
			failed = true
		}
	}

	if failed {
		// A discarded batch leaves the cursor where it was, so the next
		// poll observes the same changes again.
		return nil
	}
	return e.advanceCursor(ctx, sess.Account, folder, selected.UIDValidity, models.ModSeq(selected.HighestModSeq))
}
