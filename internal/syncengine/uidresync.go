package syncengine

import (
	"context"
	"fmt"

	"github.com/hkdb/gmsync/internal/mailclient"
	"github.com/hkdb/gmsync/internal/models"
	"github.com/hkdb/gmsync/internal/store"
)

// resyncUIDs repairs FolderMembership rows after a UIDVALIDITY change.
// It never re-downloads bodies: every pre-existing
// message is matched by G-MSGID and has its stored UID rewritten to the
// server's new one; messages no longer present under the new
// UIDVALIDITY epoch are deleted; the cursor is replaced wholesale as
// the final step. Messages the server reports that are not already
// known locally are deliberately left alone — they are picked up by the
// ordinary Reconciler/Deduper full-fetch path that resumes right after
// this call returns.
func (e *Engine) resyncUIDs(ctx context.Context, sess *Session, folder string, selected mailclient.SelectedFolder) error {
	serverUIDs, err := sess.Mail.AllUIDs(ctx)
	if err != nil {
		return fmt.Errorf("all uids: %w", err)
	}
	serverGMsgIDs, err := sess.Mail.FetchGMsgIDs(ctx, serverUIDs)
	if err != nil {
		return fmt.Errorf("fetch g_msgids: %w", err)
	}

	local, err := e.store.LocalUIDs(ctx, sess.Account, folder)
	if err != nil {
		return fmt.Errorf("local uids: %w", err)
	}
	localByGMsgID := make(map[models.GMsgID]models.UID, len(local))
	for uid, m := range local {
		localByGMsgID[m.GMsgID] = uid
	}

	type rewrite struct {
		gmsgid models.GMsgID
		newUID models.UID
	}
	var rewrites []rewrite
	seenLocally := make(map[models.GMsgID]bool, len(local))
	for uid, gmsgid := range serverGMsgIDs {
		if _, known := localByGMsgID[gmsgid]; known {
			rewrites = append(rewrites, rewrite{gmsgid: gmsgid, newUID: uid})
			seenLocally[gmsgid] = true
		}
	}

	for _, rwChunk := range chunk(rewrites, e.chunkSize) {
		committed := e.store.WithTx(ctx, func(tx *store.Tx) error {
			for _, rw := range rwChunk {
				if err := e.store.RewriteMembershipUID(ctx, tx, sess.Account, folder, rw.gmsgid, rw.newUID); err != nil {
					return err
				}
			}
			return nil
		})
		if !committed {
			e.swallowedCommits++
		}
	}

	var stale []models.UID
	for uid, m := range local {
		if !seenLocally[m.GMsgID] {
			stale = append(stale, uid)
		}
	}

	committed := e.store.WithTx(ctx, func(tx *store.Tx) error {
		if len(stale) > 0 {
			if err := e.store.DeleteMemberships(ctx, tx, sess.Account, folder, stale); err != nil {
				return err
			}
		}
		return e.store.UpsertCursor(ctx, tx, models.FolderCursor{
			Account:       sess.Account,
			FolderName:    folder,
			UIDValidity:   selected.UIDValidity,
			HighestModSeq: models.ModSeq(selected.HighestModSeq),
		})
	})
	if !committed {
		e.swallowedCommits++
		return fmt.Errorf("uid resync final commit swallowed for %s/%s", sess.Account, folder)
	}
	return nil
}

