package syncengine

import (
	"context"

	"github.com/hkdb/gmsync/internal/mailclient"
	"github.com/hkdb/gmsync/internal/models"
	"github.com/hkdb/gmsync/internal/store"
)

// safeDeleteMemberships removes a set of vanished UIDs from one folder
// in a single SafeCommit transaction.
func (e *Engine) safeDeleteMemberships(ctx context.Context, account, folder string, uids []models.UID) bool {
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		return e.store.DeleteMemberships(ctx, tx, account, folder, uids)
	})
}

// persistLinkOnly writes membership rows for UIDs whose G-MSGID is
// already known to this account — no MessageMeta/MessagePart writes,
// since the body already exists under that G-MSGID.
func (e *Engine) persistLinkOnly(ctx context.Context, account, folder string, uids []models.UID, gmsgids map[models.UID]models.GMsgID) bool {
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, uid := range uids {
			m := models.FolderMembership{
				Account:    account,
				FolderName: folder,
				MsgUID:     uid,
				GMsgID:     gmsgids[uid],
			}
			if err := e.store.UpsertMembership(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// fetchAndPersistChunk fetches one chunk's worth of full messages and
// persists meta/parts/membership together in a single transaction.
func (e *Engine) fetchAndPersistChunk(ctx context.Context, sess *Session, folder string, uids []models.UID) bool {
	messages, err := e.SafeFetchBodies(ctx, sess, folder, uids)
	if err != nil {
		e.log.Error().Err(err).Str("account", sess.Account).Str("folder", folder).Msg("chunk fetch failed")
		return false
	}
	return e.persistFetchedChunk(ctx, sess.Account, folder, messages)
}

func (e *Engine) persistFetchedChunk(ctx context.Context, account, folder string, messages []mailclient.FetchedMessage) bool {
	if len(messages) == 0 {
		return true
	}
	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, msg := range messages {
			meta := msg.Meta
			meta.Account = account
			if err := e.store.UpsertMessageMeta(ctx, tx, meta); err != nil {
				return err
			}
			for _, p := range msg.Parts {
				p.Account = account
				if err := e.store.InsertMessagePart(ctx, tx, p); err != nil {
					return err
				}
			}
			membership := msg.Membership
			membership.Account = account
			membership.FolderName = folder
			if err := e.store.UpsertMembership(ctx, tx, membership); err != nil {
				return err
			}
		}
		return nil
	})
}

// updateFlagsChunk fetches and applies flag-only changes for a chunk of
// already-known UIDs, never re-downloading bodies. Flags are written
// only when they actually differ from what is already stored.
func (e *Engine) updateFlagsChunk(ctx context.Context, sess *Session, folder string, uids []models.UID, local map[models.UID]models.FolderMembership) bool {
	remoteFlags, err := sess.Mail.FetchFlags(ctx, uids)
	if err != nil {
		e.log.Error().Err(err).Str("account", sess.Account).Str("folder", folder).Msg("fetch flags failed")
		return false
	}

	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, uid := range uids {
			existing, ok := local[uid]
			newFlags, haveNew := remoteFlags[uid]
			if !ok || !haveNew {
				continue
			}
			if existing.Flags.Equal(newFlags) {
				continue
			}
			existing.Flags = newFlags
			existing.Account = sess.Account
			existing.FolderName = folder
			existing.MsgUID = uid
			if err := e.store.UpsertMembership(ctx, tx, existing); err != nil {
				return err
			}
		}
		return nil
	})
}
