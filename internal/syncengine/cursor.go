package syncengine

import (
	"context"
	"fmt"

	"github.com/hkdb/gmsync/internal/models"
	"github.com/hkdb/gmsync/internal/store"
)

// gateResult is the outcome of checkUIDValidity.
type gateResult int

const (
	gateOK gateResult = iota
	gateResyncRequired
)

// checkUIDValidity implements the UIDVALIDITY gate: no cursor yet
// accepts any server value; a server value greater than or equal to
// cached proceeds normally; a server value strictly less than cached
// means the local UID space is invalid and a resync is required.
func (e *Engine) checkUIDValidity(ctx context.Context, sess *Session, folder string, serverUIDValidity models.UIDValidity) (gateResult, error) {
	cached, err := e.store.LoadCursor(ctx, sess.Account, folder)
	if err == store.ErrNotFound {
		return gateOK, nil
	}
	if err != nil {
		return gateOK, fmt.Errorf("load cursor: %w", err)
	}

	if serverUIDValidity >= cached.UIDValidity {
		return gateOK, nil
	}
	return gateResyncRequired, nil
}

// advanceCursor enforces monotone highestmodseq: a lower value for the
// same UIDVALIDITY epoch is a no-op rather than an error, since a stale
// status response should never regress a cursor that moved forward in
// the meantime. A UIDVALIDITY change always writes through, since that
// is the "replaced entirely" reset case.
func (e *Engine) advanceCursor(ctx context.Context, account, folder string, uidValidity models.UIDValidity, newHighestModSeq models.ModSeq) error {
	current, err := e.store.LoadCursor(ctx, account, folder)
	if err != nil && err != store.ErrNotFound {
		return err
	}
	if err == nil && uidValidity == current.UIDValidity && newHighestModSeq < current.HighestModSeq {
		return nil
	}

	committed := e.store.WithTx(ctx, func(tx *store.Tx) error {
		return e.store.UpsertCursor(ctx, tx, models.FolderCursor{
			Account:       account,
			FolderName:    folder,
			UIDValidity:   uidValidity,
			HighestModSeq: newHighestModSeq,
		})
	})
	if !committed {
		e.swallowedCommits++
		return fmt.Errorf("cursor commit swallowed for %s/%s", account, folder)
	}
	return nil
}
