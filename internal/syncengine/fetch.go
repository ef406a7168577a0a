package syncengine

import (
	"context"
	"fmt"

	"github.com/hkdb/gmsync/internal/mailclient"
	"github.com/hkdb/gmsync/internal/models"
)

// SafeFetchBodies fetches a chunk of full messages with an explicit
// reconnect-as-control-flow policy: an encoding error is fatal and
// returned immediately; any other failure triggers exactly one
// reconnect (via sess.Reconnect) and retry; a second failure
// propagates.
func (e *Engine) SafeFetchBodies(ctx context.Context, sess *Session, folder string, uids []models.UID) ([]mailclient.FetchedMessage, error) {
	outcome := sess.Mail.FetchUIDs(ctx, folder, uids)
	if outcome.Err == nil {
		return outcome.Messages, nil
	}
	if outcome.IsEncoding() {
		return nil, fmt.Errorf("encoding error fetching %s: %w", folder, outcome.Err)
	}

	e.log.Warn().Err(outcome.Err).Str("account", sess.Account).Str("folder", folder).Msg("transient fetch failure, reconnecting")

	newClient, err := sess.Reconnect(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconnect after transient failure: %w", err)
	}
	sess.Mail = newClient

	if _, err := sess.Mail.SelectFolder(ctx, folder); err != nil {
		return nil, fmt.Errorf("re-select folder after reconnect: %w", err)
	}

	retry := sess.Mail.FetchUIDs(ctx, folder, uids)
	if retry.Err == nil {
		return retry.Messages, nil
	}
	return nil, fmt.Errorf("fetch failed after reconnect: %w", retry.Err)
}

// chunkUIDs splits uids into slices of at most size elements, in order.
func chunkUIDs(uids []models.UID, size int) [][]models.UID {
	return chunk(uids, size)
}

// chunk splits items into slices of at most size elements, in order.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
