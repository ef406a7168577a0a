package syncengine

import "github.com/hkdb/gmsync/internal/models"

// Reconcile computes the set difference between what the server
// reports and what is stored locally for one folder: toDelete is
// local-only (the message vanished remotely), toFetch is server-only (a
// message the local store has never seen for this folder/UID).
func Reconcile(serverUIDs []models.UID, localUIDs []models.UID) (toDelete, toFetch []models.UID) {
	server := make(map[models.UID]bool, len(serverUIDs))
	for _, u := range serverUIDs {
		server[u] = true
	}
	local := make(map[models.UID]bool, len(localUIDs))
	for _, u := range localUIDs {
		local[u] = true
	}

	for _, u := range localUIDs {
		if !server[u] {
			toDelete = append(toDelete, u)
		}
	}
	for _, u := range serverUIDs {
		if !local[u] {
			toFetch = append(toFetch, u)
		}
	}
	return toDelete, toFetch
}
