package syncengine

import "github.com/hkdb/gmsync/internal/models"

// Dedup partitions toFetch into fullDownload (this account has never
// seen the message's G-MSGID before, so a body must be downloaded) and
// linkOnly (the G-MSGID is already known from another folder, so only a
// FolderMembership row needs to be created). uids whose G-MSGID could
// not be resolved are treated conservatively as fullDownload so they
// aren't silently dropped.
func Dedup(toFetch []models.UID, gmsgids map[models.UID]models.GMsgID, known map[models.GMsgID]bool) (fullDownload, linkOnly []models.UID) {
	for _, uid := range toFetch {
		id, ok := gmsgids[uid]
		if !ok {
			fullDownload = append(fullDownload, uid)
			continue
		}
		if known[id] {
			linkOnly = append(linkOnly, uid)
		} else {
			fullDownload = append(fullDownload, uid)
		}
	}
	return fullDownload, linkOnly
}
