package syncengine

import (
	"testing"

	"github.com/hkdb/gmsync/internal/models"
)

func TestDedupUnknownGMsgIDIsFullDownload(t *testing.T) {
	toFetch := []models.UID{1, 2}
	gmsgids := map[models.UID]models.GMsgID{1: 100, 2: 200}
	known := map[models.GMsgID]bool{200: true}

	fullDownload, linkOnly := Dedup(toFetch, gmsgids, known)
	if len(fullDownload) != 1 || fullDownload[0] != 1 {
		t.Errorf("expected fullDownload=[1], got %v", fullDownload)
	}
	if len(linkOnly) != 1 || linkOnly[0] != 2 {
		t.Errorf("expected linkOnly=[2], got %v", linkOnly)
	}
}

func TestDedupUnresolvedGMsgIDIsFullDownload(t *testing.T) {
	toFetch := []models.UID{1, 2}
	gmsgids := map[models.UID]models.GMsgID{1: 100} // 2 unresolved
	known := map[models.GMsgID]bool{100: true}

	fullDownload, linkOnly := Dedup(toFetch, gmsgids, known)
	if len(linkOnly) != 0 {
		t.Errorf("expected no linkOnly, got %v", linkOnly)
	}
	found := false
	for _, u := range fullDownload {
		if u == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected unresolved uid 2 to be treated as fullDownload, got %v", fullDownload)
	}
}

func TestDedupAllKnown(t *testing.T) {
	toFetch := []models.UID{1, 2, 3}
	gmsgids := map[models.UID]models.GMsgID{1: 10, 2: 20, 3: 30}
	known := map[models.GMsgID]bool{10: true, 20: true, 30: true}

	fullDownload, linkOnly := Dedup(toFetch, gmsgids, known)
	if len(fullDownload) != 0 {
		t.Errorf("expected no fullDownload, got %v", fullDownload)
	}
	if len(linkOnly) != 3 {
		t.Errorf("expected all 3 uids as linkOnly, got %v", linkOnly)
	}
}

func TestDedupNoneKnown(t *testing.T) {
	toFetch := []models.UID{1, 2}
	gmsgids := map[models.UID]models.GMsgID{1: 10, 2: 20}
	known := map[models.GMsgID]bool{}

	fullDownload, linkOnly := Dedup(toFetch, gmsgids, known)
	if len(linkOnly) != 0 {
		t.Errorf("expected no linkOnly, got %v", linkOnly)
	}
	if len(fullDownload) != 2 {
		t.Errorf("expected both uids as fullDownload, got %v", fullDownload)
	}
}
