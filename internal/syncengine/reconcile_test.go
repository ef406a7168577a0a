package syncengine

import (
	"reflect"
	"sort"
	"testing"

	"github.com/hkdb/gmsync/internal/models"
)

func sortedUIDs(uids []models.UID) []models.UID {
	out := append([]models.UID(nil), uids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestReconcileNoChanges(t *testing.T) {
	server := []models.UID{1, 2, 3}
	local := []models.UID{1, 2, 3}
	toDelete, toFetch := Reconcile(server, local)
	if len(toDelete) != 0 || len(toFetch) != 0 {
		t.Errorf("expected no deletes or fetches, got toDelete=%v toFetch=%v", toDelete, toFetch)
	}
}

func TestReconcileNewMessages(t *testing.T) {
	server := []models.UID{1, 2, 3, 4}
	local := []models.UID{1, 2}
	toDelete, toFetch := Reconcile(server, local)
	if len(toDelete) != 0 {
		t.Errorf("expected no deletes, got %v", toDelete)
	}
	want := []models.UID{3, 4}
	if !reflect.DeepEqual(sortedUIDs(toFetch), want) {
		t.Errorf("expected toFetch=%v, got %v", want, sortedUIDs(toFetch))
	}
}

func TestReconcileVanishedMessages(t *testing.T) {
	server := []models.UID{1}
	local := []models.UID{1, 2, 3}
	toDelete, toFetch := Reconcile(server, local)
	if len(toFetch) != 0 {
		t.Errorf("expected no fetches, got %v", toFetch)
	}
	want := []models.UID{2, 3}
	if !reflect.DeepEqual(sortedUIDs(toDelete), want) {
		t.Errorf("expected toDelete=%v, got %v", want, sortedUIDs(toDelete))
	}
}

func TestReconcileEmptyLocal(t *testing.T) {
	server := []models.UID{5, 6, 7}
	toDelete, toFetch := Reconcile(server, nil)
	if len(toDelete) != 0 {
		t.Errorf("expected no deletes against empty local, got %v", toDelete)
	}
	if !reflect.DeepEqual(sortedUIDs(toFetch), server) {
		t.Errorf("expected toFetch=%v, got %v", server, sortedUIDs(toFetch))
	}
}

func TestReconcileEmptyServer(t *testing.T) {
	local := []models.UID{8, 9}
	toDelete, toFetch := Reconcile(nil, local)
	if len(toFetch) != 0 {
		t.Errorf("expected no fetches against empty server, got %v", toFetch)
	}
	if !reflect.DeepEqual(sortedUIDs(toDelete), local) {
		t.Errorf("expected toDelete=%v, got %v", local, sortedUIDs(toDelete))
	}
}
