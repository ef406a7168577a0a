package syncengine

import (
	"context"
	"fmt"

	"github.com/hkdb/gmsync/internal/mailclient"
	"github.com/hkdb/gmsync/internal/models"
)

// fakeMailClient is an in-memory MailClient double. transientFailures
// counts down: each call to FetchUIDs while > 0 returns a transient
// FetchError instead of the fixture data, so tests can exercise the
// reconnect-and-retry path deterministically.
type fakeMailClient struct {
	status             mailclient.SelectedFolder
	uids               []models.UID
	gmsgids            map[models.UID]models.GMsgID
	messages           map[models.UID]mailclient.FetchedMessage
	flags              map[models.UID]models.FlagSet
	changedSinceModSeq models.ModSeq

	selectedFolder    string
	transientFailures int
	reconnected       bool
	closed            bool
}

func (f *fakeMailClient) SelectFolder(ctx context.Context, name string) (mailclient.SelectedFolder, error) {
	f.selectedFolder = name
	return f.status, nil
}

func (f *fakeMailClient) FolderStatus(ctx context.Context, name string) (mailclient.FolderStatus, error) {
	return f.status.FolderStatus, nil
}

func (f *fakeMailClient) AllUIDs(ctx context.Context) ([]models.UID, error) {
	return f.uids, nil
}

func (f *fakeMailClient) SearchModSeqGreaterThan(ctx context.Context, since models.ModSeq) ([]models.UID, error) {
	if since >= f.changedSinceModSeq {
		return nil, nil
	}
	return f.uids, nil
}

func (f *fakeMailClient) FetchGMsgIDs(ctx context.Context, uids []models.UID) (map[models.UID]models.GMsgID, error) {
	out := make(map[models.UID]models.GMsgID, len(uids))
	for _, u := range uids {
		if id, ok := f.gmsgids[u]; ok {
			out[u] = id
		}
	}
	return out, nil
}

func (f *fakeMailClient) FetchUIDs(ctx context.Context, folder string, uids []models.UID) mailclient.Outcome {
	if f.transientFailures > 0 {
		f.transientFailures--
		return mailclient.Outcome{Err: &mailclient.FetchError{Kind: mailclient.ErrKindTransient, Err: fmt.Errorf("connection reset")}}
	}
	var out []mailclient.FetchedMessage
	for _, u := range uids {
		if msg, ok := f.messages[u]; ok {
			out = append(out, msg)
		}
	}
	return mailclient.Outcome{Messages: out}
}

func (f *fakeMailClient) FetchFlags(ctx context.Context, uids []models.UID) (map[models.UID]models.FlagSet, error) {
	out := make(map[models.UID]models.FlagSet, len(uids))
	for _, u := range uids {
		if fl, ok := f.flags[u]; ok {
			out[u] = fl
		}
	}
	return out, nil
}

func (f *fakeMailClient) Close() error {
	f.closed = true
	return nil
}

var _ mailclient.MailClient = (*fakeMailClient)(nil)
