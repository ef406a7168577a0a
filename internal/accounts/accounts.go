// Package accounts handles account credential storage and is the one
// place that knows how to turn a stored account into a freshly dialed,
// logged-in MailClient — exactly what the single reconnect-and-retry
// path in syncengine calls back into when a connection goes bad
// mid-chunk.
package accounts

import (
	"context"
	"fmt"

	"github.com/hkdb/gmsync/internal/blobstore"
	"github.com/hkdb/gmsync/internal/mailclient"
	"github.com/hkdb/gmsync/internal/mailclient/imapgmail"
	"github.com/hkdb/gmsync/internal/models"
	"github.com/hkdb/gmsync/internal/store"
)

// Accounts resolves stored account configuration and credentials into
// live MailClient sessions.
type Accounts struct {
	store *store.Store
	creds *credentialStore
	blobs blobstore.BlobStore
}

// New constructs an Accounts collaborator bound to db for both account
// rows and credential fallback storage. encryptionKeyBase64 may be
// empty when the OS keyring is expected to always be available (e.g.
// desktop use); a headless server deployment should always set it.
func New(st *store.Store, db *store.DB, encryptionKeyBase64 string, blobs blobstore.BlobStore) (*Accounts, error) {
	creds, err := newCredentialStore(db.DB, encryptionKeyBase64)
	if err != nil {
		return nil, err
	}
	return &Accounts{store: st, creds: creds, blobs: blobs}, nil
}

// SetPassword stores an account's IMAP password.
func (a *Accounts) SetPassword(ctx context.Context, account, password string) error {
	return a.creds.setPassword(ctx, account, password)
}

// Session dials and logs in a fresh MailClient for account, resolving
// its host/username from the Store and its password from the
// credential backend.
func (a *Accounts) Session(ctx context.Context, email string) (mailclient.MailClient, error) {
	accts, err := a.store.ListEnabledAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	var acct *models.Account
	for i := range accts {
		if accts[i].Email == email {
			acct = &accts[i]
			break
		}
	}
	if acct == nil {
		return nil, fmt.Errorf("account %s not found or disabled", email)
	}

	password, err := a.creds.getPassword(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get password for %s: %w", email, err)
	}

	cfg := imapgmail.DefaultConfig()
	cfg.Host = acct.IMAPHost
	cfg.Port = acct.IMAPPort
	cfg.Username = acct.Username
	cfg.Password = password

	client, err := imapgmail.Dial(cfg, a.blobs)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", email, err)
	}
	return client, nil
}
