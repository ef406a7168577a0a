package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/hkdb/gmsync/internal/logging"
)

const serviceName = "gmsync"

// ErrCredentialNotFound is returned when no password is stored for an
// account under either backend.
var ErrCredentialNotFound = errors.New("accounts: credential not found")

// credentialStore stores account passwords in the OS keyring, falling
// back to AES-GCM-encrypted storage in the account_credentials table
// when no keyring is available.
type credentialStore struct {
	db         *sql.DB
	encryptor  *encryptor
	useKeyring bool
}

func newCredentialStore(db *sql.DB, encryptionKeyBase64 string) (*credentialStore, error) {
	log := logging.WithComponent("accounts")

	var enc *encryptor
	if encryptionKeyBase64 != "" {
		e, err := newEncryptor(encryptionKeyBase64)
		if err != nil {
			return nil, fmt.Errorf("credential encryptor: %w", err)
		}
		enc = e
	}

	useKeyring := testKeyring()
	if useKeyring {
		log.Info().Msg("OS keyring available, using as primary credential storage")
	} else {
		log.Warn().Msg("OS keyring not available, using encrypted database storage")
	}

	return &credentialStore{db: db, encryptor: enc, useKeyring: useKeyring}, nil
}

func testKeyring() bool {
	const testKey = "gmsync-test-keyring-check"
	if err := gokeyring.Set(serviceName, testKey, "test"); err != nil {
		return false
	}
	gokeyring.Delete(serviceName, testKey)
	return true
}

func (c *credentialStore) setPassword(ctx context.Context, account, password string) error {
	if c.useKeyring {
		if err := gokeyring.Set(serviceName, account, password); err == nil {
			_, _ = c.db.ExecContext(ctx, `UPDATE account_credentials SET encrypted_pass = '' WHERE email = ?`, account)
			return nil
		}
	}
	if c.encryptor == nil {
		return fmt.Errorf("no keyring available and no encryption key configured")
	}
	encrypted, err := c.encryptor.encrypt(password)
	if err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO account_credentials (email, encrypted_pass) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET encrypted_pass = excluded.encrypted_pass`, account, encrypted)
	if err != nil {
		return fmt.Errorf("store encrypted password: %w", err)
	}
	return nil
}

func (c *credentialStore) getPassword(ctx context.Context, account string) (string, error) {
	if c.useKeyring {
		password, err := gokeyring.Get(serviceName, account)
		if err == nil {
			return password, nil
		}
		if !errors.Is(err, gokeyring.ErrNotFound) {
			logging.WithComponent("accounts").Warn().Err(err).Msg("keyring read failed, trying fallback")
		}
	}

	var encrypted sql.NullString
	err := c.db.QueryRowContext(ctx, `SELECT encrypted_pass FROM account_credentials WHERE email = ?`, account).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) || !encrypted.Valid || encrypted.String == "" {
		return "", ErrCredentialNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query password: %w", err)
	}
	if c.encryptor == nil {
		return "", fmt.Errorf("encrypted credential present but no encryption key configured")
	}
	return c.encryptor.decrypt(encrypted.String)
}
