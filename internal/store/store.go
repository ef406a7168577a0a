// Package store's Store type is the persistence collaborator the sync
// engine core consumes: transactional sessions over the
// accounts/folder_cursors/folder_memberships/message_meta/message_parts
// tables, using raw SQL and database/sql rather than an ORM.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hkdb/gmsync/internal/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/hkdb/gmsync/internal/logging"
)

// ErrNotFound is returned when a lookup finds no row. The syncengine's
// UIDVALIDITY gate treats it as "never synced".
var ErrNotFound = errors.New("store: not found")

// Tx is the transaction handle passed to callbacks run via WithTx,
// aliased so callers outside this package don't need to import
// database/sql just to reference it.
type Tx = sql.Tx

// Store is the query layer over the pooled DB and is safe for
// concurrent use. cmd/syncd shares one Store across all account sync
// tasks; no connection is held for the length of a task, each call
// takes one from the pool.
type Store struct {
	db  *DB
	log zerolog.Logger
}

// New wraps an opened, migrated DB in a Store.
func New(db *DB) *Store {
	return &Store{db: db, log: logging.WithComponent("store")}
}

// --- Accounts -----------------------------------------------------------

// ListEnabledAccounts returns every account with enabled = true.
func (s *Store) ListEnabledAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT email, imap_host, imap_port, username, enabled, initial_sync_done, sync_folders, created_at, updated_at
		FROM accounts WHERE enabled = 1`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		var a models.Account
		var foldersCSV string
		var enabled, initialDone int
		if err := rows.Scan(&a.Email, &a.IMAPHost, &a.IMAPPort, &a.Username, &enabled, &initialDone, &foldersCSV, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Enabled = enabled != 0
		a.InitialSyncDone = initialDone != 0
		if foldersCSV != "" {
			a.SyncFolders = strings.Split(foldersCSV, ",")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertAccount creates or updates an account row. Used by account
// provisioning (cmd/gmsync-accounts), never by the sync engine itself.
func (s *Store) UpsertAccount(ctx context.Context, a models.Account) error {
	foldersCSV := strings.Join(a.SyncFolders, ",")
	enabled := 0
	if a.Enabled {
		enabled = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (email, imap_host, imap_port, username, enabled, sync_folders, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			imap_host = excluded.imap_host,
			imap_port = excluded.imap_port,
			username = excluded.username,
			enabled = excluded.enabled,
			sync_folders = excluded.sync_folders,
			updated_at = excluded.updated_at`,
		a.Email, a.IMAPHost, a.IMAPPort, a.Username, enabled, foldersCSV, time.Now())
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

// SetInitialSyncDone marks an account's InitialSync as complete.
func (s *Store) SetInitialSyncDone(ctx context.Context, account string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET initial_sync_done = 1, updated_at = ? WHERE email = ?`, time.Now(), account)
	if err != nil {
		return fmt.Errorf("set initial sync done: %w", err)
	}
	return nil
}

// --- FolderCursor --------------------------------------------------------

// LoadCursor returns the persisted cursor for (account, folder), or
// models.NeverSynced with ErrNotFound if none exists yet.
func (s *Store) LoadCursor(ctx context.Context, account, folder string) (models.FolderCursor, error) {
	var c models.FolderCursor
	c.Account = account
	c.FolderName = folder
	row := s.db.QueryRowContext(ctx, `
		SELECT uid_validity, highestmodseq, updated_at FROM folder_cursors
		WHERE account = ? AND folder_name = ?`, account, folder)
	if err := row.Scan(&c.UIDValidity, &c.HighestModSeq, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NeverSynced, ErrNotFound
		}
		return models.FolderCursor{}, fmt.Errorf("load cursor: %w", err)
	}
	return c, nil
}

// LoadCursors is the batch form of LoadCursor used by IncrementalSync
// to avoid one round trip per folder.
func (s *Store) LoadCursors(ctx context.Context, account string, folders []string) (map[string]models.FolderCursor, error) {
	out := make(map[string]models.FolderCursor, len(folders))
	for _, f := range folders {
		out[f] = models.NeverSynced
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT folder_name, uid_validity, highestmodseq, updated_at FROM folder_cursors WHERE account = ?`, account)
	if err != nil {
		return nil, fmt.Errorf("load cursors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var folder string
		var c models.FolderCursor
		if err := rows.Scan(&folder, &c.UIDValidity, &c.HighestModSeq, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		c.Account = account
		c.FolderName = folder
		out[folder] = c
	}
	return out, rows.Err()
}

// UpsertCursor replaces the cursor for (account, folder) entirely. Used
// both for ordinary advancement (caller enforces monotonicity) and for
// the UIDVALIDITY-reset case where the cursor is replaced wholesale.
func (s *Store) UpsertCursor(ctx context.Context, tx *sql.Tx, c models.FolderCursor) error {
	exec := s.execer(tx)
	_, err := exec(ctx, `
		INSERT INTO folder_cursors (account, folder_name, uid_validity, highestmodseq, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account, folder_name) DO UPDATE SET
			uid_validity = excluded.uid_validity,
			highestmodseq = excluded.highestmodseq,
			updated_at = excluded.updated_at`,
		c.Account, c.FolderName, c.UIDValidity, c.HighestModSeq, time.Now())
	if err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}
	return nil
}

// --- FolderMembership -----------------------------------------------------

// LocalUIDs returns every UID currently recorded for (account, folder).
// Always filters by both account and folder together — the "account
// global filter" design note calls out exactly this query as a place a
// single-folder filter would be a latent cross-account bug.
func (s *Store) LocalUIDs(ctx context.Context, account, folder string) (map[models.UID]models.FolderMembership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT msg_uid, g_msgid, flags FROM folder_memberships WHERE account = ? AND folder_name = ?`, account, folder)
	if err != nil {
		return nil, fmt.Errorf("local uids: %w", err)
	}
	defer rows.Close()

	out := make(map[models.UID]models.FolderMembership)
	for rows.Next() {
		var m models.FolderMembership
		var flagsStr string
		if err := rows.Scan(&m.MsgUID, &m.GMsgID, &flagsStr); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.Account = account
		m.FolderName = folder
		m.Flags = models.ParseFlagSet(flagsStr)
		out[m.MsgUID] = m
	}
	return out, rows.Err()
}

// KnownGMsgIDs returns the set of G-MSGIDs already present anywhere for
// this account — Dedup's "known G-MSGID" input.
func (s *Store) KnownGMsgIDs(ctx context.Context, account string) (map[models.GMsgID]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT g_msgid FROM message_meta WHERE account = ?`, account)
	if err != nil {
		return nil, fmt.Errorf("known g_msgids: %w", err)
	}
	defer rows.Close()

	out := make(map[models.GMsgID]bool)
	for rows.Next() {
		var id models.GMsgID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan g_msgid: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

// DeleteMemberships removes the given UIDs from (account, folder) in
// one statement. Used both for Reconcile's delete set and for cleaning
// up memberships whose messages vanished from the server between polls.
func (s *Store) DeleteMemberships(ctx context.Context, tx *sql.Tx, account, folder string, uids []models.UID) error {
	if len(uids) == 0 {
		return nil
	}
	exec := s.execer(tx)
	placeholders := make([]string, len(uids))
	args := make([]interface{}, 0, len(uids)+2)
	args = append(args, account, folder)
	for i, u := range uids {
		placeholders[i] = "?"
		args = append(args, u)
	}
	q := fmt.Sprintf(`DELETE FROM folder_memberships WHERE account = ? AND folder_name = ? AND msg_uid IN (%s)`,
		strings.Join(placeholders, ","))
	if _, err := exec(ctx, q, args...); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	return nil
}

// UpsertMembership writes or updates one FolderMembership row.
func (s *Store) UpsertMembership(ctx context.Context, tx *sql.Tx, m models.FolderMembership) error {
	exec := s.execer(tx)
	_, err := exec(ctx, `
		INSERT INTO folder_memberships (account, folder_name, msg_uid, g_msgid, flags)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account, folder_name, msg_uid) DO UPDATE SET
			g_msgid = excluded.g_msgid,
			flags = excluded.flags`,
		m.Account, m.FolderName, m.MsgUID, m.GMsgID, m.Flags.String())
	if err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

// RewriteMembershipUID changes the UID a membership row points at
// in-place, keyed by G-MSGID — the core operation of UID resync.
func (s *Store) RewriteMembershipUID(ctx context.Context, tx *sql.Tx, account, folder string, gmsgid models.GMsgID, newUID models.UID) error {
	exec := s.execer(tx)
	_, err := exec(ctx, `
		UPDATE folder_memberships SET msg_uid = ? WHERE account = ? AND folder_name = ? AND g_msgid = ?`,
		newUID, account, folder, gmsgid)
	if err != nil {
		return fmt.Errorf("rewrite membership uid: %w", err)
	}
	return nil
}

// --- MessageMeta / MessagePart --------------------------------------------

// UpsertMessageMeta writes a MessageMeta row. Called at most once per
// (account, g_msgid) in ordinary operation since meta is never rewritten
// after creation, but upsert semantics keep InitialSync idempotent on
// replay after a crash.
func (s *Store) UpsertMessageMeta(ctx context.Context, tx *sql.Tx, m models.MessageMeta) error {
	exec := s.execer(tx)
	_, err := exec(ctx, `
		INSERT INTO message_meta (account, g_msgid, headers, envelope, subject, sent_date, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account, g_msgid) DO NOTHING`,
		m.Account, m.GMsgID, m.Headers, m.Envelope, m.Subject, m.SentDate, m.SizeBytes)
	if err != nil {
		return fmt.Errorf("upsert message meta: %w", err)
	}
	return nil
}

// InsertMessagePart writes one MessagePart row.
func (s *Store) InsertMessagePart(ctx context.Context, tx *sql.Tx, p models.MessagePart) error {
	exec := s.execer(tx)
	_, err := exec(ctx, `
		INSERT INTO message_parts (account, g_msgid, part_id, blob_key, content_type, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account, g_msgid, part_id) DO NOTHING`,
		p.Account, p.GMsgID, p.PartID, p.BlobKey, p.ContentType, p.SizeBytes)
	if err != nil {
		return fmt.Errorf("insert message part: %w", err)
	}
	return nil
}

// --- transactions ---------------------------------------------------------

// WithTx runs fn inside a transaction. A transaction-layer failure is
// logged and the batch is discarded rather than propagated, since the
// folder cursor is not advanced until after a successful commit and the
// next poll will naturally replay the work.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (committed bool) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("safe commit: failed to begin transaction")
		return false
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		s.log.Warn().Err(err).Msg("safe commit: batch failed, discarding")
		return false
	}
	if err := tx.Commit(); err != nil {
		s.log.Warn().Err(err).Msg("safe commit: commit failed, discarding")
		return false
	}
	return true
}

func (s *Store) execer(tx *sql.Tx) func(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if tx != nil {
		return tx.ExecContext
	}
	return s.db.ExecContext
}
