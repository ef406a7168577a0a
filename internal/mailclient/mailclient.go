// Package mailclient defines the MailClient collaborator the sync
// engine core consumes, along with the Outcome sum type that turns
// reconnect-as-control-flow into an explicit, typed result instead of a
// broad exception catch. Concrete adapters live in subpackages
// (imapgmail).
package mailclient

import (
	"context"

	"github.com/hkdb/gmsync/internal/models"
)

// FolderStatus is the result of a non-destructive STATUS query: the
// server's current UIDVALIDITY/HIGHESTMODSEQ for a folder without
// selecting it.
type FolderStatus struct {
	UIDValidity   models.UIDValidity
	HighestModSeq models.ModSeq
}

// SelectedFolder is the result of selecting a folder: its status plus
// message count, mirroring what an IMAP SELECT response reports.
type SelectedFolder struct {
	FolderStatus
	Messages uint32
}

// FetchedMessage is one message's worth of data returned by FetchUIDs:
// its metadata, its parts, and the membership row tying it to this
// folder/UID.
type FetchedMessage struct {
	Meta       models.MessageMeta
	Parts      []models.MessagePart
	Membership models.FolderMembership
}

// ErrKind distinguishes a fatal encoding failure (fatal to the chunk)
// from a transient fetch failure (reconnect-and-retry-once).
type ErrKind int

const (
	// ErrKindTransient covers any fetch failure other than encoding:
	// network errors, protocol errors, timeouts.
	ErrKindTransient ErrKind = iota
	// ErrKindEncoding is a MIME decode failure. Fatal for the chunk.
	ErrKindEncoding
)

// FetchError carries an ErrKind alongside the underlying cause so
// callers can branch without string-matching error text.
type FetchError struct {
	Kind ErrKind
	Err  error
}

func (e *FetchError) Error() string { return e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// Outcome is the sum type the Fetcher matches on instead of a broad
// exception catch: exactly one of Messages/Err is meaningful depending on
// whether the fetch succeeded.
type Outcome struct {
	Messages []FetchedMessage
	Err      *FetchError // nil on success
}

// IsEncoding reports whether the outcome failed with a fatal encoding
// error.
func (o Outcome) IsEncoding() bool {
	return o.Err != nil && o.Err.Kind == ErrKindEncoding
}

// IsTransient reports whether the outcome failed with a retryable
// error.
func (o Outcome) IsTransient() bool {
	return o.Err != nil && o.Err.Kind == ErrKindTransient
}

// MailClient is the interface the sync engine core consumes. A
// concrete instance represents one authenticated session, already
// logged in, not yet bound to any folder — SelectFolder must be called
// before any UID-relative operation.
type MailClient interface {
	// SelectFolder selects a folder and returns its current status.
	SelectFolder(ctx context.Context, name string) (SelectedFolder, error)

	// FolderStatus queries UIDVALIDITY/HIGHESTMODSEQ without selecting
	// the folder, used by IncrementalSync's cheap pre-check.
	FolderStatus(ctx context.Context, name string) (FolderStatus, error)

	// AllUIDs returns every UID in the selected folder.
	AllUIDs(ctx context.Context) ([]models.UID, error)

	// SearchModSeqGreaterThan returns UIDs of non-deleted messages
	// whose MODSEQ exceeds since, the CONDSTORE-style change search.
	SearchModSeqGreaterThan(ctx context.Context, since models.ModSeq) ([]models.UID, error)

	// FetchGMsgIDs returns the Gmail global message id for each UID.
	FetchGMsgIDs(ctx context.Context, uids []models.UID) (map[models.UID]models.GMsgID, error)

	// FetchUIDs performs a full fetch (envelope, flags, body) for the
	// given UIDs in the selected folder, returning one Outcome for the
	// whole chunk.
	FetchUIDs(ctx context.Context, folder string, uids []models.UID) Outcome

	// FetchFlags fetches only flags for the given UIDs — used by the
	// metadata-refresh path, which never re-downloads bodies.
	FetchFlags(ctx context.Context, uids []models.UID) (map[models.UID]models.FlagSet, error)

	// Close ends the session.
	Close() error
}

// FlagSet is re-exported for adapter convenience; kept as an alias so
// adapters don't need to import models directly just for this.
type FlagSet = models.FlagSet
