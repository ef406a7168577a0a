// Package models defines the persisted entities of the sync engine's
// data model: Account, FolderCursor, FolderMembership, MessageMeta, and
// MessagePart. These are plain value types; persistence lives in
// internal/store.
package models

import "time"

// UID is the per-(account, folder) message identifier assigned by the
// IMAP server. Normalized to a single integer type everywhere so that
// no stringly-typed or mismatched-width comparisons can creep into the
// reconciliation logic (see design note on "type-of-uid assertion").
type UID uint32

// GMsgID is Gmail's per-account global message id (X-GM-MSGID). It is
// invariant across folders and across UIDVALIDITY changes, which is
// exactly what makes cross-folder dedup possible.
type GMsgID uint64

// ModSeq is a CONDSTORE modification sequence number.
type ModSeq uint64

// UIDValidity is the opaque per-folder epoch counter the server bumps
// when the UID-to-message mapping is invalidated.
type UIDValidity uint32

// Account is a single mailbox owner. Email is the natural key.
type Account struct {
	Email           string
	IMAPHost        string
	IMAPPort        int
	Username        string
	Enabled         bool
	InitialSyncDone bool
	SyncFolders     []string // declared priority order
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FolderCursor is the sync checkpoint for one (account, folder) pair.
// A FolderCursor that has never been persisted is reported as
// NeverSynced (store.LoadCursor also returns store.ErrNotFound, which is
// what the UIDVALIDITY gate in syncengine checks).
type FolderCursor struct {
	Account       string
	FolderName    string
	UIDValidity   UIDValidity
	HighestModSeq ModSeq
	UpdatedAt     time.Time
}

// NeverSynced is the sentinel cursor value for a folder with no
// persisted row: any real server marker compares strictly greater than
// both fields, so a first sync is always a full pass.
var NeverSynced = FolderCursor{UIDValidity: 0, HighestModSeq: 0}

// FolderMembership ties one remote UID, in one folder, to the globally
// identified message it refers to, plus that folder's view of its
// flags.
type FolderMembership struct {
	Account    string
	FolderName string
	MsgUID     UID
	GMsgID     GMsgID
	Flags      FlagSet
}

// MessageMeta holds the one-per-(account, g_msgid) message metadata,
// shared across every folder that contains the message.
type MessageMeta struct {
	Account   string
	GMsgID    GMsgID
	Headers   string
	Envelope  string
	Subject   string
	SentDate  time.Time
	SizeBytes int64
}

// MessagePart is one MIME part of a message, referencing its raw bytes
// in the blob store by key.
type MessagePart struct {
	Account     string
	GMsgID      GMsgID
	PartID      string
	BlobKey     string
	ContentType string
	SizeBytes   int64
}
