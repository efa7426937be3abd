// Package store owns conversation persistence: session lifecycle over a
// document store keyed by session id, plus immutable archives.
package store

import (
	"context"
	"errors"

	"github.com/harborpoint/netchat/services/chat/datatypes"
)

// ErrArchiveNotFound is returned when an archive id does not exist for the
// requesting session. Archive ids belonging to other sessions resolve to
// this same error; they are never exposed across sessions.
var ErrArchiveNotFound = errors.New("archive not found")

// ConversationStore is the persistence contract used by the chat handlers
// and the agent loop.
//
// Appends replace the full messages/tools arrays; there is no in-place
// element update. Callers read-modify-write the arrays they were given at
// the start of the request. No locking or optimistic concurrency is
// provided, so two concurrent requests for one session can race (a known
// lost-update window).
type ConversationStore interface {
	// GetOrCreate returns the live conversation for the session, creating
	// an empty one iff none exists. Safe to call on every inbound request.
	GetOrCreate(ctx context.Context, sessionID string) (*datatypes.Conversation, error)

	// PutTurns replaces the session's messages array.
	PutTurns(ctx context.Context, sessionID string, turns []datatypes.Turn) error

	// PutInvocations replaces the session's tools array.
	PutInvocations(ctx context.Context, sessionID string, invocations []datatypes.ToolInvocation) error

	// ArchiveAndReset snapshots the conversation into an Archive, then
	// clears the live messages/tools. On an empty conversation it writes
	// nothing and returns a nil archive (idempotent). The session id is
	// retained; only the arrays reset.
	ArchiveAndReset(ctx context.Context, sessionID string) (*datatypes.Archive, error)

	// ListArchives returns up to limit archives for the session in
	// reverse-chronological order.
	ListArchives(ctx context.Context, sessionID string, limit int) ([]datatypes.Archive, error)

	// GetArchive returns one archive scoped to the session.
	GetArchive(ctx context.Context, sessionID, archiveID string) (*datatypes.Archive, error)

	// DeleteArchive removes one archive scoped to the session.
	DeleteArchive(ctx context.Context, sessionID, archiveID string) error
}
