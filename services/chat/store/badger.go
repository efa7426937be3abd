package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/harborpoint/netchat/services/chat/datatypes"
)

// Key layout:
//
//	conv:<session_id>                 live conversation document
//	arch:<session_id>:<archive_id>    immutable archive snapshot
//
// Embedding the session id in archive keys scopes every archive operation
// to its owning session by construction.
const (
	conversationPrefix = "conv:"
	archivePrefix      = "arch:"
)

// BadgerStore implements ConversationStore on an embedded BadgerDB.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// OpenBadger opens a persistent store at the given directory, creating it
// when missing. Callers must Close the store when done.
func OpenBadger(path string) (*BadgerStore, error) {
	if path == "" {
		return nil, errors.New("path is required for persistent store")
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", path, err)
	}
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db, now: time.Now}, nil
}

// OpenBadgerInMemory opens a volatile store for testing.
func OpenBadgerInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger store: %w", err)
	}
	return &BadgerStore{db: db, now: time.Now}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func conversationKey(sessionID string) []byte {
	return []byte(conversationPrefix + sessionID)
}

func archiveKey(sessionID, archiveID string) []byte {
	return []byte(archivePrefix + sessionID + ":" + archiveID)
}

// GetOrCreate implements ConversationStore.
func (s *BadgerStore) GetOrCreate(ctx context.Context, sessionID string) (*datatypes.Conversation, error) {
	var conv *datatypes.Conversation
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(sessionID))
		if err == nil {
			return item.Value(func(val []byte) error {
				conv = &datatypes.Conversation{}
				return json.Unmarshal(val, conv)
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		conv = datatypes.NewConversation(sessionID, s.now())
		encoded, err := json.Marshal(conv)
		if err != nil {
			return err
		}
		slog.Info("created new conversation", "session_id", sessionID)
		return txn.Set(conversationKey(sessionID), encoded)
	})
	if err != nil {
		return nil, fmt.Errorf("get or create conversation %s: %w", sessionID, err)
	}
	return conv, nil
}

// PutTurns implements ConversationStore.
func (s *BadgerStore) PutTurns(ctx context.Context, sessionID string, turns []datatypes.Turn) error {
	return s.updateConversation(sessionID, func(conv *datatypes.Conversation) {
		conv.Messages = turns
	})
}

// PutInvocations implements ConversationStore.
func (s *BadgerStore) PutInvocations(ctx context.Context, sessionID string, invocations []datatypes.ToolInvocation) error {
	return s.updateConversation(sessionID, func(conv *datatypes.Conversation) {
		conv.Tools = invocations
	})
}

func (s *BadgerStore) updateConversation(sessionID string, mutate func(*datatypes.Conversation)) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		conv, err := s.readConversation(txn, sessionID)
		if err != nil {
			return err
		}
		if conv == nil {
			conv = datatypes.NewConversation(sessionID, s.now())
		}
		mutate(conv)
		encoded, err := json.Marshal(conv)
		if err != nil {
			return err
		}
		return txn.Set(conversationKey(sessionID), encoded)
	})
	if err != nil {
		return fmt.Errorf("update conversation %s: %w", sessionID, err)
	}
	return nil
}

func (s *BadgerStore) readConversation(txn *badger.Txn, sessionID string) (*datatypes.Conversation, error) {
	item, err := txn.Get(conversationKey(sessionID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var conv datatypes.Conversation
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &conv)
	}); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ArchiveAndReset implements ConversationStore. The snapshot is written
// before the live arrays are cleared; an empty conversation produces no
// archive at all.
func (s *BadgerStore) ArchiveAndReset(ctx context.Context, sessionID string) (*datatypes.Archive, error) {
	var archive *datatypes.Archive
	err := s.db.Update(func(txn *badger.Txn) error {
		conv, err := s.readConversation(txn, sessionID)
		if err != nil {
			return err
		}
		if conv == nil || len(conv.Messages) == 0 {
			return nil
		}

		archive = datatypes.NewArchive(conv, s.now())
		encodedArchive, err := json.Marshal(archive)
		if err != nil {
			return err
		}
		if err := txn.Set(archiveKey(sessionID, archive.ID), encodedArchive); err != nil {
			return err
		}

		conv.Messages = []datatypes.Turn{}
		conv.Tools = []datatypes.ToolInvocation{}
		encodedConv, err := json.Marshal(conv)
		if err != nil {
			return err
		}
		return txn.Set(conversationKey(sessionID), encodedConv)
	})
	if err != nil {
		return nil, fmt.Errorf("archive and reset %s: %w", sessionID, err)
	}
	if archive != nil {
		slog.Info("archived conversation",
			"session_id", sessionID,
			"archive_id", archive.ID,
			"messages", archive.MessageCount)
	}
	return archive, nil
}

// ListArchives implements ConversationStore.
func (s *BadgerStore) ListArchives(ctx context.Context, sessionID string, limit int) ([]datatypes.Archive, error) {
	archives := []datatypes.Archive{}
	prefix := []byte(archivePrefix + sessionID + ":")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var archive datatypes.Archive
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &archive)
			}); err != nil {
				return err
			}
			archives = append(archives, archive)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list archives for %s: %w", sessionID, err)
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].ArchivedAt.After(archives[j].ArchivedAt)
	})
	if limit > 0 && len(archives) > limit {
		archives = archives[:limit]
	}
	return archives, nil
}

// GetArchive implements ConversationStore.
func (s *BadgerStore) GetArchive(ctx context.Context, sessionID, archiveID string) (*datatypes.Archive, error) {
	var archive datatypes.Archive
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(archiveKey(sessionID, archiveID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &archive)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrArchiveNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get archive %s for %s: %w", archiveID, sessionID, err)
	}
	return &archive, nil
}

// DeleteArchive implements ConversationStore.
func (s *BadgerStore) DeleteArchive(ctx context.Context, sessionID, archiveID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		// Confirm the archive exists under this session before deleting,
		// so foreign ids surface as not-found rather than silent no-ops.
		if _, err := txn.Get(archiveKey(sessionID, archiveID)); err != nil {
			return err
		}
		return txn.Delete(archiveKey(sessionID, archiveID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrArchiveNotFound
	}
	if err != nil {
		return fmt.Errorf("delete archive %s for %s: %w", archiveID, sessionID, err)
	}
	return nil
}
