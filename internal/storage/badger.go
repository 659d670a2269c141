// Package storage persists chat messages in BadgerDB.
package storage

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/dgraph-io/badger/v4"
)

// BadgerStore is a MessageStore backed by BadgerDB.
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
}

// NewBadgerStore wraps an open database; the caller owns and closes db.
func NewBadgerStore(db *badger.DB, log *slog.Logger) *BadgerStore {
	return &BadgerStore{db: db, log: log}
}

// roomPrefix hex-encodes the room so no room id can be a prefix of
// another room's keys, whatever characters the identities contain.
func roomPrefix(room chat.RoomID) []byte {
	return []byte("msg:" + hex.EncodeToString([]byte(room)) + ":")
}

// Save stores msg under "msg:{hex room}:{unix_nano padded to 19}:{uuid}" so
// a prefix scan returns a room's messages in chronological order and equal
// timestamps never collide.
func (s *BadgerStore) Save(_ context.Context, msg Message) error {
	key := fmt.Sprintf("%s%019d:%s", roomPrefix(msg.Room), msg.CreatedAt.UnixNano(), msg.ID)
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// MarkRead flags every unread message addressed to reader in room.
func (s *BadgerStore) MarkRead(_ context.Context, room chat.RoomID, reader chat.Identity) (int, error) {
	count := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		type pending struct {
			key   []byte
			value []byte
		}
		var updates []pending

		prefix := roomPrefix(room)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var msg Message
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &msg)
			}); err != nil {
				it.Close()
				return err
			}
			if msg.Room != room || msg.ReceiverID != reader || msg.IsRead {
				continue
			}
			msg.IsRead = true
			value, err := json.Marshal(msg)
			if err != nil {
				it.Close()
				return err
			}
			updates = append(updates, pending{key: item.KeyCopy(nil), value: value})
		}
		it.Close()

		for _, u := range updates {
			if err := txn.Set(u.key, u.value); err != nil {
				return err
			}
		}
		count = len(updates)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Debug("Marked messages as read", "room", room, "reader", reader, "count", count)
	return count, nil
}

// History returns up to limit of the newest messages in room, oldest first.
func (s *BadgerStore) History(_ context.Context, room chat.RoomID, limit int) ([]Message, error) {
	var messages []Message
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(room)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Newest first: seek past the largest possible timestamp.
		seekKey := append(append([]byte(nil), prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			var msg Message
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &msg)
			}); err != nil {
				return err
			}
			if msg.Room != room {
				continue
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}
