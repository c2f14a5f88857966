package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// BadgerStore is an embedded single-node store. Events live under
// event/{id}; index keys actor/{actor}/{ts}/{id} and
// resource/{name}/{ts}/{id} point back at them.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a store in dir. An empty dir opens an
// in-memory store.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger audit store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func eventKey(id uuid.UUID) []byte {
	return []byte("event/" + id.String())
}

func indexPrefix(kind, value string) []byte {
	return []byte(kind + "/" + url.PathEscape(value) + "/")
}

func indexKey(kind, value string, ev Event) []byte {
	return fmt.Appendf(indexPrefix(kind, value), "%020d/%s", ev.Timestamp.UnixNano(), ev.ID)
}

func (s *BadgerStore) Append(_ context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	id := []byte(ev.ID.String())

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(eventKey(ev.ID))
		if err == nil {
			return ErrDuplicate
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(eventKey(ev.ID), raw); err != nil {
			return err
		}
		if err := txn.Set(indexKey("actor", ev.ActorID, ev), id); err != nil {
			return err
		}
		return txn.Set(indexKey("resource", ev.ResourceName, ev), id)
	})
	if errors.Is(err, ErrDuplicate) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

func (s *BadgerStore) Get(_ context.Context, id uuid.UUID) (Event, error) {
	var ev Event
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ev, err = readEvent(txn, eventKey(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("get audit event: %w", err)
	}
	return ev, nil
}

func (s *BadgerStore) ListByActor(_ context.Context, actorID string, offset, limit int) ([]Event, error) {
	return s.list(indexPrefix("actor", actorID), offset, limit)
}

func (s *BadgerStore) ListByResource(_ context.Context, resource string, offset, limit int) ([]Event, error) {
	return s.list(indexPrefix("resource", resource), offset, limit)
}

func (s *BadgerStore) list(prefix []byte, offset, limit int) ([]Event, error) {
	skip, limit := clampOffset(offset), clampLimit(limit)
	out := []Event{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			if skip > 0 {
				skip--
				continue
			}
			var id []byte
			if err := it.Item().Value(func(val []byte) error {
				id = append([]byte{}, val...)
				return nil
			}); err != nil {
				return err
			}
			ev, err := readEvent(txn, append([]byte("event/"), id...))
			if err != nil {
				return fmt.Errorf("index %s: %w", it.Item().Key(), err)
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return out, nil
}

func readEvent(txn *badger.Txn, key []byte) (Event, error) {
	item, err := txn.Get(key)
	if err != nil {
		return Event{}, err
	}
	var ev Event
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &ev)
	})
	return ev, err
}
