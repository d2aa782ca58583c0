package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/keshon/datastore"
)

// Key prefixes inside the document store. One record per aggregate:
// persona:{id}, human:{id}, msgs:{humanID}, firelog:{humanID},
// memory:{personaID}|{humanID}, checkpoint:poll.
const (
	personaPrefix     = "persona:"
	humanPrefix       = "human:"
	msgsPrefix        = "msgs:"
	firelogPrefix     = "firelog:"
	memoryPrefix      = "memory:"
	pollCheckpointKey = "checkpoint:poll"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// StorageError wraps a failed storage operation with its context.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

type Storage struct {
	ds *datastore.DataStore
}

// New opens the backing document store. ctx controls the store's background
// save loop; cancel it before Close, or Close blocks waiting for the loop.
func New(ctx context.Context, filePath string) (*Storage, error) {
	ds, err := datastore.New(ctx, filePath)
	if err != nil {
		return nil, &StorageError{Op: "open", Key: filePath, Err: err}
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func (s *Storage) get(op, key string, out any) error {
	exists, err := s.ds.Get(key, out)
	if err != nil {
		return &StorageError{Op: op, Key: key, Err: err}
	}
	if !exists {
		return &StorageError{Op: op, Key: key, Err: ErrNotFound}
	}
	return nil
}

func (s *Storage) set(op, key string, val any) error {
	if err := s.ds.Set(key, val); err != nil {
		return &StorageError{Op: op, Key: key, Err: err}
	}
	return nil
}
