package service

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/prayer-schedule-api/pkg/storage"
)

// Keys of the local durable store.
const (
	ScheduleBlobKey = "prayer_times.csv"
	LastUpdateKey   = "last_update"
)

// BlobStorage is the keyed blob storage the local schedule store writes to.
type BlobStorage interface {
	Write(key string, data []byte) error
	Read(key string) ([]byte, error)
	Delete(key string) error
}

// LocalSnapshot is what the local store holds: the yearly CSV blob and when it was saved.
type LocalSnapshot struct {
	CSV         string
	LastUpdated *time.Time
}

// LocalScheduleStore keeps the serialized timeline on local disk. No retry is applied.
type LocalScheduleStore struct {
	mu    sync.Mutex
	blobs BlobStorage
}

// NewLocalScheduleStore wraps a blob storage.
func NewLocalScheduleStore(blobs BlobStorage) *LocalScheduleStore {
	return &LocalScheduleStore{blobs: blobs}
}

// Save writes the CSV blob and the ISO-8601 update timestamp.
func (s *LocalScheduleStore) Save(csv string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(csv, at)
}

// SaveIfUnchanged saves only while the stored blob still equals expected ("" for
// nothing stored), checked and written under one lock. It reports whether it wrote.
func (s *LocalScheduleStore) SaveIfUnchanged(expected, csv string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.blobs.Read(ScheduleBlobKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	if string(data) != expected {
		return false, nil
	}
	return true, s.save(csv, at)
}

func (s *LocalScheduleStore) save(csv string, at time.Time) error {
	if err := s.blobs.Write(ScheduleBlobKey, []byte(csv)); err != nil {
		return err
	}
	return s.blobs.Write(LastUpdateKey, []byte(at.UTC().Format(time.RFC3339)))
}

// Load returns the stored snapshot. A store that was never written yields an
// empty CSV and a nil timestamp without error.
func (s *LocalScheduleStore) Load() (LocalSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var snapshot LocalSnapshot
	data, err := s.blobs.Read(ScheduleBlobKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return snapshot, nil
		}
		return snapshot, err
	}
	snapshot.CSV = string(data)

	raw, err := s.blobs.Read(LastUpdateKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return snapshot, nil
		}
		return snapshot, err
	}
	// an unreadable timestamp only loses the "last updated" signal
	if at, perr := time.Parse(time.RFC3339, strings.TrimSpace(string(raw))); perr == nil {
		snapshot.LastUpdated = &at
	}
	return snapshot, nil
}

// Clear removes both entries.
func (s *LocalScheduleStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.blobs.Delete(ScheduleBlobKey); err != nil {
		return err
	}
	return s.blobs.Delete(LastUpdateKey)
}
