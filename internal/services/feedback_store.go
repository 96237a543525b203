package services

import (
	"errors"
	"fmt"
	"sync"

	"github.com/voicefeedback/backend/internal/models"
)

// ErrDuplicateFeedbackID is returned when a record id is already stored
var ErrDuplicateFeedbackID = errors.New("feedback id already exists")

// FeedbackStore is the process-wide, append-only history of feedback records.
// Insertion order is submission order; nothing is ever persisted.
type FeedbackStore struct {
	mu      sync.RWMutex
	records []models.FeedbackRecord
	index   map[string]int
}

func NewFeedbackStore() *FeedbackStore {
	return &FeedbackStore{
		records: make([]models.FeedbackRecord, 0),
		index:   make(map[string]int),
	}
}

// Append adds a record at the end of the history
func (s *FeedbackStore) Append(record models.FeedbackRecord) error {
	if record.ID == "" {
		return fmt.Errorf("feedback record has no id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[record.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFeedbackID, record.ID)
	}
	s.index[record.ID] = len(s.records)
	s.records = append(s.records, record)
	return nil
}

// List returns a copy of all records in submission order
func (s *FeedbackStore) List() []models.FeedbackRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]models.FeedbackRecord, len(s.records))
	copy(records, s.records)
	return records
}

// Get looks a record up by id
func (s *FeedbackStore) Get(id string) (models.FeedbackRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.FeedbackRecord{}, false
	}
	return s.records[i], true
}

func (s *FeedbackStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// AudioFiles lists the artifact paths owned by stored records
func (s *FeedbackStore) AudioFiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var files []string
	for _, r := range s.records {
		if r.HasAudio() {
			files = append(files, *r.AudioFile)
		}
	}
	return files
}
