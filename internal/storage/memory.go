package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/hacknation/dataset-publisher/internal/models"
)

// MemoryStorage keeps datasets and topics in process memory. Values are
// copied on the way in and out so callers never share state.
type MemoryStorage struct {
	mu       sync.RWMutex
	nextID   int64
	datasets map[int64]*models.Dataset
	topics   map[int64]string
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		datasets: make(map[int64]*models.Dataset),
		topics:   make(map[int64]string),
	}
}

// Create assigns an id and stores a new dataset
func (s *MemoryStorage) Create(_ context.Context, ds *models.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	ds.ID = s.nextID
	s.datasets[ds.ID] = ds.Clone()
	return nil
}

// Get returns a copy of the dataset
func (s *MemoryStorage) Get(_ context.Context, id int64) (*models.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.datasets[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return ds.Clone(), nil
}

// Save replaces the stored dataset
func (s *MemoryStorage) Save(_ context.Context, ds *models.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.datasets[ds.ID]; !ok {
		return models.ErrNotFound
	}
	s.datasets[ds.ID] = ds.Clone()
	return nil
}

// GetByUUID returns a copy of the dataset with the given external id
func (s *MemoryStorage) GetByUUID(_ context.Context, uuid string) (*models.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ds := range s.datasets {
		if ds.UUID == uuid {
			return ds.Clone(), nil
		}
	}
	return nil, models.ErrNotFound
}

// List returns all datasets, newest first
func (s *MemoryStorage) List(_ context.Context) ([]*models.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Dataset, 0, len(s.datasets))
	for _, ds := range s.datasets {
		out = append(out, ds.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// AddTopic registers a topic
func (s *MemoryStorage) AddTopic(id int64, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[id] = title
}

// TopicExists reports whether the topic was registered
func (s *MemoryStorage) TopicExists(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.topics[id]
	return ok, nil
}

// Stats computes the dashboard counts
func (s *MemoryStorage) Stats(ctx context.Context) (*Stats, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return computeStats(all), nil
}
