package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"token-launcher/internal/models"
)

// keys: run:<id> -> JSON run, tok:<lower token address> -> id
var (
	runPrefix   = []byte("run:")
	tokenPrefix = []byte("tok:")
)

func kRun(id string) []byte     { return append(append([]byte{}, runPrefix...), id...) }
func kToken(addr string) []byte { return append(append([]byte{}, tokenPrefix...), strings.ToLower(addr)...) }
func prefixEnd(p []byte) []byte { return append(append([]byte{}, p[:len(p)-1]...), p[len(p)-1]+1) }

// PebbleLaunchRunRepository stores launch runs in a local pebble database.
// It is used when no database DSN is configured.
type PebbleLaunchRunRepository struct {
	db *pebble.DB
	mu sync.Mutex // serializes read-modify-write of the token index
}

var _ LaunchRunRepository = (*PebbleLaunchRunRepository)(nil)

// NewPebbleLaunchRunRepository opens (or creates) the store at path.
func NewPebbleLaunchRunRepository(path string) (*PebbleLaunchRunRepository, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble store %s: %w", path, err)
	}
	return &PebbleLaunchRunRepository{db: db}, nil
}

// Close closes the underlying database.
func (s *PebbleLaunchRunRepository) Close() error { return s.db.Close() }

func (s *PebbleLaunchRunRepository) Create(ctx context.Context, run *models.LaunchRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.get(run.ID); err == nil {
		return fmt.Errorf("launch run %s already exists", run.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	return s.put(run)
}

func (s *PebbleLaunchRunRepository) GetByID(ctx context.Context, id string) (*models.LaunchRun, error) {
	return s.get(id)
}

func (s *PebbleLaunchRunRepository) Update(ctx context.Context, run *models.LaunchRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.get(run.ID)
	if err != nil {
		return err
	}
	run.CreatedAt = existing.CreatedAt
	run.UpdatedAt = time.Now().UTC()
	return s.put(run)
}

func (s *PebbleLaunchRunRepository) FindByTokenAddress(ctx context.Context, token string) (*models.LaunchRun, error) {
	val, closer, err := s.db.Get(kToken(token))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	id := string(val)
	closer.Close()
	return s.get(id)
}

func (s *PebbleLaunchRunRepository) FindByStatus(ctx context.Context, status models.LaunchRunStatus) ([]*models.LaunchRun, error) {
	all, err := s.all()
	if err != nil {
		return nil, err
	}
	var out []*models.LaunchRun
	for _, run := range all {
		if run.Status == status {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *PebbleLaunchRunRepository) List(ctx context.Context, page, pageSize int) ([]*models.LaunchRun, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	all, err := s.all()
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []*models.LaunchRun{}, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *PebbleLaunchRunRepository) get(id string) (*models.LaunchRun, error) {
	val, closer, err := s.db.Get(kRun(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	var run models.LaunchRun
	if err := json.Unmarshal(val, &run); err != nil {
		return nil, fmt.Errorf("decode launch run %s: %w", id, err)
	}
	return &run, nil
}

func (s *PebbleLaunchRunRepository) put(run *models.LaunchRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode launch run %s: %w", run.ID, err)
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(kRun(run.ID), data, nil); err != nil {
		return err
	}
	if run.TokenAddress != "" {
		if err := batch.Set(kToken(run.TokenAddress), []byte(run.ID), nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (s *PebbleLaunchRunRepository) all() ([]*models.LaunchRun, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: runPrefix,
		UpperBound: prefixEnd(runPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*models.LaunchRun
	for iter.First(); iter.Valid(); iter.Next() {
		var run models.LaunchRun
		if err := json.Unmarshal(iter.Value(), &run); err != nil {
			return nil, fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		out = append(out, &run)
	}
	return out, iter.Error()
}
