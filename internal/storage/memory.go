package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"particles/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	generations map[string]map[int]model.GenerationRecord
	populations map[string]map[int]model.PopulationSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.generations = make(map[string]map[int]model.GenerationRecord)
	s.populations = make(map[string]map[int]model.PopulationSnapshot)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return err
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return model.RunRecord{}, false, err
	}
	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveGeneration(_ context.Context, record model.GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	if record.RunID == "" {
		return errors.New("generation run id is required")
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return err
	}
	byIndex, ok := s.generations[record.RunID]
	if !ok {
		byIndex = make(map[int]model.GenerationRecord)
		s.generations[record.RunID] = byIndex
	}
	byIndex[record.Index] = record
	return nil
}

func (s *MemoryStore) ListGenerations(_ context.Context, runID string) ([]model.GenerationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	byIndex := s.generations[runID]
	records := make([]model.GenerationRecord, 0, len(byIndex))
	for _, record := range byIndex {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	return records, nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, snapshot model.PopulationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	if snapshot.RunID == "" {
		return errors.New("population run id is required")
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return err
	}
	byGeneration, ok := s.populations[snapshot.RunID]
	if !ok {
		byGeneration = make(map[int]model.PopulationSnapshot)
		s.populations[snapshot.RunID] = byGeneration
	}
	byGeneration[snapshot.Generation] = clonePopulation(snapshot)
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, runID string, generation int) (model.PopulationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return model.PopulationSnapshot{}, false, err
	}
	snapshot, ok := s.populations[runID][generation]
	if !ok {
		return model.PopulationSnapshot{}, false, nil
	}
	return clonePopulation(snapshot), true, nil
}

func (s *MemoryStore) LatestPopulation(_ context.Context, runID string) (model.PopulationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return model.PopulationSnapshot{}, false, err
	}
	latest, found := model.PopulationSnapshot{}, false
	for generation, snapshot := range s.populations[runID] {
		if !found || generation > latest.Generation {
			latest, found = snapshot, true
		}
	}
	if !found {
		return model.PopulationSnapshot{}, false, nil
	}
	return clonePopulation(latest), true, nil
}

func (s *MemoryStore) ready() error {
	if !s.initialized {
		return fmt.Errorf("store is not initialized")
	}
	return nil
}

func clonePopulation(p model.PopulationSnapshot) model.PopulationSnapshot {
	out := p
	out.Members = append([]model.PopulationMember(nil), p.Members...)
	return out
}

func sortRuns(runs []model.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.Before(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
}
