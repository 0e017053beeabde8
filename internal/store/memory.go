package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/govatlas/catalog-cli/internal/model"
)

// MemoryStore is an in-process Store used in tests and dry runs.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	sources  map[string]*memorySource // by source name
	programs map[string]*model.NormalizedProgram
	runs     []model.Run
}

type memorySource struct {
	id  int64
	src model.Source
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		sources:  make(map[string]*memorySource),
		programs: make(map[string]*model.NormalizedProgram),
	}
}

func (m *MemoryStore) EnsureSource(_ context.Context, src model.Source) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sources[src.ID]; ok {
		existing.src = src
		return existing.id, nil
	}
	id := m.nextID
	m.nextID++
	m.sources[src.ID] = &memorySource{id: id, src: src}
	return id, nil
}

func (m *MemoryStore) StartRun(_ context.Context, sourceRowID int64, startedAt int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.runs = append(m.runs, model.Run{
		ID:          id,
		SourceRowID: sourceRowID,
		StartedAt:   startedAt,
		EndedAt:     startedAt,
		Status:      model.RunOK,
	})
	return id, nil
}

func (m *MemoryStore) FinalizeRun(_ context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) LastSuccess(_ context.Context, sourceRowID int64) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *time.Time
	for _, run := range m.runs {
		if run.SourceRowID != sourceRowID || run.Status != model.RunOK {
			continue
		}
		t := time.UnixMilli(run.EndedAt).UTC()
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest, nil
}

func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	runs := make([]model.Run, len(m.runs))
	copy(runs, m.runs)
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt > runs[j].StartedAt })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryStore) SourceStatuses(_ context.Context) ([]SourceStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make([]SourceStatus, 0, len(m.sources))
	for name, src := range m.sources {
		status := SourceStatus{
			SourceRowID: src.id,
			Name:        name,
			Authority:   string(src.src.Authority),
		}
		for i := range m.runs {
			run := m.runs[i]
			if run.SourceRowID != src.id {
				continue
			}
			if status.LastRun == nil || run.StartedAt > status.LastRun.StartedAt {
				last := run
				status.LastRun = &last
				status.Status = run.Status
			}
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses, nil
}

func (m *MemoryStore) GetProgram(_ context.Context, uid string) (*model.NormalizedProgram, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.programs[uid]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (m *MemoryStore) InsertProgram(_ context.Context, p *model.NormalizedProgram) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *p
	m.programs[p.UID] = &clone
	return nil
}

func (m *MemoryStore) UpdateProgram(_ context.Context, p *model.NormalizedProgram, _ []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *p
	m.programs[p.UID] = &clone
	return nil
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
