// Package memory provides an in-memory Store for tests and local
// development. All state is process-local and lost on exit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/civicdata/codecrawler/internal/store"
)

// Store implements store.Store over mutex-guarded maps.
type Store struct {
	mu            sync.RWMutex
	jobs          map[string]*store.ExtractionJob
	items         map[string][]store.ExtractionItem
	jurisdictions map[string]*store.Jurisdiction
	zones         map[string]store.ZoningDistrict
	permits       map[string]store.PermitRequirement
	codeChunks    []store.BuildingCodeChunk
	questions     []store.CommonQuestion
	activityLog   []store.ActivityLogEntry
}

var _ store.Store = (*Store)(nil)

// New builds an empty in-memory store.
func New() *Store {
	return &Store{
		jobs:          make(map[string]*store.ExtractionJob),
		items:         make(map[string][]store.ExtractionItem),
		jurisdictions: make(map[string]*store.Jurisdiction),
		zones:         make(map[string]store.ZoningDistrict),
		permits:       make(map[string]store.PermitRequirement),
	}
}

func (s *Store) CreateJob(_ context.Context, job *store.ExtractionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
		job.CreatedAt = copied.CreatedAt
	}
	s.jobs[job.ID] = &copied
	return nil
}

func (s *Store) GetJob(_ context.Context, jobID string) (*store.ExtractionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *Store) ListJobs(_ context.Context, jurisdictionID string) ([]*store.ExtractionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*store.ExtractionJob
	for _, job := range s.jobs {
		if job.JurisdictionID == jurisdictionID {
			copied := *job
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateJob(_ context.Context, job *store.ExtractionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.jobs[job.ID]
	if !ok {
		return store.ErrNotFound
	}
	copied := *job
	// status is owned by TransitionJob
	copied.Status = existing.Status
	s.jobs[job.ID] = &copied
	return nil
}

func (s *Store) TransitionJob(_ context.Context, jobID string, to store.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return store.ErrNotFound
	}
	if !job.Status.CanTransitionTo(to) {
		return store.ErrInvalidTransition
	}
	job.Status = to
	return nil
}

func (s *Store) ActiveJobExists(_ context.Context, jurisdictionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.JurisdictionID == jurisdictionID && !job.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) AddItems(_ context.Context, items []store.ExtractionItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if item.CreatedAt.IsZero() {
			item.CreatedAt = time.Now().UTC()
		}
		s.items[item.JobID] = append(s.items[item.JobID], item)
	}
	return nil
}

func (s *Store) CountItemsNeedingReview(_ context.Context, jobID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.items[jobID] {
		if item.NeedsReview {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListItems(_ context.Context, jobID string, needsReviewOnly bool, limit int) ([]store.ExtractionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.ExtractionItem
	for _, item := range s.items[jobID] {
		if needsReviewOnly && !item.NeedsReview {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) UpsertZoningDistrict(_ context.Context, d store.ZoningDistrict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[d.JurisdictionID+"/"+d.Code] = d
	return nil
}

func (s *Store) UpsertPermitRequirement(_ context.Context, p store.PermitRequirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permits[p.JurisdictionID+"/"+p.ActivityType] = p
	return nil
}

func (s *Store) InsertBuildingCodeChunk(_ context.Context, c store.BuildingCodeChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codeChunks = append(s.codeChunks, c)
	return nil
}

func (s *Store) InsertCommonQuestion(_ context.Context, q store.CommonQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append(s.questions, q)
	return nil
}

func (s *Store) GetJurisdiction(_ context.Context, id string) (*store.Jurisdiction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jurisdictions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *j
	return &copied, nil
}

func (s *Store) UpsertJurisdiction(_ context.Context, j store.Jurisdiction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.UpdatedAt = time.Now().UTC()
	s.jurisdictions[j.ID] = &j
	return nil
}

func (s *Store) MarkJurisdictionLive(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jurisdictions[id]
	if !ok {
		j = &store.Jurisdiction{ID: id}
		s.jurisdictions[id] = j
	}
	j.Status = "live"
	j.DataCompleteness = 100
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) AppendActivityLog(_ context.Context, e store.ActivityLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.activityLog = append(s.activityLog, e)
	return nil
}

func (s *Store) Close() {}

// ZoningDistricts returns the production zoning rows, for tests.
func (s *Store) ZoningDistricts() []store.ZoningDistrict {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.ZoningDistrict, 0, len(s.zones))
	for _, d := range s.zones {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// PermitRequirements returns the production permit rows, for tests.
func (s *Store) PermitRequirements() []store.PermitRequirement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.PermitRequirement, 0, len(s.permits))
	for _, p := range s.permits {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActivityType < out[j].ActivityType })
	return out
}

// BuildingCodeChunks returns the production code chunks, for tests.
func (s *Store) BuildingCodeChunks() []store.BuildingCodeChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.BuildingCodeChunk(nil), s.codeChunks...)
}

// CommonQuestions returns the production Q&A rows, for tests.
func (s *Store) CommonQuestions() []store.CommonQuestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.CommonQuestion(nil), s.questions...)
}

// ActivityLog returns the recorded admin actions, for tests.
func (s *Store) ActivityLog() []store.ActivityLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.ActivityLogEntry(nil), s.activityLog...)
}
