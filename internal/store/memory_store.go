package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"doctrans/pkg/domain"
)

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	mu sync.RWMutex

	users   map[string]domain.User
	resets  map[string]domain.PasswordReset
	gloss   map[string]domain.Glossary
	terms   map[string]domain.GlossaryTerm
	jobs    map[string]domain.Job
	files   map[string]domain.JobFile
	targets map[string]domain.JobTarget
	metrics []domain.Metric
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]domain.User),
		resets:  make(map[string]domain.PasswordReset),
		gloss:   make(map[string]domain.Glossary),
		terms:   make(map[string]domain.GlossaryTerm),
		jobs:    make(map[string]domain.Job),
		files:   make(map[string]domain.JobFile),
		targets: make(map[string]domain.JobTarget),
	}
}

func (s *MemoryStore) SaveUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *MemoryStore) SavePasswordReset(r domain.PasswordReset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[r.ID] = r
	return nil
}

func (s *MemoryStore) GetPasswordResetByToken(token string) (domain.PasswordReset, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.resets {
		if r.Token == token {
			return r, true, nil
		}
	}
	return domain.PasswordReset{}, false, nil
}

func (s *MemoryStore) MarkPasswordResetUsed(id string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.resets[id]; ok {
		t := usedAt
		r.UsedAt = &t
		s.resets[id] = r
	}
	return nil
}

func (s *MemoryStore) SaveGlossary(g domain.Glossary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.Terms = nil
	s.gloss[g.ID] = g
	return nil
}

func (s *MemoryStore) GetGlossary(id string) (domain.Glossary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.gloss[id]
	return g, ok, nil
}

func (s *MemoryStore) ListGlossaries() ([]domain.Glossary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Glossary, 0, len(s.gloss))
	for _, g := range s.gloss {
		res = append(res, g)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) DeleteGlossary(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.gloss, id)
	for tid, t := range s.terms {
		if t.GlossaryID == id {
			delete(s.terms, tid)
		}
	}
	return nil
}

func (s *MemoryStore) SaveTerm(t domain.GlossaryTerm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.terms {
		if existing.GlossaryID == t.GlossaryID && existing.Src == t.Src {
			existing.Dst = t.Dst
			existing.Notes = t.Notes
			s.terms[id] = existing
			return nil
		}
	}
	s.terms[t.ID] = t
	return nil
}

func (s *MemoryStore) ListTerms(glossaryID string) ([]domain.GlossaryTerm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.GlossaryTerm
	for _, t := range s.terms {
		if t.GlossaryID == glossaryID {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Position < res[j].Position })
	return res, nil
}

func (s *MemoryStore) DeleteTerm(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.terms, id)
	return nil
}

func (s *MemoryStore) CreateJob(job domain.Job, file domain.JobFile, targets []domain.JobTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	s.files[file.ID] = file
	for _, t := range targets {
		s.targets[t.ID] = t
	}
	return nil
}

func (s *MemoryStore) GetJob(id string) (domain.Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok, nil
}

func (s *MemoryStore) GetJobFile(jobID string) (domain.JobFile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.files {
		if f.JobID == jobID {
			return f, true, nil
		}
	}
	return domain.JobFile{}, false, nil
}

func (s *MemoryStore) ListJobs(q string, page, pageSize int) ([]domain.Job, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(q)
	var matched []domain.Job
	for _, j := range s.jobs {
		if needle != "" {
			filename := ""
			for _, f := range s.files {
				if f.JobID == j.ID {
					filename = f.Filename
					break
				}
			}
			if !strings.Contains(strings.ToLower(j.ID), needle) &&
				!strings.Contains(strings.ToLower(filename), needle) {
				continue
			}
		}
		matched = append(matched, j)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) UpdateJobStatus(id string, status domain.JobStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = status
		j.UpdatedAt = updatedAt
		s.jobs[id] = j
	}
	return nil
}

func (s *MemoryStore) ListTargets(jobID string) ([]domain.JobTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.JobTarget
	for _, t := range s.targets {
		if t.JobID == jobID {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Position < res[j].Position })
	return res, nil
}

func (s *MemoryStore) GetTargetByLang(jobID, lang string) (domain.JobTarget, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.targets {
		if t.JobID == jobID && t.TargetLang == lang {
			return t, true, nil
		}
	}
	return domain.JobTarget{}, false, nil
}

func (s *MemoryStore) UpdateTarget(t domain.JobTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.targets[t.ID]; ok {
		existing.Status = t.Status
		existing.OutputPath = t.OutputPath
		existing.Error = t.Error
		existing.UpdatedAt = t.UpdatedAt
		s.targets[t.ID] = existing
	}
	return nil
}

func (s *MemoryStore) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	for fid, f := range s.files {
		if f.JobID == id {
			delete(s.files, fid)
		}
	}
	for tid, t := range s.targets {
		if t.JobID == id {
			delete(s.targets, tid)
		}
	}
	kept := s.metrics[:0]
	for _, m := range s.metrics {
		if m.JobID != id {
			kept = append(kept, m)
		}
	}
	s.metrics = kept
	return nil
}

func (s *MemoryStore) AddMetric(m domain.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, m)
	return nil
}

func (s *MemoryStore) ListMetrics(jobID string) ([]domain.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Metric
	for _, m := range s.metrics {
		if m.JobID == jobID {
			res = append(res, m)
		}
	}
	return res, nil
}
