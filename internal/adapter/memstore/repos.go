package memstore

import (
	"context"
	"strings"
	"time"

	"stylegen/internal/domain"
)

// UserRepo implements domain.UserRepository.
type UserRepo struct{ s *Store }

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users.rows {
		if strings.EqualFold(existing.v.Email, u.Email) {
			return domain.ErrConflict
		}
	}
	r.s.stamp(&u.CreatedAt, &u.UpdatedAt)
	r.s.users.put(u.ID, cloneUser(*u))
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users.get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneUser(u)
	return &out, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, row := range r.s.users.rows {
		if strings.EqualFold(row.v.Email, email) {
			out := cloneUser(row.v)
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *UserRepo) List(_ context.Context) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	users := r.s.users.filter(nil)
	for i := range users {
		users[i] = cloneUser(users[i])
	}
	return users, nil
}

func (r *UserRepo) SetActive(_ context.Context, id string, active bool) (*domain.User, error) {
	return r.mutate(id, func(u *domain.User) { u.IsActive = active })
}

func (r *UserRepo) SetRole(_ context.Context, id string, role domain.UserRole) (*domain.User, error) {
	return r.mutate(id, func(u *domain.User) { u.Role = role })
}

func (r *UserRepo) TouchLogin(_ context.Context, id string, at time.Time) error {
	_, err := r.mutate(id, func(u *domain.User) {
		t := at.UTC()
		u.LastLogin = &t
	})
	return err
}

func (r *UserRepo) mutate(id string, fn func(*domain.User)) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users.get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	fn(&u)
	r.s.stamp(nil, &u.UpdatedAt)
	r.s.users.put(id, u)
	out := cloneUser(u)
	return &out, nil
}

// PreferencesRepo implements domain.PreferencesRepository.
type PreferencesRepo struct{ s *Store }

func (r *PreferencesRepo) Get(_ context.Context, userID string) (*domain.UserPreferences, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.prefs.get(userID)
	if !ok {
		return &domain.UserPreferences{UserID: userID, Preferences: map[string]any{}}, nil
	}
	out := clonePrefs(p)
	return &out, nil
}

func (r *PreferencesRepo) Put(_ context.Context, p *domain.UserPreferences) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(nil, &p.UpdatedAt)
	r.s.prefs.put(p.UserID, clonePrefs(*p))
	return nil
}

// StyleRepo implements domain.StyleRepository.
type StyleRepo struct{ s *Store }

func (r *StyleRepo) Create(_ context.Context, st *domain.ImageStyle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&st.CreatedAt, &st.UpdatedAt)
	r.s.styles.put(st.ID, cloneStyle(*st))
	return nil
}

func (r *StyleRepo) Get(_ context.Context, id string) (*domain.ImageStyle, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.styles.get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneStyle(st)
	return &out, nil
}

func (r *StyleRepo) Update(_ context.Context, st *domain.ImageStyle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.styles.get(st.ID)
	if !ok {
		return domain.ErrNotFound
	}
	st.CreatedAt = prev.CreatedAt
	st.CreatedBy = prev.CreatedBy
	r.s.stamp(nil, &st.UpdatedAt)
	r.s.styles.put(st.ID, cloneStyle(*st))
	return nil
}

func (r *StyleRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.styles.get(id); !ok {
		return domain.ErrNotFound
	}
	delete(r.s.styles.rows, id)
	for jid, row := range r.s.jobs.rows {
		if row.v.StyleID != nil && *row.v.StyleID == id {
			row.v.StyleID = nil
			r.s.jobs.rows[jid] = row
		}
	}
	return nil
}

func (r *StyleRepo) List(_ context.Context, ownerID string) ([]domain.ImageStyle, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	styles := r.s.styles.filter(func(st domain.ImageStyle) bool { return ownedBy(ownerID, st.CreatedBy) })
	for i := range styles {
		styles[i] = cloneStyle(styles[i])
	}
	return styles, nil
}

// SessionRepo implements domain.SessionRepository.
type SessionRepo struct{ s *Store }

func (r *SessionRepo) Create(_ context.Context, ses *domain.ProjectSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&ses.CreatedAt, &ses.UpdatedAt)
	r.s.sessions.put(ses.ID, *ses)
	return nil
}

func (r *SessionRepo) Get(_ context.Context, id string) (*domain.ProjectSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ses, ok := r.s.sessions.get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ses, nil
}

func (r *SessionRepo) Update(_ context.Context, ses *domain.ProjectSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.sessions.get(ses.ID)
	if !ok {
		return domain.ErrNotFound
	}
	ses.CreatedAt = prev.CreatedAt
	ses.OwnerID = prev.OwnerID
	r.s.stamp(nil, &ses.UpdatedAt)
	r.s.sessions.put(ses.ID, *ses)
	return nil
}

func (r *SessionRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions.get(id); !ok {
		return domain.ErrNotFound
	}
	r.s.deleteSessionLocked(id)
	return nil
}

func (r *SessionRepo) List(_ context.Context, ownerID string) ([]domain.ProjectSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.sessions.filter(func(ses domain.ProjectSession) bool { return ownedBy(ownerID, ses.OwnerID) }), nil
}

func (r *SessionRepo) DeleteTemporary(_ context.Context, ownerID string, before time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	victims := r.s.sessions.filter(func(ses domain.ProjectSession) bool {
		return ses.IsTemporary && ownedBy(ownerID, ses.OwnerID) && (before.IsZero() || ses.CreatedAt.Before(before))
	})
	for _, ses := range victims {
		r.s.deleteSessionLocked(ses.ID)
	}
	return len(victims), nil
}

// deleteSessionLocked mirrors the ON DELETE CASCADE of the SQL schema.
func (s *Store) deleteSessionLocked(id string) {
	delete(s.sessions.rows, id)
	for jid, row := range s.jobs.rows {
		if row.v.SessionID != nil && *row.v.SessionID == id {
			delete(s.jobs.rows, jid)
		}
	}
	for iid, row := range s.images.rows {
		if row.v.SessionID != nil && *row.v.SessionID == id {
			delete(s.images.rows, iid)
		}
	}
}

// JobRepo implements domain.JobRepository.
type JobRepo struct{ s *Store }

func (r *JobRepo) Create(_ context.Context, job *domain.GenerationJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&job.CreatedAt, &job.UpdatedAt)
	r.s.jobs.put(job.ID, cloneJob(*job))
	return nil
}

func (r *JobRepo) Get(_ context.Context, id string) (*domain.GenerationJob, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	job, ok := r.s.jobs.get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneJob(job)
	return &out, nil
}

func (r *JobRepo) List(_ context.Context, f domain.JobFilter) ([]domain.GenerationJob, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	jobs := r.s.jobs.filter(func(j domain.GenerationJob) bool {
		if !ownedBy(f.OwnerID, j.OwnerID) {
			return false
		}
		return f.SessionID == "" || (j.SessionID != nil && *j.SessionID == f.SessionID)
	})
	jobs = newestFirst(jobs, f.Limit)
	for i := range jobs {
		jobs[i] = cloneJob(jobs[i])
	}
	return jobs, nil
}

func (r *JobRepo) Update(_ context.Context, id string, u domain.JobUpdate) (*domain.GenerationJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job, ok := r.s.jobs.get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := job.Apply(u, r.s.now().UTC()); err != nil {
		return nil, err
	}
	r.s.jobs.put(id, job)
	out := cloneJob(job)
	return &out, nil
}

func (r *JobRepo) FailStale(_ context.Context, before time.Time, message string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now().UTC()
	n := 0
	for id, row := range r.s.jobs.rows {
		job := row.v
		if job.Status.IsTerminal() || !job.UpdatedAt.Before(before) {
			continue
		}
		if err := job.Apply(domain.JobUpdate{Status: domain.JobStatusFailed, ErrorMessage: message}, now); err != nil {
			continue
		}
		r.s.jobs.put(id, job)
		n++
	}
	return n, nil
}

// ImageRepo implements domain.ImageRepository.
type ImageRepo struct{ s *Store }

func (r *ImageRepo) Create(_ context.Context, img *domain.GeneratedImage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&img.CreatedAt, &img.UpdatedAt)
	r.s.images.put(img.ID, cloneImage(*img))
	return nil
}

func (r *ImageRepo) Get(_ context.Context, id string) (*domain.GeneratedImage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	img, ok := r.s.images.get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneImage(img)
	return &out, nil
}

func (r *ImageRepo) Update(_ context.Context, id string, u domain.ImageUpdate) (*domain.GeneratedImage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	img, ok := r.s.images.get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	if u.Status != "" {
		img.Status = u.Status
	}
	if u.ImageURL != "" {
		img.ImageURL = u.ImageURL
	}
	if u.ErrorMessage != "" {
		img.ErrorMessage = u.ErrorMessage
	}
	r.s.stamp(nil, &img.UpdatedAt)
	r.s.images.put(id, img)
	out := cloneImage(img)
	return &out, nil
}

func (r *ImageRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.images.get(id); !ok {
		return domain.ErrNotFound
	}
	delete(r.s.images.rows, id)
	return nil
}

func (r *ImageRepo) ListByJob(_ context.Context, jobID string) ([]domain.GeneratedImage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	imgs := r.s.images.filter(func(i domain.GeneratedImage) bool { return i.JobID != nil && *i.JobID == jobID })
	for i := range imgs {
		imgs[i] = cloneImage(imgs[i])
	}
	return imgs, nil
}

func (r *ImageRepo) List(_ context.Context, f domain.ImageFilter) ([]domain.GeneratedImage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	imgs := r.s.images.filter(func(i domain.GeneratedImage) bool {
		if !ownedBy(f.OwnerID, i.OwnerID) {
			return false
		}
		return f.SessionID == "" || (i.SessionID != nil && *i.SessionID == f.SessionID)
	})
	imgs = newestFirst(imgs, f.Limit)
	for i := range imgs {
		imgs[i] = cloneImage(imgs[i])
	}
	return imgs, nil
}

// PromptRepo implements domain.SystemPromptRepository.
type PromptRepo struct{ s *Store }

func (r *PromptRepo) Create(_ context.Context, p *domain.SystemPrompt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&p.CreatedAt, &p.UpdatedAt)
	if p.IsDefault {
		r.s.clearDefaultLocked(p)
	}
	r.s.prompts.put(p.ID, clonePrompt(*p))
	return nil
}

func (r *PromptRepo) Get(_ context.Context, id string) (*domain.SystemPrompt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.prompts.get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := clonePrompt(p)
	return &out, nil
}

func (r *PromptRepo) Update(_ context.Context, p *domain.SystemPrompt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.prompts.get(p.ID)
	if !ok {
		return domain.ErrNotFound
	}
	p.CreatedAt = prev.CreatedAt
	p.OwnerID = clonePtr(prev.OwnerID)
	r.s.stamp(nil, &p.UpdatedAt)
	if p.IsDefault {
		r.s.clearDefaultLocked(p)
	}
	r.s.prompts.put(p.ID, clonePrompt(*p))
	return nil
}

func (r *PromptRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.prompts.get(id); !ok {
		return domain.ErrNotFound
	}
	delete(r.s.prompts.rows, id)
	return nil
}

func (r *PromptRepo) List(_ context.Context, ownerID string, category domain.PromptCategory) ([]domain.SystemPrompt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	prompts := r.s.prompts.filter(func(p domain.SystemPrompt) bool {
		if category != "" && p.Category != category {
			return false
		}
		return ownerID == "" || p.OwnerID == nil || *p.OwnerID == ownerID
	})
	for i := range prompts {
		prompts[i] = clonePrompt(prompts[i])
	}
	return prompts, nil
}

func (r *PromptRepo) Default(_ context.Context, ownerID string, category domain.PromptCategory) (*domain.SystemPrompt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var global *domain.SystemPrompt
	for _, p := range r.s.prompts.filter(func(p domain.SystemPrompt) bool { return p.IsDefault && p.Category == category }) {
		switch {
		case p.OwnerID != nil && *p.OwnerID == ownerID:
			out := clonePrompt(p)
			return &out, nil
		case p.OwnerID == nil && global == nil:
			out := clonePrompt(p)
			global = &out
		}
	}
	if global == nil {
		return nil, domain.ErrNotFound
	}
	return global, nil
}

func (s *Store) clearDefaultLocked(p *domain.SystemPrompt) {
	for id, row := range s.prompts.rows {
		other := row.v
		if id == p.ID || other.Category != p.Category || other.Owner() != p.Owner() || !other.IsDefault {
			continue
		}
		other.IsDefault = false
		s.prompts.put(id, other)
	}
}

// ConceptListRepo implements domain.ConceptListRepository.
type ConceptListRepo struct{ s *Store }

func (r *ConceptListRepo) Create(_ context.Context, c *domain.ConceptList) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&c.CreatedAt, &c.UpdatedAt)
	r.s.concepts.put(c.ID, cloneConceptList(*c))
	return nil
}

func (r *ConceptListRepo) Get(_ context.Context, id string) (*domain.ConceptList, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.concepts.get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneConceptList(c)
	return &out, nil
}

func (r *ConceptListRepo) Update(_ context.Context, c *domain.ConceptList) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.concepts.get(c.ID)
	if !ok {
		return domain.ErrNotFound
	}
	c.CreatedAt = prev.CreatedAt
	c.OwnerID = prev.OwnerID
	r.s.stamp(nil, &c.UpdatedAt)
	r.s.concepts.put(c.ID, cloneConceptList(*c))
	return nil
}

func (r *ConceptListRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.concepts.get(id); !ok {
		return domain.ErrNotFound
	}
	delete(r.s.concepts.rows, id)
	return nil
}

func (r *ConceptListRepo) List(_ context.Context, ownerID string) ([]domain.ConceptList, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	lists := r.s.concepts.filter(func(c domain.ConceptList) bool { return ownedBy(ownerID, c.OwnerID) })
	for i := range lists {
		lists[i] = cloneConceptList(lists[i])
	}
	return lists, nil
}

// newestFirst reverses insertion order and applies the limit.
func newestFirst[T any](items []T, limit int) []T {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
