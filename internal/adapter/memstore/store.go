// Package memstore keeps every entity in process memory. It backs
// STORE_DRIVER=memory and the service tests; nothing survives a restart.
package memstore

import (
	"cmp"
	"maps"
	"slices"
	"sync"
	"time"

	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
)

type row[T any] struct {
	v   T
	seq int64
}

// table is an insertion-ordered map. Callers hold Store.mu.
type table[T any] struct {
	rows map[string]row[T]
	next int64
}

func newTable[T any]() table[T] {
	return table[T]{rows: make(map[string]row[T])}
}

func (t *table[T]) put(id string, v T) {
	if r, ok := t.rows[id]; ok {
		t.rows[id] = row[T]{v: v, seq: r.seq}
		return
	}
	t.next++
	t.rows[id] = row[T]{v: v, seq: t.next}
}

func (t *table[T]) get(id string) (T, bool) {
	r, ok := t.rows[id]
	return r.v, ok
}

// filter returns matching values in insertion order.
func (t *table[T]) filter(keep func(T) bool) []T {
	rows := make([]row[T], 0, len(t.rows))
	for _, r := range t.rows {
		if keep == nil || keep(r.v) {
			rows = append(rows, r)
		}
	}
	slices.SortFunc(rows, func(a, b row[T]) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = r.v
	}
	return out
}

// Store is the in-memory backend.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users    table[domain.User]
	prefs    table[domain.UserPreferences]
	styles   table[domain.ImageStyle]
	sessions table[domain.ProjectSession]
	jobs     table[domain.GenerationJob]
	images   table[domain.GeneratedImage]
	prompts  table[domain.SystemPrompt]
	concepts table[domain.ConceptList]
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:      time.Now,
		users:    newTable[domain.User](),
		prefs:    newTable[domain.UserPreferences](),
		styles:   newTable[domain.ImageStyle](),
		sessions: newTable[domain.ProjectSession](),
		jobs:     newTable[domain.GenerationJob](),
		images:   newTable[domain.GeneratedImage](),
		prompts:  newTable[domain.SystemPrompt](),
		concepts: newTable[domain.ConceptList](),
	}
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Repositories exposes the store through the domain interfaces.
func (s *Store) Repositories() domain.Repositories {
	return domain.Repositories{
		Users:        &UserRepo{s: s},
		Preferences:  &PreferencesRepo{s: s},
		Styles:       &StyleRepo{s: s},
		Sessions:     &SessionRepo{s: s},
		Jobs:         &JobRepo{s: s},
		Images:       &ImageRepo{s: s},
		Prompts:      &PromptRepo{s: s},
		ConceptLists: &ConceptListRepo{s: s},
	}
}

func (s *Store) stamp(created *time.Time, updated *time.Time) {
	now := s.now().UTC()
	if created != nil && created.IsZero() {
		*created = now
	}
	*updated = now
}

func ownedBy(ownerID, owner string) bool {
	return ownerID == "" || ownerID == owner
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneUser(u domain.User) domain.User {
	if u.LastLogin != nil {
		t := *u.LastLogin
		u.LastLogin = &t
	}
	return u
}

func clonePrefs(p domain.UserPreferences) domain.UserPreferences {
	p.Preferences = maps.Clone(p.Preferences)
	return p
}

func cloneStyle(st domain.ImageStyle) domain.ImageStyle {
	st.StyleData = st.StyleData.Clone()
	return st
}

func cloneJob(j domain.GenerationJob) domain.GenerationJob {
	j.SessionID = clonePtr(j.SessionID)
	j.StyleID = clonePtr(j.StyleID)
	j.Concepts = slices.Clone(j.Concepts)
	return j
}

func cloneImage(i domain.GeneratedImage) domain.GeneratedImage {
	i.JobID = clonePtr(i.JobID)
	i.SessionID = clonePtr(i.SessionID)
	i.SourceImageID = clonePtr(i.SourceImageID)
	return i
}

func clonePrompt(p domain.SystemPrompt) domain.SystemPrompt {
	p.OwnerID = clonePtr(p.OwnerID)
	return p
}

func cloneConceptList(c domain.ConceptList) domain.ConceptList {
	c.Concepts = jsoncfg.CloneRecords(c.Concepts)
	return c
}
