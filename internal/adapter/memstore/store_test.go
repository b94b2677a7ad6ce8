package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
)

func TestJobUpdateEnforcesStateMachine(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	job := &domain.GenerationJob{ID: "job-1", OwnerID: "u1", Status: domain.JobStatusPending, Concepts: []string{"a"}}
	if err := repos.Jobs.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := repos.Jobs.Update(ctx, "job-1", domain.JobUpdate{Status: domain.JobStatusRunning, Progress: 60}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := repos.Jobs.Update(ctx, "job-1", domain.JobUpdate{Progress: 10})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Progress != 60 {
		t.Fatalf("progress decreased to %d", got.Progress)
	}
	if _, err := repos.Jobs.Update(ctx, "job-1", domain.JobUpdate{Status: domain.JobStatusCancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := repos.Jobs.Update(ctx, "job-1", domain.JobUpdate{Status: domain.JobStatusRunning}); !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("expected ErrJobTerminal, got %v", err)
	}
	if _, err := repos.Jobs.Update(ctx, "missing", domain.JobUpdate{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	list := &domain.ConceptList{
		ID:       "cl-1",
		OwnerID:  "u1",
		Concepts: []jsoncfg.Record{jsoncfg.NewRecord(jsoncfg.Field{Key: "concept", Value: jsoncfg.String("first")})},
	}
	if err := repos.ConceptLists.Create(ctx, list); err != nil {
		t.Fatalf("Create: %v", err)
	}
	list.Concepts[0].Set("concept", jsoncfg.String("mutated"))

	got, err := repos.ConceptLists.Get(ctx, "cl-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v, _ := got.Concepts[0].Get("concept"); v.Text() != "first" {
		t.Fatalf("stored list shares memory with caller: %q", v.Text())
	}
}

func TestDeleteTemporarySessionsCascades(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	store := New().WithClock(func() time.Time { return now })
	repos := store.Repositories()

	tmp := &domain.ProjectSession{ID: "s-tmp", OwnerID: "u1", IsTemporary: true}
	keep := &domain.ProjectSession{ID: "s-keep", OwnerID: "u1"}
	for _, ses := range []*domain.ProjectSession{tmp, keep} {
		if err := repos.Sessions.Create(ctx, ses); err != nil {
			t.Fatalf("Create session: %v", err)
		}
	}
	sid := "s-tmp"
	jid := "job-1"
	if err := repos.Jobs.Create(ctx, &domain.GenerationJob{ID: jid, OwnerID: "u1", SessionID: &sid}); err != nil {
		t.Fatalf("Create job: %v", err)
	}
	if err := repos.Images.Create(ctx, &domain.GeneratedImage{ID: "img-1", OwnerID: "u1", JobID: &jid, SessionID: &sid}); err != nil {
		t.Fatalf("Create image: %v", err)
	}

	now = base.Add(48 * time.Hour)
	n, err := repos.Sessions.DeleteTemporary(ctx, "", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteTemporary: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted %d sessions, want 1", n)
	}
	if _, err := repos.Jobs.Get(ctx, jid); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("job survived session delete: %v", err)
	}
	if _, err := repos.Images.Get(ctx, "img-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("image survived session delete: %v", err)
	}
	if _, err := repos.Sessions.Get(ctx, "s-keep"); err != nil {
		t.Fatalf("permanent session removed: %v", err)
	}
}

func TestPromptDefaultFallsBackToGlobal(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	owner := "u1"
	global := &domain.SystemPrompt{ID: "p-global", Category: domain.PromptCategoryStyleExtraction, Content: "global", IsDefault: true}
	mine := &domain.SystemPrompt{ID: "p-mine", Category: domain.PromptCategoryStyleExtraction, Content: "mine", IsDefault: true, OwnerID: &owner}
	if err := repos.Prompts.Create(ctx, global); err != nil {
		t.Fatal(err)
	}

	got, err := repos.Prompts.Default(ctx, owner, domain.PromptCategoryStyleExtraction)
	if err != nil || got.ID != "p-global" {
		t.Fatalf("Default = %v, %v; want global", got, err)
	}

	if err := repos.Prompts.Create(ctx, mine); err != nil {
		t.Fatal(err)
	}
	got, err = repos.Prompts.Default(ctx, owner, domain.PromptCategoryStyleExtraction)
	if err != nil || got.ID != "p-mine" {
		t.Fatalf("Default = %v, %v; want owner prompt", got, err)
	}

	second := &domain.SystemPrompt{ID: "p-mine-2", Category: domain.PromptCategoryStyleExtraction, IsDefault: true, OwnerID: &owner}
	if err := repos.Prompts.Create(ctx, second); err != nil {
		t.Fatal(err)
	}
	first, _ := repos.Prompts.Get(ctx, "p-mine")
	if first.IsDefault {
		t.Fatal("previous owner default was not cleared")
	}
	if g, _ := repos.Prompts.Get(ctx, "p-global"); !g.IsDefault {
		t.Fatal("global default cleared by owner prompt")
	}
}

func TestUserEmailIsUnique(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	if err := repos.Users.Create(ctx, &domain.User{ID: "u1", Email: "a@example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := repos.Users.Create(ctx, &domain.User{ID: "u2", Email: "A@example.com"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
