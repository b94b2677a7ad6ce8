package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type scriptedAPI struct {
	mu       sync.Mutex
	statuses []string
	calls    int
	failAt   int
	onCall   func(n int)
}

func (s *scriptedAPI) Job(_ context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.onCall != nil {
		s.onCall(s.calls)
	}
	if s.failAt > 0 && s.calls == s.failAt {
		return nil, errors.New("boom")
	}
	i := min(s.calls-1, len(s.statuses)-1)
	return &Job{ID: id, Status: s.statuses[i], Progress: 25 * s.calls}, nil
}

func (s *scriptedAPI) Images(context.Context, string) ([]Image, error) {
	return []Image{{ID: "img"}}, nil
}

func TestPollCompletesOnce(t *testing.T) {
	api := &scriptedAPI{statuses: []string{"pending", "running", "running", "completed"}}
	var progress []int
	completed := 0
	Poll(context.Background(), api, "job-1", Callbacks{
		OnProgress: func(job Job, _ []Image) { progress = append(progress, job.Progress) },
		OnComplete: func(job Job, images []Image) {
			completed++
			if job.Status != "completed" || len(images) != 1 {
				t.Errorf("complete = %+v %d", job, len(images))
			}
		},
		OnError: func(err error) { t.Errorf("unexpected error: %v", err) },
	}, time.Millisecond)

	if completed != 1 {
		t.Fatalf("OnComplete calls = %d", completed)
	}
	if len(progress) != 3 || progress[2] != 75 {
		t.Fatalf("progress = %v", progress)
	}
}

func TestPollStopsOnFirstError(t *testing.T) {
	api := &scriptedAPI{statuses: []string{"running"}, failAt: 2}
	var errs []error
	Poll(context.Background(), api, "job-1", Callbacks{
		OnError:    func(err error) { errs = append(errs, err) },
		OnComplete: func(Job, []Image) { t.Error("unexpected completion") },
	}, time.Millisecond)
	if len(errs) != 1 || api.calls != 2 {
		t.Fatalf("errors = %v, calls = %d", errs, api.calls)
	}
}

func TestPollCancelIsSilent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &scriptedAPI{statuses: []string{"running"}, onCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	done := make(chan struct{})
	go func() {
		defer close(done)
		Poll(ctx, api, "job-1", Callbacks{
			OnError:    func(err error) { t.Errorf("unexpected error: %v", err) },
			OnComplete: func(Job, []Image) { t.Error("unexpected completion") },
		}, time.Millisecond)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Poll did not return after cancel")
	}
}
