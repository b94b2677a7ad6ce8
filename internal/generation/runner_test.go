package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	stdimage "image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"stylegen/internal/adapter/memstore"
	"stylegen/internal/domain"
	"stylegen/internal/domain/jsoncfg"
	"stylegen/internal/providers/image"
)

type stubGenerator struct {
	mu      sync.Mutex
	calls   []image.ProviderRequest
	failOn  map[int]error
	panicOn int
	block   bool
	started chan struct{}
	onCall  func(req image.ProviderRequest)
}

func (g *stubGenerator) Generate(ctx context.Context, req image.ProviderRequest) (image.Result, error) {
	return g.call(ctx, req)
}

func (g *stubGenerator) Edit(ctx context.Context, req image.ProviderRequest) (image.Result, error) {
	return g.call(ctx, req)
}

func (g *stubGenerator) call(ctx context.Context, req image.ProviderRequest) (image.Result, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	n := len(g.calls)
	g.mu.Unlock()

	if g.onCall != nil {
		g.onCall(req)
	}
	if g.panicOn == n {
		panic("provider exploded")
	}
	if g.block {
		if g.started != nil {
			g.started <- struct{}{}
		}
		<-ctx.Done()
		return image.Result{}, ctx.Err()
	}
	if err := g.failOn[n]; err != nil {
		return image.Result{}, err
	}
	return image.Result{B64: fmt.Sprintf("aW1n%d", n)}, nil
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type stubFetcher struct {
	data []byte
	err  error
}

func (f stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	return f.data, f.err
}

// progressRecorder wraps a job repository and keeps every progress value written.
type progressRecorder struct {
	domain.JobRepository
	mu       sync.Mutex
	progress []int
}

func (p *progressRecorder) Update(ctx context.Context, id string, u domain.JobUpdate) (*domain.GenerationJob, error) {
	job, err := p.JobRepository.Update(ctx, id, u)
	if err == nil {
		p.mu.Lock()
		p.progress = append(p.progress, job.Progress)
		p.mu.Unlock()
	}
	return job, err
}

func newTestRunner(t *testing.T, repos domain.Repositories, gen image.Generator, fetcher SourceFetcher) *Runner {
	t.Helper()
	r, err := NewRunner(repos, Options{
		Generator:  gen,
		Fetcher:    fetcher,
		ScratchDir: t.TempDir(),
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestStartBatchProducesEveryImage(t *testing.T) {
	repos := memstore.New().Repositories()
	gen := &stubGenerator{}
	r := newTestRunner(t, repos, gen, nil)
	ctx := context.Background()

	style := &domain.ImageStyle{ID: "style-1", Name: "Flat", StylePrompt: "flat pastel vector art"}
	job, err := r.StartBatch(ctx, BatchRequest{
		OwnerID:  "user-1",
		Style:    style,
		Concepts: []string{"coffee cup", " ", "bicycle"},
		Settings: jsoncfg.GenerationSettings{Variations: 2},
	})
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	r.Wait()

	got, err := repos.Jobs.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != domain.JobStatusCompleted || got.Progress != 100 || got.CompletedCount != 4 || got.FailedCount != 0 {
		t.Fatalf("job = %+v", got)
	}
	if got.StyleID == nil || *got.StyleID != "style-1" {
		t.Fatalf("style id = %v", got.StyleID)
	}

	imgs, err := repos.Images.ListByJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("list images: %v", err)
	}
	wantConcepts := []string{"coffee cup", "coffee cup", "bicycle", "bicycle"}
	if len(imgs) != len(wantConcepts) {
		t.Fatalf("got %d images, want %d", len(imgs), len(wantConcepts))
	}
	for i, img := range imgs {
		if img.VisualConcept != wantConcepts[i] {
			t.Errorf("image %d concept = %q, want %q", i, img.VisualConcept, wantConcepts[i])
		}
		if img.Status != domain.ImageStatusCompleted {
			t.Errorf("image %d status = %s", i, img.Status)
		}
		if want := fmt.Sprintf("data:image/png;base64,aW1n%d", i+1); img.ImageURL != want {
			t.Errorf("image %d url = %q, want %q", i, img.ImageURL, want)
		}
		if img.Model != image.DefaultModel || img.Size != "1024x1024" {
			t.Errorf("image %d model/size = %s/%s", i, img.Model, img.Size)
		}
	}
	if gen.calls[0].Prompt != imgs[0].Prompt {
		t.Fatalf("provider prompt %q differs from stored prompt %q", gen.calls[0].Prompt, imgs[0].Prompt)
	}
}

func TestStartBatchContinuesPastFailures(t *testing.T) {
	repos := memstore.New().Repositories()
	gen := &stubGenerator{failOn: map[int]error{3: errors.New("content policy violation")}}
	r := newTestRunner(t, repos, gen, nil)
	ctx := context.Background()

	job, err := r.StartBatch(ctx, BatchRequest{
		OwnerID:  "user-1",
		Concepts: []string{"a", "b"},
		Settings: jsoncfg.GenerationSettings{Variations: 2},
	})
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	r.Wait()

	got, _ := repos.Jobs.Get(ctx, job.ID)
	if got.Status != domain.JobStatusCompleted || got.Progress != 100 {
		t.Fatalf("status/progress = %s/%d", got.Status, got.Progress)
	}
	if got.CompletedCount != 3 || got.FailedCount != 1 {
		t.Fatalf("completed/failed = %d/%d", got.CompletedCount, got.FailedCount)
	}
	imgs, _ := repos.Images.ListByJob(ctx, job.ID)
	if len(imgs) != 4 {
		t.Fatalf("got %d images", len(imgs))
	}
	failed := imgs[2]
	if failed.Status != domain.ImageStatusFailed || failed.ErrorMessage != "content policy violation" {
		t.Fatalf("third image = %+v", failed)
	}
}

func TestStartBatchRejectsIllegalSettingsBeforeAnyCall(t *testing.T) {
	cases := []struct {
		name     string
		settings jsoncfg.GenerationSettings
		concepts []string
	}{
		{name: "size not offered", settings: jsoncfg.GenerationSettings{Model: image.ModelDallE3, Size: "256x256"}, concepts: []string{"a"}},
		{name: "quality on model without quality", settings: jsoncfg.GenerationSettings{Model: image.ModelDallE2, Quality: "hd"}, concepts: []string{"a"}},
		{name: "unknown model", settings: jsoncfg.GenerationSettings{Model: "imagen"}, concepts: []string{"a"}},
		{name: "too many variations", settings: jsoncfg.GenerationSettings{Variations: jsoncfg.MaxVariations + 1}, concepts: []string{"a"}},
		{name: "no concepts", concepts: []string{"", "  "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repos := memstore.New().Repositories()
			gen := &stubGenerator{}
			r := newTestRunner(t, repos, gen, nil)

			_, err := r.StartBatch(context.Background(), BatchRequest{OwnerID: "u", Concepts: tc.concepts, Settings: tc.settings})
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			r.Wait()
			if gen.callCount() != 0 {
				t.Fatalf("provider called %d times", gen.callCount())
			}
			jobs, _ := repos.Jobs.List(context.Background(), domain.JobFilter{})
			if len(jobs) != 0 {
				t.Fatalf("created %d jobs", len(jobs))
			}
		})
	}
}

func TestStartBatchSwitchesModelForTransparency(t *testing.T) {
	repos := memstore.New().Repositories()
	gen := &stubGenerator{}
	r := newTestRunner(t, repos, gen, nil)

	job, err := r.StartBatch(context.Background(), BatchRequest{
		OwnerID:  "u",
		Concepts: []string{"logo"},
		Settings: jsoncfg.GenerationSettings{Model: image.ModelDallE3, Transparency: true},
	})
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	r.Wait()
	if job.Settings.Model != image.ModelGPTImage1 {
		t.Fatalf("job model = %q", job.Settings.Model)
	}
	if gen.calls[0].Background != "transparent" || gen.calls[0].Model != image.ModelGPTImage1 {
		t.Fatalf("provider request = %+v", gen.calls[0])
	}
}

func TestProgressNeverDecreases(t *testing.T) {
	repos := memstore.New().Repositories()
	rec := &progressRecorder{JobRepository: repos.Jobs}
	repos.Jobs = rec
	gen := &stubGenerator{failOn: map[int]error{2: errors.New("boom"), 5: errors.New("boom")}}
	r := newTestRunner(t, repos, gen, nil)

	_, err := r.StartBatch(context.Background(), BatchRequest{
		OwnerID:  "u",
		Concepts: []string{"a", "b", "c"},
		Settings: jsoncfg.GenerationSettings{Variations: 2},
	})
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	r.Wait()

	if len(rec.progress) == 0 {
		t.Fatal("no progress recorded")
	}
	for i := 1; i < len(rec.progress); i++ {
		if rec.progress[i] < rec.progress[i-1] {
			t.Fatalf("progress went backwards: %v", rec.progress)
		}
	}
	if last := rec.progress[len(rec.progress)-1]; last != 100 {
		t.Fatalf("final progress = %d", last)
	}
}

func TestCancelStopsRunningJob(t *testing.T) {
	repos := memstore.New().Repositories()
	gen := &stubGenerator{block: true, started: make(chan struct{}, 1)}
	r := newTestRunner(t, repos, gen, nil)
	ctx := context.Background()

	job, err := r.StartBatch(ctx, BatchRequest{
		OwnerID:  "u",
		Concepts: []string{"a", "b", "c"},
	})
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	<-gen.started
	if !r.Cancel(job.ID) {
		t.Fatal("Cancel reported job not running")
	}
	r.Wait()

	got, _ := repos.Jobs.Get(ctx, job.ID)
	if got.Status != domain.JobStatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
	if gen.callCount() != 1 {
		t.Fatalf("provider called %d times after cancel", gen.callCount())
	}
	imgs, _ := repos.Images.ListByJob(ctx, job.ID)
	if len(imgs) != 1 || imgs[0].Status != domain.ImageStatusFailed {
		t.Fatalf("images = %+v", imgs)
	}
	if r.Cancel(job.ID) {
		t.Fatal("Cancel succeeded on a finished job")
	}
}

func TestPanicFailsJob(t *testing.T) {
	repos := memstore.New().Repositories()
	gen := &stubGenerator{panicOn: 1}
	r := newTestRunner(t, repos, gen, nil)

	job, err := r.StartBatch(context.Background(), BatchRequest{OwnerID: "u", Concepts: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	r.Wait()

	got, _ := repos.Jobs.Get(context.Background(), job.ID)
	if got.Status != domain.JobStatusFailed || got.ErrorMessage == "" {
		t.Fatalf("job = %+v", got)
	}
	if gen.callCount() != 1 {
		t.Fatalf("provider called %d times", gen.callCount())
	}
}

func seedSource(t *testing.T, repos domain.Repositories) *domain.GeneratedImage {
	t.Helper()
	src := &domain.GeneratedImage{
		ID:            "img-src",
		OwnerID:       "u",
		VisualConcept: "coffee cup",
		ImageURL:      "https://cdn.example.com/cup.webp",
		Prompt:        "coffee cup. Style: flat.",
		Status:        domain.ImageStatusCompleted,
		Model:         image.ModelGPTImage1,
		Size:          "1024x1024",
		Quality:       "high",
	}
	if err := repos.Images.Create(context.Background(), src); err != nil {
		t.Fatalf("seed image: %v", err)
	}
	return src
}

func TestRegenerationEditsNormalizedSource(t *testing.T) {
	repos := memstore.New().Repositories()
	var seen []string
	gen := &stubGenerator{}
	gen.onCall = func(req image.ProviderRequest) {
		data, err := os.ReadFile(req.ImagePath)
		if err != nil {
			t.Errorf("read edit source: %v", err)
			return
		}
		seen = append(seen, req.ImagePath)
		cfg, format, err := stdimage.DecodeConfig(bytes.NewReader(data))
		if err != nil || format != "png" || cfg.ColorModel != color.NRGBAModel {
			t.Errorf("edit source format=%q model=%v err=%v", format, cfg.ColorModel, err)
		}
	}
	r := newTestRunner(t, repos, gen, stubFetcher{data: pngBytes(t)})
	src := seedSource(t, repos)
	ctx := context.Background()

	job, err := r.StartRegeneration(ctx, RegenerateRequest{
		OwnerID:                "u",
		Source:                 src,
		Instruction:            "make the cup red",
		Settings:               &jsoncfg.GenerationSettings{Variations: 2},
		UseOriginalAsReference: true,
	})
	if err != nil {
		t.Fatalf("StartRegeneration: %v", err)
	}
	r.Wait()

	got, _ := repos.Jobs.Get(ctx, job.ID)
	if got.Status != domain.JobStatusCompleted || got.CompletedCount != 2 || got.Kind != domain.JobKindRegeneration {
		t.Fatalf("job = %+v", got)
	}
	if len(gen.calls) != 2 || gen.calls[0].Kind != image.OperationEdit {
		t.Fatalf("calls = %+v", gen.calls)
	}
	if gen.calls[0].Prompt != image.EditPrompt("make the cup red") || gen.calls[0].Quality != "high" {
		t.Fatalf("edit request = %+v", gen.calls[0])
	}
	imgs, _ := repos.Images.ListByJob(ctx, job.ID)
	for _, img := range imgs {
		if img.SourceImageID == nil || *img.SourceImageID != src.ID || img.RegenerationInstruction != "make the cup red" {
			t.Fatalf("image lineage = %+v", img)
		}
	}
	assertScratchEmpty(t, r, seen)
}

func TestRegenerationNormalizationFailureFailsJob(t *testing.T) {
	repos := memstore.New().Repositories()
	gen := &stubGenerator{}
	r := newTestRunner(t, repos, gen, stubFetcher{data: []byte("not an image")})
	src := seedSource(t, repos)

	job, err := r.StartRegeneration(context.Background(), RegenerateRequest{
		OwnerID:                "u",
		Source:                 src,
		Instruction:            "brighter",
		UseOriginalAsReference: true,
	})
	if err != nil {
		t.Fatalf("StartRegeneration: %v", err)
	}
	r.Wait()

	got, _ := repos.Jobs.Get(context.Background(), job.ID)
	if got.Status != domain.JobStatusFailed || got.ErrorMessage == "" {
		t.Fatalf("job = %+v", got)
	}
	if gen.callCount() != 0 {
		t.Fatalf("provider called %d times", gen.callCount())
	}
	assertScratchEmpty(t, r, nil)
}

func TestRegenerationWithoutReferenceGeneratesFresh(t *testing.T) {
	repos := memstore.New().Repositories()
	gen := &stubGenerator{}
	r := newTestRunner(t, repos, gen, nil)
	src := seedSource(t, repos)

	_, err := r.StartRegeneration(context.Background(), RegenerateRequest{
		OwnerID:     "u",
		Source:      src,
		Instruction: "add steam",
	})
	if err != nil {
		t.Fatalf("StartRegeneration: %v", err)
	}
	r.Wait()
	if len(gen.calls) != 1 || gen.calls[0].Kind != image.OperationGenerate {
		t.Fatalf("calls = %+v", gen.calls)
	}
	if want := "coffee cup. Style: flat. Adjustment: add steam"; gen.calls[0].Prompt != want {
		t.Fatalf("prompt = %q, want %q", gen.calls[0].Prompt, want)
	}
}

func TestRegenerationKeepsInstructionForLongSourcePrompt(t *testing.T) {
	repos := memstore.New().Repositories()
	gen := &stubGenerator{}
	r := newTestRunner(t, repos, gen, nil)
	src := seedSource(t, repos)
	src.Prompt = "cup. Style: " + strings.Repeat("x", image.MaxPromptLength-20)

	job, err := r.StartRegeneration(context.Background(), RegenerateRequest{
		OwnerID:     "u",
		Source:      src,
		Instruction: "make the cup red",
	})
	if err != nil {
		t.Fatalf("StartRegeneration: %v", err)
	}
	r.Wait()

	if len(gen.calls) != 1 {
		t.Fatalf("calls = %+v", gen.calls)
	}
	prompt := gen.calls[0].Prompt
	if n := utf8.RuneCountInString(prompt); n > image.MaxPromptLength {
		t.Fatalf("prompt has %d runes", n)
	}
	if !strings.HasSuffix(prompt, "... Adjustment: make the cup red") {
		t.Fatalf("instruction dropped: tail %q", prompt[len(prompt)-40:])
	}
	imgs, _ := repos.Images.ListByJob(context.Background(), job.ID)
	if len(imgs) != 1 || imgs[0].Prompt != prompt {
		t.Fatalf("stored prompt differs from the one sent")
	}
}

func TestStartRegenerationValidation(t *testing.T) {
	cases := []struct {
		name string
		req  func(src *domain.GeneratedImage) RegenerateRequest
	}{
		{
			name: "no instruction or settings",
			req: func(src *domain.GeneratedImage) RegenerateRequest {
				return RegenerateRequest{OwnerID: "u", Source: src, Instruction: "   ", UseOriginalAsReference: true}
			},
		},
		{
			name: "model cannot edit",
			req: func(src *domain.GeneratedImage) RegenerateRequest {
				return RegenerateRequest{OwnerID: "u", Source: src, Settings: &jsoncfg.GenerationSettings{Model: image.ModelDallE3, Quality: "hd"}, UseOriginalAsReference: true}
			},
		},
		{
			name: "transparent edit on dall-e-2",
			req: func(src *domain.GeneratedImage) RegenerateRequest {
				return RegenerateRequest{OwnerID: "u", Source: src, Settings: &jsoncfg.GenerationSettings{Model: image.ModelDallE2, Transparency: true}, UseOriginalAsReference: true}
			},
		},
		{
			name: "instruction over the prompt limit",
			req: func(src *domain.GeneratedImage) RegenerateRequest {
				return RegenerateRequest{OwnerID: "u", Source: src, Instruction: strings.Repeat("a", image.MaxPromptLength+1)}
			},
		},
		{
			name: "source still generating",
			req: func(src *domain.GeneratedImage) RegenerateRequest {
				pending := *src
				pending.Status = domain.ImageStatusGenerating
				return RegenerateRequest{OwnerID: "u", Source: &pending, Instruction: "x"}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repos := memstore.New().Repositories()
			gen := &stubGenerator{}
			r := newTestRunner(t, repos, gen, stubFetcher{data: pngBytes(t)})
			src := seedSource(t, repos)

			_, err := r.StartRegeneration(context.Background(), tc.req(src))
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			r.Wait()
			jobs, _ := repos.Jobs.List(context.Background(), domain.JobFilter{})
			if len(jobs) != 0 || gen.callCount() != 0 {
				t.Fatalf("jobs=%d calls=%d", len(jobs), gen.callCount())
			}
		})
	}
}

func assertScratchEmpty(t *testing.T, r *Runner, used []string) {
	t.Helper()
	entries, err := os.ReadDir(r.scratchDir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch files left behind: %v", entries)
	}
	for _, p := range used {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("scratch file %s still exists", p)
		}
	}
}
