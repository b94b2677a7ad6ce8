package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"stylegen/internal/adapter/memstore"
	"stylegen/internal/auth"
	"stylegen/internal/concepts"
	"stylegen/internal/domain"
	"stylegen/internal/generation"
	"stylegen/internal/http/handlers"
	"stylegen/internal/imagesrc"
	"stylegen/internal/prompts"
	"stylegen/internal/providers/image"
	"stylegen/internal/providers/prompt"
	"stylegen/internal/storage"
	"stylegen/internal/styles"
)

type harness struct {
	t      *testing.T
	srv    *httptest.Server
	repos  domain.Repositories
	runner *generation.Runner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zerolog.Nop()
	repos := memstore.New().Repositories()
	root := t.TempDir()
	files, err := storage.NewFileStore(root, "/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	fetcher := imagesrc.NewFetcher(files, time.Second)
	authn, err := auth.NewService(repos.Users, auth.Options{Secret: "test-secret", Logger: logger, BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	ctx := context.Background()
	if _, err := authn.CreateUserUnchecked(ctx, "admin@example.com", "admin-password", domain.UserRoleAdmin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	for _, email := range []string{"alice@example.com", "bob@example.com"} {
		if _, err := authn.CreateUserUnchecked(ctx, email, "user-password", domain.UserRoleUser); err != nil {
			t.Fatalf("seed %s: %v", email, err)
		}
	}

	gen := image.NewStaticGenerator()
	assistant := prompt.NewStaticAssistant()
	promptSvc := prompts.NewService(repos.Prompts)
	runner, err := generation.NewRunner(repos, generation.Options{
		Generator:  gen,
		Fetcher:    fetcher,
		ScratchDir: t.TempDir(),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	app := &handlers.App{
		Auth:     authn,
		Styles:   styles.NewService(styles.Deps{Repo: repos.Styles, Assistant: assistant, Generator: gen, Prompts: promptSvc, Images: fetcher, Storage: files, Logger: logger}),
		Concepts: concepts.NewService(repos.ConceptLists, assistant, promptSvc, fetcher, logger),
		Prompts:  promptSvc,
		Runner:   runner,
		Repos:    repos,
		Fetcher:  fetcher,
		Logger:   logger,
	}
	srv := httptest.NewServer(NewRouter(app, Options{
		Authenticator: authn,
		Logger:        logger,
		CORSOrigins:   []string{"*"},
		DefaultLocale: "en",
		StaticDir:     root,
	}))
	t.Cleanup(func() {
		srv.Close()
		_ = runner.Shutdown(context.Background())
	})
	return &harness{t: t, srv: srv, repos: repos, runner: runner}
}

func (h *harness) do(method, path, token string, body any) (*http.Response, []byte) {
	h.t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			h.t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &payload)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.srv.Client().Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func (h *harness) login(email, password string) string {
	h.t.Helper()
	resp, body := h.do(http.MethodPost, "/v1/login", "", map[string]string{"email": email, "password": password})
	if resp.StatusCode != http.StatusOK {
		h.t.Fatalf("login %s = %d %s", email, resp.StatusCode, body)
	}
	var out struct {
		Token string `json:"token"`
	}
	decode(h.t, body, &out)
	return out.Token
}

func decode(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
}

type jobBody struct {
	ID       string `json:"id"`
	JobID    string `json:"jobId"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Total    int    `json:"total"`
}

func (h *harness) waitJob(token, id string) jobBody {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, body := h.do(http.MethodGet, "/v1/jobs/"+id, token, nil)
		if resp.StatusCode != http.StatusOK {
			h.t.Fatalf("get job = %d %s", resp.StatusCode, body)
		}
		var job jobBody
		decode(h.t, body, &job)
		if job.Status == "completed" || job.Status == "failed" || job.Status == "cancelled" {
			return job
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("job %s still %s", id, job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealthAndLogin(t *testing.T) {
	h := newHarness(t)
	if resp, _ := h.do(http.MethodGet, "/v1/healthz", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}

	resp, body := h.do(http.MethodPost, "/v1/login", "", map[string]string{"email": "alice@example.com", "password": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", resp.StatusCode)
	}
	var errBody struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decode(t, body, &errBody)
	if errBody.Error.Code != "unauthorized" {
		t.Fatalf("error body = %s", body)
	}

	if resp, _ := h.do(http.MethodGet, "/v1/styles", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous styles = %d", resp.StatusCode)
	}

	token := h.login("alice@example.com", "user-password")
	resp, body = h.do(http.MethodGet, "/v1/user", token, nil)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte(`"email":"alice@example.com"`)) {
		t.Fatalf("me = %d %s", resp.StatusCode, body)
	}
	if resp, _ := h.do(http.MethodPost, "/v1/logout", token, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout = %d", resp.StatusCode)
	}
	if resp, _ := h.do(http.MethodGet, "/v1/user", token, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked token = %d", resp.StatusCode)
	}
}

func TestGenerateFlow(t *testing.T) {
	h := newHarness(t)
	alice := h.login("alice@example.com", "user-password")
	bob := h.login("bob@example.com", "user-password")

	resp, body := h.do(http.MethodPost, "/v1/generate", alice, map[string]any{
		"concepts":    []string{"a red kite", "a paper boat"},
		"stylePrompt": "watercolor",
		"settings":    map[string]any{"model": "gpt-image-1", "size": "1024x1024", "variations": 2},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("generate = %d %s", resp.StatusCode, body)
	}
	var started jobBody
	decode(t, body, &started)
	if started.Total != 4 {
		t.Fatalf("total = %d", started.Total)
	}

	job := h.waitJob(alice, started.ID)
	if job.Status != "completed" || job.Progress != 100 {
		t.Fatalf("job = %+v", job)
	}

	resp, body = h.do(http.MethodGet, "/v1/jobs/"+job.ID+"/images", alice, nil)
	var images struct {
		Images []struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			ImageURL string `json:"imageUrl"`
		} `json:"images"`
	}
	decode(t, body, &images)
	if resp.StatusCode != http.StatusOK || len(images.Images) != 4 {
		t.Fatalf("images = %d %s", resp.StatusCode, body)
	}
	for _, img := range images.Images {
		if img.Status != "completed" || !bytes.HasPrefix([]byte(img.ImageURL), []byte("data:image/png;base64,")) {
			t.Fatalf("image = %+v", img)
		}
	}

	resp, body = h.do(http.MethodGet, "/v1/jobs/"+job.ID+"/images.zip", alice, nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/zip" {
		t.Fatalf("zip = %d", resp.StatusCode)
	}
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil || len(zr.File) != 4 {
		t.Fatalf("zip entries = %v, %v", zr, err)
	}
	if zr.File[0].Name != "01-a-red-kite.png" {
		t.Fatalf("first entry = %q", zr.File[0].Name)
	}

	if resp, _ := h.do(http.MethodGet, "/v1/jobs/"+job.ID, bob, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("bob get job = %d", resp.StatusCode)
	}
	if resp, _ := h.do(http.MethodGet, "/v1/jobs/missing", alice, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing job = %d", resp.StatusCode)
	}

	// Regeneration needs an instruction or settings; nothing is created otherwise.
	before, _ := h.repos.Jobs.List(context.Background(), domain.JobFilter{})
	resp, body = h.do(http.MethodPost, "/v1/regenerate", alice, map[string]any{"imageId": images.Images[0].ID})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty regenerate = %d %s", resp.StatusCode, body)
	}
	after, _ := h.repos.Jobs.List(context.Background(), domain.JobFilter{})
	if len(after) != len(before) {
		t.Fatalf("jobs after rejected regenerate = %d, want %d", len(after), len(before))
	}

	resp, body = h.do(http.MethodPost, "/v1/regenerate", alice, map[string]any{
		"imageId":     images.Images[0].ID,
		"instruction": "make the kite blue",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("regenerate = %d %s", resp.StatusCode, body)
	}
	var regen jobBody
	decode(t, body, &regen)
	if got := h.waitJob(alice, regen.ID); got.Status != "completed" {
		t.Fatalf("regeneration = %+v", got)
	}
}

func TestGenerateWireNames(t *testing.T) {
	h := newHarness(t)
	alice := h.login("alice@example.com", "user-password")

	resp, body := h.do(http.MethodPost, "/v1/generate", alice, map[string]any{
		"jobName":     "spring",
		"concepts":    []string{"a red kite"},
		"stylePrompt": "watercolor",
		"settings":    map[string]any{"model": "gpt-image-1", "size": "1024x1024"},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("generate = %d %s", resp.StatusCode, body)
	}
	var started jobBody
	decode(t, body, &started)
	if started.JobID == "" || started.JobID != started.ID || started.Name != "spring" {
		t.Fatalf("accepted body = %s", body)
	}
	h.waitJob(alice, started.JobID)

	resp, body = h.do(http.MethodGet, "/v1/jobs/"+started.JobID+"/images", alice, nil)
	var images struct {
		Images []struct {
			ID string `json:"id"`
		} `json:"images"`
	}
	decode(t, body, &images)
	if resp.StatusCode != http.StatusOK || len(images.Images) != 1 {
		t.Fatalf("images = %d %s", resp.StatusCode, body)
	}

	resp, body = h.do(http.MethodPost, "/v1/regenerate", alice, map[string]any{
		"sourceImageId": images.Images[0].ID,
		"instruction":   "brighter",
		"jobName":       "spring again",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("regenerate = %d %s", resp.StatusCode, body)
	}
	var regen jobBody
	decode(t, body, &regen)
	if regen.JobID == "" || regen.JobID != regen.ID || regen.Name != "spring again" {
		t.Fatalf("accepted body = %s", body)
	}
	if got := h.waitJob(alice, regen.JobID); got.Status != "completed" {
		t.Fatalf("regeneration = %+v", got)
	}

	resp, body = h.do(http.MethodPost, "/v1/regenerate", alice, map[string]any{"instruction": "brighter"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("regenerate without source = %d %s", resp.StatusCode, body)
	}
}

func TestGenerateRejectsIllegalSettings(t *testing.T) {
	h := newHarness(t)
	alice := h.login("alice@example.com", "user-password")
	tests := []struct {
		name     string
		settings map[string]any
	}{
		{name: "hd on dall-e-2", settings: map[string]any{"model": "dall-e-2", "quality": "hd"}},
		{name: "unsupported size", settings: map[string]any{"model": "dall-e-3", "size": "256x256"}},
		{name: "unknown model", settings: map[string]any{"model": "sdxl"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := h.do(http.MethodPost, "/v1/generate", alice, map[string]any{
				"concepts": []string{"x"},
				"settings": tc.settings,
			})
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d %s", resp.StatusCode, body)
			}
		})
	}
	jobs, _ := h.repos.Jobs.List(context.Background(), domain.JobFilter{})
	if len(jobs) != 0 {
		t.Fatalf("jobs created = %d", len(jobs))
	}
}

func TestAdminRoutes(t *testing.T) {
	h := newHarness(t)
	admin := h.login("admin@example.com", "admin-password")
	alice := h.login("alice@example.com", "user-password")

	if resp, _ := h.do(http.MethodGet, "/v1/admin/users", alice, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("user on admin route = %d", resp.StatusCode)
	}
	resp, body := h.do(http.MethodPost, "/v1/admin/create-user", admin, map[string]string{
		"email": "carol@example.com", "password": "carol-password",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user = %d %s", resp.StatusCode, body)
	}
	if resp, _ := h.do(http.MethodPost, "/v1/admin/create-user", admin, map[string]string{
		"email": "carol@example.com", "password": "carol-password",
	}); resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate user = %d", resp.StatusCode)
	}
	h.login("carol@example.com", "carol-password")
}

func TestConceptListRoutes(t *testing.T) {
	h := newHarness(t)
	alice := h.login("alice@example.com", "user-password")

	resp, body := h.do(http.MethodPost, "/v1/generate-concept-list", alice, map[string]any{
		"companyName": "Acme Coffee",
		"count":       3,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate list = %d %s", resp.StatusCode, body)
	}
	var created struct {
		ConceptList struct {
			ID       string            `json:"id"`
			Concepts []json.RawMessage `json:"concepts"`
		} `json:"conceptList"`
	}
	decode(t, body, &created)
	if len(created.ConceptList.Concepts) != 3 {
		t.Fatalf("concepts = %s", body)
	}
	id := created.ConceptList.ID

	resp, body = h.do(http.MethodPost, "/v1/concept-lists/"+id+"/revise", alice, map[string]string{"feedback": "funnier"})
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte(`"revised":false`)) {
		t.Fatalf("revise = %d %s", resp.StatusCode, body)
	}

	resp, body = h.do(http.MethodDelete, "/v1/concept-lists/"+id+"/concepts/1", alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete item = %d %s", resp.StatusCode, body)
	}
	if resp, _ := h.do(http.MethodDelete, "/v1/concept-lists/"+id+"/concepts/x", alice, nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad index = %d", resp.StatusCode)
	}
	if resp, _ := h.do(http.MethodDelete, "/v1/concept-lists/"+id+"/concepts/9", alice, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("out of range = %d", resp.StatusCode)
	}
}

func TestSessionsCascade(t *testing.T) {
	h := newHarness(t)
	alice := h.login("alice@example.com", "user-password")

	resp, body := h.do(http.MethodPost, "/v1/sessions", alice, map[string]any{"name": "scratch", "isTemporary": true})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session = %d %s", resp.StatusCode, body)
	}
	var session struct {
		ID string `json:"id"`
	}
	decode(t, body, &session)

	resp, body = h.do(http.MethodPost, "/v1/generate", alice, map[string]any{
		"sessionId": session.ID,
		"concepts":  []string{"lamp"},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("generate = %d %s", resp.StatusCode, body)
	}
	var job jobBody
	decode(t, body, &job)
	h.waitJob(alice, job.ID)

	resp, body = h.do(http.MethodDelete, "/v1/sessions/temporary", alice, nil)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte(`"deleted":1`)) {
		t.Fatalf("delete temporary = %d %s", resp.StatusCode, body)
	}
	if resp, _ := h.do(http.MethodGet, "/v1/jobs/"+job.ID, alice, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("job after session delete = %d", resp.StatusCode)
	}
}
