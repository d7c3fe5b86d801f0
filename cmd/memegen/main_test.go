package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ShowBamboo/ai-meme-generator/internal/api"
	"github.com/ShowBamboo/ai-meme-generator/internal/config"
	"github.com/ShowBamboo/ai-meme-generator/internal/engine"
	"github.com/ShowBamboo/ai-meme-generator/internal/image"
	"github.com/ShowBamboo/ai-meme-generator/internal/store"
	"github.com/ShowBamboo/ai-meme-generator/pkg/models"
)

type fakeBackend struct {
	generateFn  func(req *models.GenerateRequest) (*models.GenerationResult, error)
	historyFn   func() ([]models.HistoryRecord, error)
	providersFn func() ([]models.ProviderStatus, error)
	templatesFn func() ([]models.Template, error)
	syncFn      func(req models.SyncTemplatesRequest) (*models.SyncTemplatesResult, error)
	deletedIDs  []string
}

func (f *fakeBackend) Generate(_ context.Context, req *models.GenerateRequest) (*models.GenerationResult, error) {
	if f.generateFn != nil {
		return f.generateFn(req)
	}
	return models.NewGenerationResult("gen-1", "optimized", "2024-06-01T12:00:00Z", []models.Variant{
		{ID: "v1", ImageURL: "/uploads/1.png", Provider: "clipdrop"},
	})
}

func (f *fakeBackend) History(context.Context) ([]models.HistoryRecord, error) {
	if f.historyFn != nil {
		return f.historyFn()
	}
	return nil, nil
}

func (f *fakeBackend) DeleteHistory(_ context.Context, id string) error {
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

func (f *fakeBackend) OptimizePrompt(_ context.Context, prompt string, _ models.Style, _ int, _ bool) (string, error) {
	return "optimized: " + prompt, nil
}

func (f *fakeBackend) Caption(context.Context, string, models.Style, bool) (string, error) {
	return "a caption", nil
}

func (f *fakeBackend) CaptionBatch(context.Context, string, models.Style, bool, int) ([]string, error) {
	return []string{"one", "two"}, nil
}

func (f *fakeBackend) Upscale(_ context.Context, url string) (string, error) {
	return url + "-hd", nil
}

func (f *fakeBackend) Providers(context.Context) ([]models.ProviderStatus, error) {
	if f.providersFn != nil {
		return f.providersFn()
	}
	return nil, nil
}

func (f *fakeBackend) Templates(context.Context) ([]models.Template, error) {
	if f.templatesFn != nil {
		return f.templatesFn()
	}
	return nil, nil
}

func (f *fakeBackend) SyncTemplates(_ context.Context, req models.SyncTemplatesRequest) (*models.SyncTemplatesResult, error) {
	if f.syncFn != nil {
		return f.syncFn(req)
	}
	return &models.SyncTemplatesResult{}, nil
}

func testApp(t *testing.T, backend engine.Backend) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	dataDir := t.TempDir()

	var out, errOut bytes.Buffer
	app := &App{
		In:  strings.NewReader(""),
		Out: &out,
		Err: &errOut,
		LoadConfig: func(string) (*config.Config, error) {
			return &config.Config{
				BaseURL:    "http://localhost:8000",
				TimeoutSec: 5,
				DataDir:    dataDir,
			}, nil
		},
		NewClient: func(cfg *config.Config) *api.Client {
			return api.New(&api.Config{BaseURL: cfg.BaseURL, TimeoutSec: cfg.TimeoutSec})
		},
		NewBackend: func(*api.Client) engine.Backend { return backend },
		OpenStore: func(cfg *config.Config) (*store.Store, error) {
			return store.NewStoreWithPath(cfg.DBPath())
		},
		NewSaver: image.NewSaver,
	}
	return app, &out, &errOut
}

func runCmd(t *testing.T, app *App, args ...string) error {
	t.Helper()
	cmd := newRootCmd(app)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}

func TestGenerateCmd(t *testing.T) {
	var gotReq models.GenerateRequest
	backend := &fakeBackend{
		generateFn: func(req *models.GenerateRequest) (*models.GenerationResult, error) {
			gotReq = *req
			return models.NewGenerationResult("gen-1", "a very tired cat", "", []models.Variant{
				{ID: "v1", ImageURL: "/uploads/1.png"},
				{ID: "v2", ImageURL: "/uploads/2.png"},
			})
		},
	}
	app, out, _ := testApp(t, backend)

	err := runCmd(t, app, "generate", "a tired cat", "--style", "anime", "--variants", "2")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if gotReq.Prompt != "a tired cat" || gotReq.Style != models.StyleAnime || gotReq.NumVariants != 2 {
		t.Errorf("request = %+v", gotReq)
	}
	if !strings.Contains(out.String(), "Optimized prompt: a very tired cat") {
		t.Errorf("output missing optimized prompt:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "http://localhost:8000/uploads/1.png") {
		t.Errorf("output missing resolved image URL:\n%s", out.String())
	}
}

func TestGenerateCmd_InvalidStyle(t *testing.T) {
	app, _, _ := testApp(t, &fakeBackend{})

	err := runCmd(t, app, "generate", "a cat", "--style", "graffiti")
	if err == nil || !strings.Contains(err.Error(), "invalid style") {
		t.Errorf("error = %v, want invalid style", err)
	}
}

func TestGenerateCmd_OverlongPrompt(t *testing.T) {
	app, _, _ := testApp(t, &fakeBackend{})

	err := runCmd(t, app, "generate", strings.Repeat("字", models.MaxPromptLen+1))
	if err == nil || !strings.Contains(err.Error(), "prompt too long") {
		t.Errorf("error = %v, want prompt too long", err)
	}
}

func TestGenerateCmd_Upscale(t *testing.T) {
	app, out, _ := testApp(t, &fakeBackend{})

	if err := runCmd(t, app, "generate", "a cat", "--upscale"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "Upscaled: http://localhost:8000/uploads/1.png-hd") {
		t.Errorf("output missing upscaled URL:\n%s", out.String())
	}
}

func TestGenerateCmd_BackendError(t *testing.T) {
	backend := &fakeBackend{
		generateFn: func(*models.GenerateRequest) (*models.GenerationResult, error) {
			return nil, errors.New("内容不符合规范")
		},
	}
	app, _, _ := testApp(t, backend)

	err := runCmd(t, app, "generate", "a cat")
	if err == nil || !strings.Contains(err.Error(), "内容不符合规范") {
		t.Errorf("error = %v, want the backend message", err)
	}
}

func TestGenerateCmd_PersistsPreferences(t *testing.T) {
	backend := &fakeBackend{}
	app, _, _ := testApp(t, backend)

	if err := runCmd(t, app, "generate", "a cat", "--style", "retro", "--strength", "3"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// A second invocation without flags picks up the stored preferences.
	var gotReq models.GenerateRequest
	backend.generateFn = func(req *models.GenerateRequest) (*models.GenerationResult, error) {
		gotReq = *req
		return models.NewGenerationResult("gen-2", "", "", []models.Variant{
			{ID: "v1", ImageURL: "/uploads/2.png"},
		})
	}
	if err := runCmd(t, app, "generate", "another cat"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if gotReq.Style != models.StyleRetro || gotReq.StyleStrength != 3 {
		t.Errorf("request = %+v, want persisted retro/3", gotReq)
	}
}

func TestCaptionsCmd(t *testing.T) {
	app, out, _ := testApp(t, &fakeBackend{})

	if err := runCmd(t, app, "captions", "a cat"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "[1] one") || !strings.Contains(out.String(), "[2] two") {
		t.Errorf("output = %s", out.String())
	}
}

func TestOptimizeCmd(t *testing.T) {
	app, out, _ := testApp(t, &fakeBackend{})

	if err := runCmd(t, app, "optimize", "a cat"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "optimized: a cat") {
		t.Errorf("output = %s", out.String())
	}
}

func TestHistoryCmd(t *testing.T) {
	backend := &fakeBackend{
		historyFn: func() ([]models.HistoryRecord, error) {
			return []models.HistoryRecord{
				{ID: "h1", Prompt: "我太难了", Style: models.StyleCartoon, Provider: "clipdrop"},
				{ID: "h2", Prompt: "打工人", Style: models.StyleAnime, Provider: "sd"},
			}, nil
		},
	}
	app, out, _ := testApp(t, backend)

	if err := runCmd(t, app, "history", "--provider", "sd"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.Contains(out.String(), "h1") || !strings.Contains(out.String(), "h2") {
		t.Errorf("output = %s", out.String())
	}
}

func TestHistoryDeleteCmd(t *testing.T) {
	backend := &fakeBackend{}
	app, out, _ := testApp(t, backend)

	if err := runCmd(t, app, "history", "delete", "h1"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(backend.deletedIDs) != 1 || backend.deletedIDs[0] != "h1" {
		t.Errorf("deleted ids = %v", backend.deletedIDs)
	}
	if !strings.Contains(out.String(), "Deleted: h1") {
		t.Errorf("output = %s", out.String())
	}
}

func TestHistoryFavCmd(t *testing.T) {
	app, out, _ := testApp(t, &fakeBackend{})

	if err := runCmd(t, app, "history", "fav", "h1"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "Favorited: h1") {
		t.Errorf("output = %s", out.String())
	}

	// Toggling again via a fresh invocation unfavorites, proving the flag
	// survived in the store.
	if err := runCmd(t, app, "history", "fav", "h1"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "Unfavorited: h1") {
		t.Errorf("output = %s", out.String())
	}
}

func TestProvidersCmd(t *testing.T) {
	backend := &fakeBackend{
		providersFn: func() ([]models.ProviderStatus, error) {
			return []models.ProviderStatus{
				{Name: "clipdrop", Enabled: true, Detail: "ready"},
				{Name: "mock", Enabled: false, Detail: "fallback"},
			}, nil
		},
	}
	app, out, _ := testApp(t, backend)

	if err := runCmd(t, app, "providers"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "1 of 2 enabled") {
		t.Errorf("output = %s", out.String())
	}
}

func TestTemplatesSyncCmd(t *testing.T) {
	var gotReq models.SyncTemplatesRequest
	backend := &fakeBackend{
		syncFn: func(req models.SyncTemplatesRequest) (*models.SyncTemplatesResult, error) {
			gotReq = req
			return &models.SyncTemplatesResult{
				Result: models.SyncResult{Added: 7, Skipped: 1},
			}, nil
		},
	}
	app, out, _ := testApp(t, backend)

	if err := runCmd(t, app, "templates", "sync", "--limit", "50"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if gotReq.Source != models.SyncSourceImgflip || gotReq.Limit != 50 {
		t.Errorf("sync request = %+v", gotReq)
	}
	if !strings.Contains(out.String(), "7 added, 1 skipped") {
		t.Errorf("output = %s", out.String())
	}
}

func TestTemplatesSyncCmd_URLsRequireList(t *testing.T) {
	app, _, _ := testApp(t, &fakeBackend{})

	err := runCmd(t, app, "templates", "sync", "--source", "urls")
	if err == nil || !strings.Contains(err.Error(), "--url is required") {
		t.Errorf("error = %v", err)
	}
}
