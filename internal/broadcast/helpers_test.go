package broadcast

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"broadcast-playout/internal/events"
	"broadcast-playout/internal/platform/logger"
	"broadcast-playout/internal/store"
	"broadcast-playout/internal/transcode"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// fakeEngine stands in for ffmpeg: it writes placeholder outputs into the
// asset namespace and fails on demand.
type fakeEngine struct {
	dir string

	mu           sync.Mutex
	transcodeErr error
	probeErr     error
	thumbErr     error
	releaseErr   error
	duration     int
	probes       int
	released     []string
}

func (e *fakeEngine) Prepare(id string) error {
	return os.MkdirAll(filepath.Join(e.dir, id), 0o755)
}

func (e *fakeEngine) Release(id string) error {
	e.mu.Lock()
	e.released = append(e.released, id)
	err := e.releaseErr
	e.mu.Unlock()
	if err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(e.dir, id))
}

func (e *fakeEngine) Transcode(_ context.Context, _, id string) (transcode.Artifact, error) {
	e.mu.Lock()
	err := e.transcodeErr
	e.mu.Unlock()
	if err != nil {
		return transcode.Artifact{}, err
	}
	p := filepath.Join(e.dir, id, transcode.PlaylistName)
	if err := os.WriteFile(p, []byte("#EXTM3U\n"), 0o644); err != nil {
		return transcode.Artifact{}, err
	}
	return transcode.Artifact{Locator: p, URL: transcode.StreamURL(id)}, nil
}

func (e *fakeEngine) ProbeDuration(context.Context, string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.probes++
	return e.duration, e.probeErr
}

func (e *fakeEngine) GenerateThumbnail(_ context.Context, _, id string) (transcode.Artifact, error) {
	e.mu.Lock()
	err := e.thumbErr
	e.mu.Unlock()
	if err != nil {
		return transcode.Artifact{}, err
	}
	return transcode.Artifact{Locator: filepath.Join(e.dir, id, transcode.ThumbnailName), URL: transcode.ThumbnailURL(id)}, nil
}

func (e *fakeEngine) releasedIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.released...)
}

type testEnv struct {
	svc     *Service
	engine  *fakeEngine
	events  *events.Recorder
	uploads string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pool, err := transcode.NewPool(4)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Release)

	engine := &fakeEngine{dir: t.TempDir(), duration: 90}
	rec := &events.Recorder{}
	svc := NewService(store.NewInMemoryStore(), store.NewLocalLocker(), engine, pool, Options{
		Logger:   logger.Discard(),
		Events:   rec,
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	})
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return &testEnv{svc: svc, engine: engine, events: rec, uploads: t.TempDir()}
}

// source creates an uploaded file and returns its path.
func (env *testEnv) source(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(env.uploads, name)
	if err := os.WriteFile(p, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func (env *testEnv) ingest(t *testing.T, title string) MediaAsset {
	t.Helper()
	asset, err := env.svc.Catalog.Ingest(context.Background(), IngestRequest{
		SourcePath: env.source(t, title+".mp4"),
		FileName:   title + ".mp4",
		Title:      title,
	})
	if err != nil {
		t.Fatalf("Ingest %s: %v", title, err)
	}
	return asset
}

func (env *testEnv) eventTypes() []events.Type {
	var out []events.Type
	for _, e := range env.events.Events() {
		out = append(out, e.Type)
	}
	return out
}
