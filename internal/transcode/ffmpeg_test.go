package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"broadcast-playout/internal/platform/logger"
)

const samplePlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:10.000000,
segment000.ts
#EXTINF:4.500000,
segment001.ts
#EXT-X-ENDLIST
`

type fakeRunner struct {
	mu     sync.Mutex
	calls  [][]string
	ffmpeg func(ctx context.Context, args []string) error
	probe  []byte
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	switch name {
	case "ffprobe":
		return f.probe, f.err
	case "ffmpeg":
		if f.ffmpeg != nil {
			return nil, f.ffmpeg(ctx, args)
		}
		return nil, f.err
	}
	return nil, errors.New("unexpected program " + name)
}

// writeHLS emulates a successful ffmpeg HLS run; the output path is the last argument.
func writeHLS(playlist string) func(context.Context, []string) error {
	return func(_ context.Context, args []string) error {
		out := args[len(args)-1]
		dir := filepath.Dir(out)
		if strings.HasSuffix(out, ThumbnailName) {
			return os.WriteFile(out, []byte("jpg"), 0o644)
		}
		for _, name := range []string{"segment000.ts", "segment001.ts"} {
			if err := os.WriteFile(filepath.Join(dir, name), []byte("ts"), 0o644); err != nil {
				return err
			}
		}
		return os.WriteFile(out, []byte(playlist), 0o644)
	}
}

func newEngine(t *testing.T, run Runner, timeout time.Duration) *FFmpeg {
	t.Helper()
	return NewFFmpeg(Config{
		StreamsDir:      t.TempDir(),
		SegmentDuration: 6,
		Timeout:         timeout,
	}, run, logger.Discard())
}

func TestFFmpeg_Transcode(t *testing.T) {
	run := &fakeRunner{ffmpeg: writeHLS(samplePlaylist)}
	e := newEngine(t, run, time.Minute)

	if err := e.Prepare("a1"); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	art, err := e.Transcode(context.Background(), "/uploads/in.mp4", "a1")
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if art.URL != "/streams/a1/playlist.m3u8" {
		t.Errorf("URL: got %q", art.URL)
	}
	if art.Locator != filepath.Join(e.Dir("a1"), PlaylistName) {
		t.Errorf("Locator: got %q", art.Locator)
	}

	args := strings.Join(run.calls[0], " ")
	for _, want := range []string{
		"-profile:v baseline", "-level 3.0", "-start_number 0",
		"-hls_time 6", "-hls_list_size 0", "-f hls", "segment%03d.ts",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("ffmpeg args missing %q: %s", want, args)
		}
	}

	data, err := os.ReadFile(art.Locator)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "#EXT-X-PLAYLIST-TYPE:VOD") || !strings.Contains(out, "#EXT-X-ENDLIST") {
		t.Errorf("playlist not rewritten as VOD:\n%s", out)
	}
	if !strings.Contains(out, "#EXT-X-TARGETDURATION:10") {
		t.Errorf("target duration: %s", out)
	}
}

func TestFFmpeg_Transcode_failures(t *testing.T) {
	tests := []struct {
		name   string
		ffmpeg func(context.Context, []string) error
	}{
		{"process error", func(context.Context, []string) error { return errors.New("exit status 1") }},
		{"no playlist", func(context.Context, []string) error { return nil }},
		{"empty playlist", writeHLS("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-ENDLIST\n")},
		{"master playlist", writeHLS("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1280000\nlow.m3u8\n")},
		{"missing segment", writeHLS(samplePlaylist + "#EXTINF:3.0,\nsegment009.ts\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, &fakeRunner{ffmpeg: tt.ffmpeg}, time.Minute)
			if err := e.Prepare("a1"); err != nil {
				t.Fatal(err)
			}
			_, err := e.Transcode(context.Background(), "in.mp4", "a1")
			if !errors.Is(err, ErrFailed) {
				t.Errorf("got %v want ErrFailed", err)
			}
			if errors.Is(err, ErrTimeout) {
				t.Errorf("%v should not be a timeout", err)
			}
		})
	}
}

func TestFFmpeg_Transcode_timeout(t *testing.T) {
	run := &fakeRunner{ffmpeg: func(ctx context.Context, _ []string) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	e := newEngine(t, run, 20*time.Millisecond)
	_ = e.Prepare("a1")

	_, err := e.Transcode(context.Background(), "in.mp4", "a1")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v want ErrTimeout", err)
	}
	if !errors.Is(err, ErrFailed) {
		t.Error("a timeout is also a transcode failure")
	}
}

func TestFFmpeg_PrepareRelease(t *testing.T) {
	e := newEngine(t, &fakeRunner{}, time.Minute)
	if err := e.Prepare("a1"); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if fi, err := os.Stat(e.Dir("a1")); err != nil || !fi.IsDir() {
		t.Fatalf("namespace not created: %v", err)
	}
	if err := e.Release("a1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(e.Dir("a1")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("namespace still present: %v", err)
	}
	if err := e.Release("a1"); err != nil {
		t.Errorf("second Release: %v", err)
	}

	for _, bad := range []string{"", "..", "a/b", "."} {
		if err := e.Prepare(bad); !errors.Is(err, ErrInvalidAsset) {
			t.Errorf("Prepare(%q): got %v want ErrInvalidAsset", bad, err)
		}
	}
}

func TestFFmpeg_ProbeDuration(t *testing.T) {
	tests := []struct {
		out     string
		want    int
		wantErr bool
	}{
		{`{"format":{"duration":"5400.000000"}}`, 90, false},
		{`{"format":{"duration":"89.9"}}`, 1, false},
		{`{"format":{"duration":"90.0"}}`, 2, false},
		{`{"format":{"duration":"29.9"}}`, 0, false},
		{`{"format":{}}`, 0, true},
		{`not json`, 0, true},
	}
	for _, tt := range tests {
		e := newEngine(t, &fakeRunner{probe: []byte(tt.out)}, time.Minute)
		got, err := e.ProbeDuration(context.Background(), "in.mp4")
		if tt.wantErr {
			if !errors.Is(err, ErrProbe) {
				t.Errorf("%s: got %v want ErrProbe", tt.out, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%s: got %d, %v want %d", tt.out, got, err, tt.want)
		}
	}
}

func TestFFmpeg_GenerateThumbnail(t *testing.T) {
	run := &fakeRunner{ffmpeg: writeHLS(samplePlaylist)}
	e := newEngine(t, run, time.Minute)
	_ = e.Prepare("a1")

	art, err := e.GenerateThumbnail(context.Background(), "in.mp4", "a1")
	if err != nil {
		t.Fatalf("GenerateThumbnail: %v", err)
	}
	if art.URL != "/streams/a1/thumbnail.jpg" {
		t.Errorf("URL: got %q", art.URL)
	}
	if !strings.Contains(strings.Join(run.calls[0], " "), "-s 320x180") {
		t.Errorf("thumbnail size not requested: %v", run.calls[0])
	}

	failing := newEngine(t, &fakeRunner{err: errors.New("boom")}, time.Minute)
	_ = failing.Prepare("a2")
	if _, err := failing.GenerateThumbnail(context.Background(), "in.mp4", "a2"); !errors.Is(err, ErrThumbnail) {
		t.Errorf("got %v want ErrThumbnail", err)
	}
}

func TestFFmpeg_derivedTasksHonourTimeout(t *testing.T) {
	stalled := runnerFunc(func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	e := newEngine(t, stalled, 20*time.Millisecond)
	_ = e.Prepare("a1")

	if _, err := e.ProbeDuration(context.Background(), "in.mp4"); !errors.Is(err, ErrProbe) {
		t.Errorf("ProbeDuration: got %v want ErrProbe", err)
	}
	if _, err := e.GenerateThumbnail(context.Background(), "in.mp4", "a1"); !errors.Is(err, ErrThumbnail) {
		t.Errorf("GenerateThumbnail: got %v want ErrThumbnail", err)
	}
}

type runnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}
