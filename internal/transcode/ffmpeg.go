package transcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config configures an FFmpeg engine.
type Config struct {
	FFmpegPath      string
	FFprobePath     string
	StreamsDir      string
	SegmentDuration int           // seconds per HLS segment
	Timeout         time.Duration // upper bound for one Transcode call
}

// FFmpeg is the transcode engine. Each asset gets its own namespace
// StreamsDir/{assetID} holding the playlist, its segments and the thumbnail.
type FFmpeg struct {
	cfg    Config
	run    Runner
	logger *slog.Logger
}

// NewFFmpeg returns an engine. A nil runner uses ExecRunner.
func NewFFmpeg(cfg Config, run Runner, logger *slog.Logger) *FFmpeg {
	if run == nil {
		run = ExecRunner{}
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.SegmentDuration <= 0 {
		cfg.SegmentDuration = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpeg{cfg: cfg, run: run, logger: logger}
}

// Dir returns the namespace directory of an asset.
func (e *FFmpeg) Dir(assetID string) string {
	return filepath.Join(e.cfg.StreamsDir, assetID)
}

// Prepare creates the namespace of an asset. It must precede any other call
// for the asset.
func (e *FFmpeg) Prepare(assetID string) error {
	if err := checkAssetID(assetID); err != nil {
		return err
	}
	if err := os.MkdirAll(e.Dir(assetID), 0o755); err != nil {
		return fmt.Errorf("prepare %s: %w", assetID, err)
	}
	return nil
}

// Release removes the namespace of an asset and everything in it. Releasing
// an absent namespace is not an error.
func (e *FFmpeg) Release(assetID string) error {
	if err := checkAssetID(assetID); err != nil {
		return err
	}
	if err := os.RemoveAll(e.Dir(assetID)); err != nil {
		return fmt.Errorf("release %s: %w", assetID, err)
	}
	return nil
}

// Transcode converts source into an HLS VOD playlist inside the asset
// namespace. The returned error wraps ErrFailed, or ErrTimeout when the
// configured deadline expired.
func (e *FFmpeg) Transcode(ctx context.Context, source, assetID string) (Artifact, error) {
	if err := checkAssetID(assetID); err != nil {
		return Artifact{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	dir := e.Dir(assetID)
	playlist := filepath.Join(dir, PlaylistName)
	args := []string{
		"-y",
		"-i", source,
		"-profile:v", "baseline",
		"-level", "3.0",
		"-start_number", "0",
		"-hls_time", strconv.Itoa(e.cfg.SegmentDuration),
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(dir, segmentFormat),
		"-f", "hls",
		playlist,
	}

	start := time.Now()
	if _, err := e.run.Run(ctx, e.cfg.FFmpegPath, args...); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Artifact{}, fmt.Errorf("%w after %s: %v", ErrTimeout, e.cfg.Timeout, err)
		}
		return Artifact{}, fmt.Errorf("%w: %v", ErrFailed, err)
	}

	segments, err := normalizePlaylist(playlist)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrFailed, err)
	}

	e.logger.Info("transcode complete",
		"asset_id", assetID,
		"segments", len(segments),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return Artifact{Locator: playlist, URL: StreamURL(assetID)}, nil
}

// ProbeDuration returns the duration of source in whole minutes, rounded half
// away from zero. It is bounded by the same deadline as Transcode.
func (e *FFmpeg) ProbeDuration(ctx context.Context, source string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	out, err := e.run.Run(ctx, e.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		source,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbe, err)
	}
	return parseProbeMinutes(out)
}

func parseProbeMinutes(out []byte) (int, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("%w: parse ffprobe output: %v", ErrProbe, err)
	}
	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("%w: bad duration %q", ErrProbe, probe.Format.Duration)
	}
	return int(math.Round(seconds / 60)), nil
}

// GenerateThumbnail extracts one 320x180 frame one second into source. It is
// bounded by the same deadline as Transcode.
func (e *FFmpeg) GenerateThumbnail(ctx context.Context, source, assetID string) (Artifact, error) {
	if err := checkAssetID(assetID); err != nil {
		return Artifact{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	out := filepath.Join(e.Dir(assetID), ThumbnailName)
	_, err := e.run.Run(ctx, e.cfg.FFmpegPath,
		"-y",
		"-ss", "00:00:01",
		"-i", source,
		"-vframes", "1",
		"-s", "320x180",
		out,
	)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrThumbnail, err)
	}
	if _, err := os.Stat(out); err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrThumbnail, err)
	}
	return Artifact{Locator: out, URL: ThumbnailURL(assetID)}, nil
}
