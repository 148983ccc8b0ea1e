package broadcast

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"broadcast-playout/internal/events"
	"broadcast-playout/internal/transcode"
)

// Transcoder is the engine the catalog drives during ingestion.
type Transcoder interface {
	Prepare(assetID string) error
	Release(assetID string) error
	Transcode(ctx context.Context, source, assetID string) (transcode.Artifact, error)
	ProbeDuration(ctx context.Context, source string) (int, error)
	GenerateThumbnail(ctx context.Context, source, assetID string) (transcode.Artifact, error)
}

const defaultTitle = "Untitled"

// Catalog manages media assets and their derived artifacts.
type Catalog struct {
	media  *Repository[MediaAsset]
	engine Transcoder
	pool   *transcode.Pool
	opts   Options
}

// NewCatalog returns a catalog. Engine work runs on pool.
func NewCatalog(media *Repository[MediaAsset], engine Transcoder, pool *transcode.Pool, opts Options) *Catalog {
	return &Catalog{media: media, engine: engine, pool: pool, opts: opts.withDefaults()}
}

// List returns every asset.
func (c *Catalog) List(ctx context.Context) ([]MediaAsset, error) {
	return c.media.List(ctx)
}

// Get returns the asset with the given id.
func (c *Catalog) Get(ctx context.Context, id string) (MediaAsset, error) {
	asset, ok, err := c.media.Get(ctx, id)
	if err != nil {
		return MediaAsset{}, err
	}
	if !ok {
		return MediaAsset{}, notFound("media", id)
	}
	return asset, nil
}

// Ingest transcodes the source file and commits a new asset. Probing and
// thumbnail extraction are best-effort and run alongside the transcode. If
// the transcode fails nothing is committed, and the output namespace and the
// source file are removed.
func (c *Catalog) Ingest(ctx context.Context, req IngestRequest) (MediaAsset, error) {
	if strings.TrimSpace(req.SourcePath) == "" {
		return MediaAsset{}, validationError("no file uploaded")
	}
	log := c.opts.Logger

	id := c.opts.NewID()
	if err := c.engine.Prepare(id); err != nil {
		c.removeSource(req.SourcePath)
		c.opts.Metrics.IncTranscodeFailure("error")
		return MediaAsset{}, newError(ErrTranscodeFailure, "failed to prepare stream output", err)
	}

	// Cancelled when the transcode fails so the derived tasks stop early.
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var durationF <-chan transcode.Result[int]
	if req.Duration == nil {
		durationF = transcode.Submit(taskCtx, c.pool, func(ctx context.Context) (int, error) {
			return c.engine.ProbeDuration(ctx, req.SourcePath)
		})
	}
	var elapsed time.Duration
	streamF := transcode.Submit(taskCtx, c.pool, func(ctx context.Context) (transcode.Artifact, error) {
		start := time.Now()
		defer func() { elapsed = time.Since(start) }()
		return c.engine.Transcode(ctx, req.SourcePath, id)
	})
	thumbF := transcode.Submit(taskCtx, c.pool, func(ctx context.Context) (transcode.Artifact, error) {
		return c.engine.GenerateThumbnail(ctx, req.SourcePath, id)
	})

	stream := <-streamF
	if stream.Err != nil {
		cancel()
	}
	// Every task writes into the namespace, so all of them must finish before
	// it can be released.
	thumb := <-thumbF
	var probe transcode.Result[int]
	if durationF != nil {
		probe = <-durationF
	}

	if stream.Err != nil {
		c.abortIngest(id, req.SourcePath)
		if errors.Is(stream.Err, transcode.ErrTimeout) {
			c.opts.Metrics.IncTranscodeFailure("timeout")
			log.Error("transcode timed out", "media_id", id, "error", stream.Err)
			return MediaAsset{}, newError(ErrTranscodeTimeout, "transcoding timed out", stream.Err)
		}
		c.opts.Metrics.IncTranscodeFailure("error")
		log.Error("transcode failed", "media_id", id, "error", stream.Err)
		return MediaAsset{}, newError(ErrTranscodeFailure, "failed to transcode media", stream.Err)
	}

	duration := 0
	switch {
	case durationF == nil:
		duration = *req.Duration
	case probe.Err != nil:
		log.Warn("duration probe failed", "media_id", id, "error", newError(ErrDerivedArtifact, "duration", probe.Err))
		c.opts.Metrics.IncDerivedFailure("duration")
	default:
		duration = probe.Value
	}
	c.opts.Metrics.ObserveTranscode(elapsed)

	var thumbnailURL *string
	if thumb.Err != nil {
		log.Warn("thumbnail generation failed", "media_id", id, "error", newError(ErrDerivedArtifact, "thumbnail", thumb.Err))
		c.opts.Metrics.IncDerivedFailure("thumbnail")
	} else {
		u := thumb.Value.URL
		thumbnailURL = &u
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultTitle
	}
	asset := MediaAsset{
		ID:           id,
		Title:        title,
		Description:  req.Description,
		FileName:     req.FileName,
		OriginalPath: req.SourcePath,
		StreamPath:   stream.Value.Locator,
		StreamURL:    stream.Value.URL,
		ThumbnailURL: thumbnailURL,
		UploadDate:   c.opts.Now().UTC(),
		Metadata: Metadata{
			Year:     req.Year,
			Genre:    req.Genre,
			Duration: duration,
		},
	}
	if err := c.media.Upsert(ctx, asset); err != nil {
		c.abortIngest(id, req.SourcePath)
		log.Error("commit media failed", "media_id", id, "error", err)
		return MediaAsset{}, err
	}

	c.opts.Metrics.IncIngested()
	log.Info("media ingested", "media_id", id, "title", asset.Title, "duration_min", duration)
	events.Emit(ctx, c.opts.Events, log, events.Event{Type: events.MediaIngested, MediaID: id})
	return asset, nil
}

func (c *Catalog) abortIngest(id, source string) {
	if err := c.engine.Release(id); err != nil {
		c.opts.Logger.Warn("release stream output failed", "media_id", id, "error", err)
	}
	c.removeSource(source)
}

func (c *Catalog) removeSource(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.opts.Logger.Warn("remove source file failed", "path", path, "error", err)
	}
}

// Update merges u into the asset. Only supplied fields change.
func (c *Catalog) Update(ctx context.Context, id string, u MediaUpdate) (MediaAsset, error) {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return MediaAsset{}, validationError("title must not be empty")
	}
	if u.Metadata != nil && u.Metadata.Duration != nil && *u.Metadata.Duration < 0 {
		return MediaAsset{}, validationError("duration must not be negative")
	}

	var updated MediaAsset
	err := c.media.Mutate(ctx, func(items []MediaAsset) ([]MediaAsset, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			applyMediaUpdate(&items[i], u)
			updated = items[i]
			return items, nil
		}
		return nil, notFound("media", id)
	})
	if err != nil {
		return MediaAsset{}, err
	}
	events.Emit(ctx, c.opts.Events, c.opts.Logger, events.Event{Type: events.MediaUpdated, MediaID: id})
	return updated, nil
}

func applyMediaUpdate(m *MediaAsset, u MediaUpdate) {
	if u.Title != nil {
		m.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		m.Description = *u.Description
	}
	if md := u.Metadata; md != nil {
		if md.Year != nil {
			m.Metadata.Year = *md.Year
		}
		if md.Genre != nil {
			m.Metadata.Genre = *md.Genre
		}
		if md.Duration != nil {
			m.Metadata.Duration = *md.Duration
		}
	}
}

// Delete removes the asset's derived artifacts and source file, then its
// record. File removal failures are reported as warnings; the delete fails
// only if the record could not be removed. Channels and schedule entries
// referring to the asset are left as they are.
func (c *Catalog) Delete(ctx context.Context, id string) (DeleteReport, error) {
	asset, err := c.Get(ctx, id)
	if err != nil {
		return DeleteReport{}, err
	}
	log := c.opts.Logger
	report := DeleteReport{ID: id}

	if err := c.engine.Release(id); err != nil {
		log.Warn("remove stream output failed", "media_id", id, "error", err)
		report.Warnings = append(report.Warnings, "stream output: "+err.Error())
	}
	if asset.OriginalPath != "" {
		if err := os.Remove(asset.OriginalPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("remove source file failed", "media_id", id, "error", err)
			report.Warnings = append(report.Warnings, "source file: "+err.Error())
		}
	}

	if _, ok, err := c.media.Delete(ctx, id); err != nil {
		log.Error("delete media record failed", "media_id", id, "error", err)
		return report, err
	} else if !ok {
		return report, notFound("media", id)
	}

	report.Success = true
	log.Info("media deleted", "media_id", id, "warnings", len(report.Warnings))
	events.Emit(ctx, c.opts.Events, log, events.Event{Type: events.MediaDeleted, MediaID: id})
	return report, nil
}
