// Package broadcast implements the playout core: the media catalog, the
// channel controller and the schedule coordinator, plus their HTTP surface.
package broadcast

import (
	"context"
	"log/slog"
	"time"

	"broadcast-playout/internal/events"
	"broadcast-playout/internal/platform/metrics"
	"broadcast-playout/internal/store"
	"broadcast-playout/internal/transcode"

	"github.com/google/uuid"
)

// Options carries the collaborators shared by the components. Zero values
// fall back to no-op or system defaults.
type Options struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Events   events.Publisher
	Location *time.Location
	Now      func() time.Time
	NewID    func() string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Events == nil {
		o.Events = events.Nop{}
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Service wires the three components over one store.
type Service struct {
	Catalog  *Catalog
	Channels *Channels
	Schedule *Schedule

	media    *Repository[MediaAsset]
	channels *Repository[Channel]
	schedule *Repository[ScheduleEntry]
	opts     Options
}

// NewService builds the components. locker serialises writes per collection.
func NewService(s store.Store, locker store.Locker, engine Transcoder, pool *transcode.Pool, opts Options) *Service {
	opts = opts.withDefaults()
	media := newMediaRepository(s, locker)
	channels := newChannelRepository(s, locker)
	schedule := newScheduleRepository(s, locker)

	return &Service{
		Catalog:  NewCatalog(media, engine, pool, opts),
		Channels: NewChannels(channels, media, opts),
		Schedule: NewSchedule(schedule, channels, media, opts),
		media:    media,
		channels: channels,
		schedule: schedule,
		opts:     opts,
	}
}

// Init repairs missing or invalid collections. Valid data is left untouched.
func (s *Service) Init(ctx context.Context) error {
	for name, ensure := range map[string]func(context.Context) (bool, error){
		string(store.Media):    s.media.Ensure,
		string(store.Channels): s.channels.Ensure,
		string(store.Schedule): s.schedule.Ensure,
	} {
		repaired, err := ensure(ctx)
		if err != nil {
			return err
		}
		if repaired {
			s.opts.Logger.Info("collection initialised", "collection", name)
		}
	}
	return nil
}

// RefreshGauges updates the state gauges; it is called before each scrape.
func (s *Service) RefreshGauges(ctx context.Context) {
	if channels, err := s.channels.List(ctx); err == nil {
		onAir := 0
		for _, ch := range channels {
			if ch.OnAir() {
				onAir++
			}
		}
		s.opts.Metrics.SetChannelsOnAir(onAir)
	}
	if entries, err := s.schedule.List(ctx); err == nil {
		s.opts.Metrics.SetScheduleEntries(len(entries))
	}
}
