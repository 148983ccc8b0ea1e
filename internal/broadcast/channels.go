package broadcast

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"broadcast-playout/internal/events"
)

// ChannelCount is the size of the fixed channel pool.
const ChannelCount = 8

// DefaultChannels returns the provisioned pool: Channel 1..8, all off air.
func DefaultChannels() []Channel {
	out := make([]Channel, ChannelCount)
	for i := range out {
		out[i] = Channel{ID: i + 1, Name: fmt.Sprintf("Channel %d", i+1)}
	}
	return out
}

// Channels is the channel controller. A channel is either off air
// (CurrentMedia nil) or on air with a media reference. Transitions only
// happen on explicit commands; the schedule never triggers them.
type Channels struct {
	channels *Repository[Channel]
	media    *Repository[MediaAsset]
	opts     Options
}

// NewChannels returns a channel controller.
func NewChannels(channels *Repository[Channel], media *Repository[MediaAsset], opts Options) *Channels {
	return &Channels{channels: channels, media: media, opts: opts.withDefaults()}
}

// List returns every channel.
func (s *Channels) List(ctx context.Context) ([]Channel, error) {
	return s.channels.List(ctx)
}

// Get returns a channel by id.
func (s *Channels) Get(ctx context.Context, id int) (Channel, error) {
	ch, ok, err := s.channels.Get(ctx, strconv.Itoa(id))
	if err != nil {
		return Channel{}, err
	}
	if !ok {
		return Channel{}, notFound("channel", id)
	}
	return ch, nil
}

// Start puts the channel on air with mediaID, replacing any current media.
// The media must exist; otherwise the channel is left unchanged.
func (s *Channels) Start(ctx context.Context, id int, mediaID string) (Channel, error) {
	if strings.TrimSpace(mediaID) == "" {
		return Channel{}, validationError("media ID is required")
	}
	if err := s.resolveMedia(ctx, mediaID); err != nil {
		return Channel{}, err
	}
	before, after, err := s.mutate(ctx, id, func(ch *Channel) error {
		ch.IsActive = true
		ch.CurrentMedia = &mediaID
		return nil
	})
	if err != nil {
		return Channel{}, err
	}
	s.record(ctx, before, after)
	return after, nil
}

// Stop takes the channel off air. Stopping an off-air channel is a no-op.
func (s *Channels) Stop(ctx context.Context, id int) (Channel, error) {
	before, after, err := s.mutate(ctx, id, func(ch *Channel) error {
		ch.IsActive = false
		ch.CurrentMedia = nil
		return nil
	})
	if err != nil {
		return Channel{}, err
	}
	s.record(ctx, before, after)
	return after, nil
}

// Rename changes the channel name without touching its on-air state.
func (s *Channels) Rename(ctx context.Context, id int, name string) (Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Channel{}, validationError("channel name must not be empty")
	}
	before, after, err := s.mutate(ctx, id, func(ch *Channel) error {
		ch.Name = name
		return nil
	})
	if err != nil {
		return Channel{}, err
	}
	s.record(ctx, before, after)
	return after, nil
}

// Update applies a combined edit atomically:
//   - Name renames the channel.
//   - IsActive=false stops it; CurrentMedia is ignored.
//   - A non-empty CurrentMedia starts it with that media.
//   - IsActive=true alone restarts it with its current media, which must still exist.
func (s *Channels) Update(ctx context.Context, id int, u ChannelUpdate) (Channel, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return Channel{}, validationError("channel name must not be empty")
	}
	stopping := u.IsActive != nil && !*u.IsActive
	var media string
	if u.CurrentMedia != nil {
		media = strings.TrimSpace(*u.CurrentMedia)
	}
	if !stopping && media != "" {
		if err := s.resolveMedia(ctx, media); err != nil {
			return Channel{}, err
		}
	}

	before, after, err := s.mutate(ctx, id, func(ch *Channel) error {
		if u.Name != nil {
			ch.Name = strings.TrimSpace(*u.Name)
		}
		switch {
		case stopping:
			ch.IsActive = false
			ch.CurrentMedia = nil
		case media != "":
			ch.IsActive = true
			ch.CurrentMedia = &media
		case u.IsActive != nil:
			if ch.CurrentMedia == nil {
				return validationError("currentMedia is required to put channel %d on air", ch.ID)
			}
			if err := s.resolveMedia(ctx, *ch.CurrentMedia); err != nil {
				return err
			}
			ch.IsActive = true
		}
		return nil
	})
	if err != nil {
		return Channel{}, err
	}
	s.record(ctx, before, after)
	return after, nil
}

func (s *Channels) resolveMedia(ctx context.Context, mediaID string) error {
	_, ok, err := s.media.Get(ctx, mediaID)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("media", mediaID)
	}
	return nil
}

// mutate applies fn to channel id under the collection lock and returns the
// channel before and after.
func (s *Channels) mutate(ctx context.Context, id int, fn func(*Channel) error) (before, after Channel, err error) {
	err = s.channels.Mutate(ctx, func(items []Channel) ([]Channel, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			before = items[i]
			if err := fn(&items[i]); err != nil {
				return nil, err
			}
			after = items[i]
			return items, nil
		}
		return nil, notFound("channel", id)
	})
	return before, after, err
}

// record logs and publishes the transitions between before and after.
func (s *Channels) record(ctx context.Context, before, after Channel) {
	log := s.opts.Logger
	if before.Name != after.Name {
		log.Info("channel renamed", "channel_id", after.ID, "name", after.Name)
		events.Emit(ctx, s.opts.Events, log, events.Event{Type: events.ChannelRenamed, ChannelID: after.ID})
	}

	switch {
	case after.OnAir() && (!before.OnAir() || *before.CurrentMedia != *after.CurrentMedia):
		log.Info("channel on air", "channel_id", after.ID, "media_id", *after.CurrentMedia)
		s.opts.Metrics.IncTransition("start")
		events.Emit(ctx, s.opts.Events, log, events.Event{Type: events.ChannelStarted, ChannelID: after.ID, MediaID: *after.CurrentMedia})
	case !after.OnAir() && before.OnAir():
		log.Info("channel off air", "channel_id", after.ID)
		s.opts.Metrics.IncTransition("stop")
		events.Emit(ctx, s.opts.Events, log, events.Event{Type: events.ChannelStopped, ChannelID: after.ID})
	}
}
