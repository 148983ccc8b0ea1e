package broadcast

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"broadcast-playout/internal/events"
)

// Schedule is the schedule coordinator. Entries describe planned broadcasts
// and are advisory only: nothing starts or stops a channel when an entry
// comes due.
type Schedule struct {
	schedule *Repository[ScheduleEntry]
	channels *Repository[Channel]
	media    *Repository[MediaAsset]
	opts     Options
}

// NewSchedule returns a schedule coordinator.
func NewSchedule(schedule *Repository[ScheduleEntry], channels *Repository[Channel], media *Repository[MediaAsset], opts Options) *Schedule {
	return &Schedule{schedule: schedule, channels: channels, media: media, opts: opts.withDefaults()}
}

// Location is the timezone day windows and local timestamps are resolved in.
func (s *Schedule) Location() *time.Location {
	return s.opts.Location
}

// Now returns the coordinator's clock reading.
func (s *Schedule) Now() time.Time {
	return s.opts.Now()
}

// Create stores a new entry. The channel and media must exist at creation
// time; later deletions do not cascade to the entry.
func (s *Schedule) Create(ctx context.Context, req ScheduleRequest) (ScheduleEntry, error) {
	var missing []string
	if req.ChannelID == 0 {
		missing = append(missing, "channelId")
	}
	if strings.TrimSpace(req.MediaID) == "" {
		missing = append(missing, "mediaId")
	}
	if req.StartTime.IsZero() {
		missing = append(missing, "startTime")
	}
	if len(missing) > 0 {
		return ScheduleEntry{}, validationError("missing required fields (%s)", strings.Join(missing, ", "))
	}
	if req.EndTime != nil && !req.EndTime.After(req.StartTime) {
		return ScheduleEntry{}, validationError("endTime must be after startTime")
	}

	if _, ok, err := s.channels.Get(ctx, strconv.Itoa(req.ChannelID)); err != nil {
		return ScheduleEntry{}, err
	} else if !ok {
		return ScheduleEntry{}, notFound("channel", req.ChannelID)
	}
	if _, ok, err := s.media.Get(ctx, req.MediaID); err != nil {
		return ScheduleEntry{}, err
	} else if !ok {
		return ScheduleEntry{}, notFound("media", req.MediaID)
	}

	entry := ScheduleEntry{
		ID:        s.opts.NewID(),
		ChannelID: req.ChannelID,
		MediaID:   req.MediaID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		CreatedAt: s.opts.Now().UTC(),
	}
	if err := s.schedule.Upsert(ctx, entry); err != nil {
		return ScheduleEntry{}, err
	}

	s.opts.Logger.Info("schedule entry created",
		"schedule_id", entry.ID,
		"channel_id", entry.ChannelID,
		"media_id", entry.MediaID,
		"start", entry.StartTime.Format(time.RFC3339),
	)
	events.Emit(ctx, s.opts.Events, s.opts.Logger, events.Event{
		Type: events.ScheduleCreated, ScheduleID: entry.ID, ChannelID: entry.ChannelID, MediaID: entry.MediaID,
	})
	return entry, nil
}

// Delete removes an entry.
func (s *Schedule) Delete(ctx context.Context, id string) error {
	removed, ok, err := s.schedule.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("schedule entry", id)
	}
	events.Emit(ctx, s.opts.Events, s.opts.Logger, events.Event{
		Type: events.ScheduleDeleted, ScheduleID: id, ChannelID: removed.ChannelID, MediaID: removed.MediaID,
	})
	return nil
}

// List returns every entry in insertion order.
func (s *Schedule) List(ctx context.Context) ([]ScheduleEntry, error) {
	return s.schedule.List(ctx)
}

// ListByChannel returns the entries of one channel in insertion order.
func (s *Schedule) ListByChannel(ctx context.Context, channelID int) ([]ScheduleEntry, error) {
	entries, err := s.schedule.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []ScheduleEntry{}
	for _, e := range entries {
		if e.ChannelID == channelID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListUpcoming returns entries starting strictly after now, earliest first.
func (s *Schedule) ListUpcoming(ctx context.Context, now time.Time) ([]ScheduleEntry, error) {
	entries, err := s.schedule.List(ctx)
	if err != nil {
		return nil, err
	}
	return upcoming(entries, now), nil
}

func upcoming(entries []ScheduleEntry, now time.Time) []ScheduleEntry {
	out := []ScheduleEntry{}
	for _, e := range entries {
		if e.StartTime.After(now) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Timeline builds the timeline view for the window around now.
func (s *Schedule) Timeline(ctx context.Context, view View, now time.Time) (Timeline, error) {
	entries, err := s.schedule.List(ctx)
	if err != nil {
		return Timeline{}, err
	}
	channels, err := s.channels.List(ctx)
	if err != nil {
		return Timeline{}, err
	}
	media, err := s.media.List(ctx)
	if err != nil {
		return Timeline{}, err
	}
	return BuildTimeline(entries, channels, media, view, now, s.opts.Location)
}

// localLayouts are the zone-less forms accepted by ParseTime, as sent by
// datetime-local inputs.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTime parses an RFC 3339 timestamp, or a zone-less local timestamp
// interpreted in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, validationError("invalid timestamp %q", s)
}
