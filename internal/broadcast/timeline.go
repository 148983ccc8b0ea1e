package broadcast

import (
	"sort"
	"strconv"
	"time"
)

// View selects the window of a timeline.
type View string

const (
	ViewToday    View = "today"
	ViewTomorrow View = "tomorrow"
	ViewWeek     View = "week"
)

// Palette colours markers by channel id modulo its length.
var Palette = [8]string{
	"#4285F4", "#EA4335", "#FBBC05", "#34A853",
	"#673AB7", "#3F51B5", "#2196F3", "#00BCD4",
}

// ParseView parses a view name; empty means today.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case "":
		return ViewToday, nil
	case ViewToday, ViewTomorrow, ViewWeek:
		return v, nil
	default:
		return "", validationError("unknown timeline view %q", s)
	}
}

// Window returns the [start, end) range of the view for the day containing
// now in loc.
func (v View) Window(now time.Time, loc *time.Location) (start, end time.Time) {
	now = now.In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	switch v {
	case ViewTomorrow:
		return midnight.AddDate(0, 0, 1), midnight.AddDate(0, 0, 2)
	case ViewWeek:
		return midnight, midnight.AddDate(0, 0, 7)
	default:
		return midnight, midnight.AddDate(0, 0, 1)
	}
}

// Marker positions one schedule entry on the timeline.
type Marker struct {
	ScheduleID  string    `json:"scheduleId"`
	ChannelID   int       `json:"channelId"`
	ChannelName string    `json:"channelName"`
	MediaID     string    `json:"mediaId"`
	MediaTitle  string    `json:"mediaTitle"`
	StartTime   time.Time `json:"startTime"`
	Date        string    `json:"date"`   // YYYY-MM-DD of StartTime in the view's timezone
	Hour        int       `json:"hour"`   // hour-of-day bucket
	Offset      float64   `json:"offset"` // minute-of-hour / 60, in [0, 1)
	Color       string    `json:"color"`
}

// Timeline is the positioned view of the schedule over a window.
type Timeline struct {
	View    View      `json:"view"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Markers []Marker  `json:"markers"`
}

// ColorFor returns the marker colour of a channel.
func ColorFor(channelID int) string {
	i := channelID % len(Palette)
	if i < 0 {
		i += len(Palette)
	}
	return Palette[i]
}

// BuildTimeline places every entry starting within the view window. Channel
// and media references that no longer resolve get placeholder labels.
func BuildTimeline(entries []ScheduleEntry, channels []Channel, media []MediaAsset, view View, now time.Time, loc *time.Location) (Timeline, error) {
	if _, err := ParseView(string(view)); err != nil {
		return Timeline{}, err
	}
	if view == "" {
		view = ViewToday
	}
	if loc == nil {
		loc = time.Local
	}
	start, end := view.Window(now, loc)

	channelNames := make(map[int]string, len(channels))
	for _, ch := range channels {
		channelNames[ch.ID] = ch.Name
	}
	titles := make(map[string]string, len(media))
	for _, m := range media {
		titles[m.ID] = m.Title
	}

	markers := []Marker{}
	for _, e := range entries {
		if e.StartTime.Before(start) || !e.StartTime.Before(end) {
			continue
		}
		local := e.StartTime.In(loc)

		name, ok := channelNames[e.ChannelID]
		if !ok {
			name = "Channel " + strconv.Itoa(e.ChannelID)
		}
		title, ok := titles[e.MediaID]
		if !ok {
			title = "Unknown media"
		}

		markers = append(markers, Marker{
			ScheduleID:  e.ID,
			ChannelID:   e.ChannelID,
			ChannelName: name,
			MediaID:     e.MediaID,
			MediaTitle:  title,
			StartTime:   e.StartTime,
			Date:        local.Format(time.DateOnly),
			Hour:        local.Hour(),
			Offset:      float64(local.Minute()) / 60,
			Color:       ColorFor(e.ChannelID),
		})
	}
	sort.SliceStable(markers, func(i, j int) bool {
		return markers[i].StartTime.Before(markers[j].StartTime)
	})

	return Timeline{View: view, Start: start, End: end, Markers: markers}, nil
}
