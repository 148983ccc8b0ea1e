package broadcast

import (
	"errors"
	"testing"
	"time"
)

func TestBuildTimeline_markerPosition(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	entries := []ScheduleEntry{
		{ID: "e1", ChannelID: 3, MediaID: "m1", StartTime: time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)},
	}
	channels := []Channel{{ID: 3, Name: "Movies"}}
	media := []MediaAsset{{ID: "m1", Title: "Feature"}}

	tl, err := BuildTimeline(entries, channels, media, ViewToday, now, time.UTC)
	if err != nil {
		t.Fatalf("BuildTimeline: %v", err)
	}
	if len(tl.Markers) != 1 {
		t.Fatalf("got %d markers want 1", len(tl.Markers))
	}
	m := tl.Markers[0]
	if m.Hour != 14 {
		t.Errorf("Hour: got %d want 14", m.Hour)
	}
	if m.Offset != 0.5 {
		t.Errorf("Offset: got %v want 0.5", m.Offset)
	}
	if m.Color != Palette[3] || m.Color != "#34A853" {
		t.Errorf("Color: got %s want %s", m.Color, Palette[3])
	}
	if m.ChannelName != "Movies" || m.MediaTitle != "Feature" || m.Date != "2025-03-10" {
		t.Errorf("labels: %+v", m)
	}
}

func TestBuildTimeline_fallbackLabels(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	entries := []ScheduleEntry{
		{ID: "e1", ChannelID: 11, MediaID: "gone", StartTime: now.Add(time.Hour)},
	}
	tl, err := BuildTimeline(entries, nil, nil, ViewToday, now, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	m := tl.Markers[0]
	if m.ChannelName != "Channel 11" || m.MediaTitle != "Unknown media" {
		t.Errorf("fallbacks: got %q / %q", m.ChannelName, m.MediaTitle)
	}
	if m.Color != Palette[11%8] {
		t.Errorf("Color: got %s want %s", m.Color, Palette[3])
	}
}

func TestBuildTimeline_windows(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2025, 3, 10, 22, 0, 0, 0, loc)
	day := func(d, h int) time.Time { return time.Date(2025, 3, d, h, 0, 0, 0, loc) }

	entries := []ScheduleEntry{
		{ID: "yesterday", ChannelID: 1, StartTime: day(9, 23)},
		{ID: "today-start", ChannelID: 1, StartTime: day(10, 0)},
		{ID: "today-late", ChannelID: 1, StartTime: day(10, 23)},
		{ID: "tomorrow", ChannelID: 1, StartTime: day(11, 0)},
		{ID: "day6", ChannelID: 1, StartTime: day(16, 23)},
		{ID: "day7", ChannelID: 1, StartTime: day(17, 0)},
	}
	tests := []struct {
		view View
		want []string
	}{
		{ViewToday, []string{"today-start", "today-late"}},
		{ViewTomorrow, []string{"tomorrow"}},
		{ViewWeek, []string{"today-start", "today-late", "tomorrow", "day6"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.view), func(t *testing.T) {
			tl, err := BuildTimeline(entries, nil, nil, tt.view, now, loc)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, m := range tl.Markers {
				got = append(got, m.ScheduleID)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestBuildTimeline_usesLocationForHour(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, loc)
	entries := []ScheduleEntry{
		{ID: "e1", ChannelID: 1, StartTime: time.Date(2025, 3, 10, 12, 45, 0, 0, time.UTC)},
	}
	tl, err := BuildTimeline(entries, nil, nil, ViewToday, now, loc)
	if err != nil {
		t.Fatal(err)
	}
	if len(tl.Markers) != 1 || tl.Markers[0].Hour != 14 || tl.Markers[0].Offset != 0.75 {
		t.Errorf("markers: %+v", tl.Markers)
	}
}

func TestParseView(t *testing.T) {
	for in, want := range map[string]View{"": ViewToday, "today": ViewToday, "tomorrow": ViewTomorrow, "week": ViewWeek} {
		got, err := ParseView(in)
		if err != nil || got != want {
			t.Errorf("ParseView(%q): got %q, %v want %q", in, got, err, want)
		}
	}
	if _, err := ParseView("month"); !errors.Is(err, ErrValidation) {
		t.Errorf("got %v want ErrValidation", err)
	}
}

func TestColorFor_deterministic(t *testing.T) {
	for id := 0; id < 24; id++ {
		if ColorFor(id) != Palette[id%8] {
			t.Errorf("ColorFor(%d) = %s want %s", id, ColorFor(id), Palette[id%8])
		}
	}
}
