package transcode

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildVODPlaylist_empty(t *testing.T) {
	out := BuildVODPlaylist(nil)
	if !strings.HasPrefix(out, "#EXTM3U\n") {
		t.Error("expected #EXTM3U header")
	}
	if !strings.Contains(out, "#EXT-X-TARGETDURATION:1") {
		t.Error("expected target duration 1 for empty")
	}
	if !strings.Contains(out, "#EXT-X-MEDIA-SEQUENCE:0") {
		t.Error("expected media sequence 0")
	}
	if !strings.HasSuffix(out, "#EXT-X-ENDLIST\n") {
		t.Error("VOD playlist must end with ENDLIST")
	}
}

func TestBuildVODPlaylist_with_segments(t *testing.T) {
	segs := []Segment{
		{Sequence: 0, Duration: 10.0, URI: "segment000.ts"},
		{Sequence: 1, Duration: 10.2, URI: "segment001.ts"},
	}
	out := BuildVODPlaylist(segs)

	if !strings.Contains(out, "#EXT-X-TARGETDURATION:11") {
		t.Errorf("expected TARGETDURATION 11 (ceil of 10.2): %s", out)
	}
	if !strings.Contains(out, "#EXTINF:10.200,\nsegment001.ts\n") {
		t.Errorf("segment line: %s", out)
	}
	if !strings.Contains(out, "#EXT-X-PLAYLIST-TYPE:VOD") {
		t.Error("expected PLAYLIST-TYPE VOD")
	}
}

func TestReadMediaPlaylist(t *testing.T) {
	segs, err := ReadMediaPlaylist(strings.NewReader(samplePlaylist))
	if err != nil {
		t.Fatalf("ReadMediaPlaylist: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments want 2", len(segs))
	}
	if segs[1].URI != "segment001.ts" || segs[1].Duration != 4.5 || segs[1].Sequence != 1 {
		t.Errorf("second segment: %+v", segs[1])
	}
}

func TestReadMediaPlaylist_relativizesURIs(t *testing.T) {
	in := "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTINF:10.0,\n/data/streams/a1/segment000.ts\n#EXT-X-ENDLIST\n"
	segs, err := ReadMediaPlaylist(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadMediaPlaylist: %v", err)
	}
	if segs[0].URI != "segment000.ts" {
		t.Errorf("URI: got %q", segs[0].URI)
	}
}

func TestReadMediaPlaylist_roundTrip(t *testing.T) {
	segs, err := ReadMediaPlaylist(strings.NewReader(samplePlaylist))
	if err != nil {
		t.Fatal(err)
	}
	again, err := ReadMediaPlaylist(strings.NewReader(BuildVODPlaylist(segs)))
	if err != nil {
		t.Fatalf("canonical output does not parse: %v", err)
	}
	if len(again) != len(segs) {
		t.Errorf("got %d segments after rewrite want %d", len(again), len(segs))
	}
}

func TestReadMediaPlaylist_empty(t *testing.T) {
	_, err := ReadMediaPlaylist(strings.NewReader("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-ENDLIST\n"))
	if !errors.Is(err, ErrEmptyPlaylist) {
		t.Errorf("got %v want ErrEmptyPlaylist", err)
	}
}
