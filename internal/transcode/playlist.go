package transcode

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/grafov/m3u8"
)

// ErrEmptyPlaylist is returned when a playlist lists no segments.
var ErrEmptyPlaylist = errors.New("playlist has no segments")

// Segment is one media segment of a VOD playlist.
type Segment struct {
	Sequence uint64
	Duration float64 // seconds
	URI      string
}

// ReadMediaPlaylist parses an HLS media playlist. Master playlists and
// playlists without segments are rejected.
func ReadMediaPlaylist(r io.Reader) ([]Segment, error) {
	p, listType, err := m3u8.DecodeFrom(r, true)
	if err != nil {
		return nil, fmt.Errorf("decode playlist: %w", err)
	}
	if listType != m3u8.MEDIA {
		return nil, errors.New("decode playlist: master playlist where media playlist expected")
	}
	mp, ok := p.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, errors.New("decode playlist: unexpected playlist type")
	}

	var segments []Segment
	for _, s := range mp.Segments {
		// Segments is allocated to capacity; unused slots are nil.
		if s == nil {
			continue
		}
		segments = append(segments, Segment{
			Sequence: mp.SeqNo + uint64(len(segments)),
			Duration: s.Duration,
			URI:      path.Base(s.URI),
		})
	}
	if len(segments) == 0 {
		return nil, ErrEmptyPlaylist
	}
	return segments, nil
}

// BuildVODPlaylist renders segments (ordered by sequence) as a closed VOD
// playlist with relative segment URIs.
func BuildVODPlaylist(segments []Segment) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")

	var mediaSequence uint64
	if len(segments) > 0 {
		mediaSequence = segments[0].Sequence
	}
	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", targetDuration(segments)))
	b.WriteString(fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d\n", mediaSequence))

	for _, seg := range segments {
		b.WriteString(fmt.Sprintf("#EXTINF:%.3f,\n", seg.Duration))
		b.WriteString(seg.URI)
		b.WriteString("\n")
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// targetDuration is the ceiling of the longest segment, at least 1.
func targetDuration(segments []Segment) int {
	longest := 0.0
	for _, seg := range segments {
		if seg.Duration > longest {
			longest = seg.Duration
		}
	}
	if longest <= 0 {
		return 1
	}
	return int(math.Ceil(longest))
}

// normalizePlaylist validates the playlist at file and rewrites it in
// canonical VOD form. Every listed segment must exist next to the playlist.
func normalizePlaylist(file string) ([]Segment, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open playlist: %w", err)
	}
	segments, err := ReadMediaPlaylist(f)
	f.Close()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(file)
	for _, seg := range segments {
		if _, err := os.Stat(filepath.Join(dir, seg.URI)); err != nil {
			return nil, fmt.Errorf("segment %s: %w", seg.URI, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".playlist.*")
	if err != nil {
		return nil, fmt.Errorf("rewrite playlist: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(BuildVODPlaylist(segments)); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("rewrite playlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("rewrite playlist: %w", err)
	}
	if err := os.Rename(tmp.Name(), file); err != nil {
		return nil, fmt.Errorf("rewrite playlist: %w", err)
	}
	return segments, nil
}
