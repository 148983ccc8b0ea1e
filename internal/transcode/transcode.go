// Package transcode turns uploaded media into segmented HLS output by driving
// ffmpeg and ffprobe as external processes.
package transcode

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Output file names inside an asset namespace.
const (
	PlaylistName  = "playlist.m3u8"
	ThumbnailName = "thumbnail.jpg"
	segmentFormat = "segment%03d.ts"
)

var (
	// ErrFailed is returned when the external transcoder does not produce a
	// usable playlist.
	ErrFailed = errors.New("transcode failed")

	// ErrTimeout is returned when transcoding exceeds its deadline. It wraps ErrFailed.
	ErrTimeout = fmt.Errorf("%w: timed out", ErrFailed)

	// ErrProbe is returned when the duration of a source cannot be determined.
	ErrProbe = errors.New("duration probe failed")

	// ErrThumbnail is returned when no preview frame could be extracted.
	ErrThumbnail = errors.New("thumbnail generation failed")

	// ErrInvalidAsset is returned for asset ids that cannot name a directory.
	ErrInvalidAsset = errors.New("invalid asset id")
)

// Artifact identifies a published output.
type Artifact struct {
	// Locator is the path of the output on local disk.
	Locator string
	// URL is the public path the output is served under.
	URL string
}

// StreamURL returns the public playlist URL of an asset.
func StreamURL(assetID string) string {
	return "/streams/" + assetID + "/" + PlaylistName
}

// ThumbnailURL returns the public thumbnail URL of an asset.
func ThumbnailURL(assetID string) string {
	return "/streams/" + assetID + "/" + ThumbnailName
}

func checkAssetID(assetID string) error {
	if assetID == "" || assetID == "." || assetID == ".." || assetID != filepath.Base(assetID) {
		return fmt.Errorf("%w: %q", ErrInvalidAsset, assetID)
	}
	return nil
}
