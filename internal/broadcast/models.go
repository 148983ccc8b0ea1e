package broadcast

import "time"

// Metadata is descriptive information attached to a media asset.
type Metadata struct {
	Year     string `json:"year"`
	Genre    string `json:"genre"`
	Duration int    `json:"duration"` // minutes
}

// MediaAsset is a catalogued, transcoded media item. It is only persisted
// once its stream artifact exists.
type MediaAsset struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	FileName     string    `json:"fileName"`
	OriginalPath string    `json:"originalPath"`
	StreamPath   string    `json:"streamPath"`
	StreamURL    string    `json:"streamUrl"`
	ThumbnailURL *string   `json:"thumbnailUrl"`
	UploadDate   time.Time `json:"uploadDate"`
	Metadata     Metadata  `json:"metadata"`
}

// Channel is one of the fixed playout channels. CurrentMedia is a weak
// reference: the asset it names may have been deleted since.
type Channel struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	IsActive     bool    `json:"isActive"`
	CurrentMedia *string `json:"currentMedia"`
}

// OnAir reports whether the channel is broadcasting.
func (c Channel) OnAir() bool {
	return c.IsActive && c.CurrentMedia != nil
}

// ScheduleEntry plans media on a channel from StartTime. Entries are never
// edited; a change is a delete followed by a create.
type ScheduleEntry struct {
	ID        string     `json:"id"`
	ChannelID int        `json:"channelId"`
	MediaID   string     `json:"mediaId"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	CreatedAt time.Time  `json:"createdAt"`
}

// IngestRequest describes an uploaded source file to catalogue.
type IngestRequest struct {
	SourcePath  string
	FileName    string
	Title       string
	Description string
	Year        string
	Genre       string
	// Duration in minutes; nil means probe the source.
	Duration *int
}

// MediaUpdate is a partial update. Nil fields are left unchanged.
type MediaUpdate struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Metadata    *MetadataUpdate `json:"metadata"`
}

// MetadataUpdate is a partial update of Metadata.
type MetadataUpdate struct {
	Year     *string `json:"year"`
	Genre    *string `json:"genre"`
	Duration *int    `json:"duration"`
}

// DeleteReport is the outcome of a successful media delete. Warnings lists
// files that could not be removed.
type DeleteReport struct {
	Success  bool     `json:"success"`
	ID       string   `json:"id"`
	Warnings []string `json:"warnings,omitempty"`
}

// ChannelUpdate is the partial update accepted by Channels.Update.
type ChannelUpdate struct {
	Name         *string `json:"name"`
	IsActive     *bool   `json:"isActive"`
	CurrentMedia *string `json:"currentMedia"`
}

// ScheduleRequest is the input of Schedule.Create.
type ScheduleRequest struct {
	ChannelID int
	MediaID   string
	StartTime time.Time
	EndTime   *time.Time
}
