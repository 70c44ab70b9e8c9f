package state

import "encoding/json"

// Folder maps to a category/container grouping on Backend A.
type Folder struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ContainerID int64  `json:"backendA_container_id"`
	CreatedAt   string `json:"created_at"`
}

// Platform identifies which backend a part was sent to.
type Platform string

const (
	PlatformA Platform = "A"
	PlatformB Platform = "B"
)

// PartInfo records where one part of a file landed.
type PartInfo struct {
	Part      int      `json:"part"`
	Platform  Platform `json:"platform"`
	MessageID int64    `json:"message_id"`
	ChannelID *string  `json:"channel_id,omitempty"`
	FileID    *string  `json:"file_id,omitempty"`
	JumpURL   *string  `json:"jump_url,omitempty"`
}

// FileRecord is a completed upload, one entry per file.
type FileRecord struct {
	ID          int64           `json:"id"`
	Filename    string          `json:"filename"`
	SizeMB      float64         `json:"size_mb"`
	ChannelID   string          `json:"channel_id"`
	ChannelName string          `json:"channel_name"`
	FolderID    json.RawMessage `json:"folder_id,omitempty"`
	FolderName  *string         `json:"folder_name,omitempty"`
	Status      string          `json:"status"`
	Method      string          `json:"method"`
	MethodKey   string          `json:"method_key"`
	Parts       int             `json:"parts"`
	PartsInfo   []PartInfo      `json:"parts_info"`
	MessageIDs  []int64         `json:"message_ids"`
	JumpURL     *string         `json:"jump_url,omitempty"`
	SentAt      string          `json:"sent_at"`
}

// NormalizedParts returns PartsInfo if present, otherwise synthesizes it
// from the legacy flat MessageIDs list (pre-parts_info records), treating
// every entry as Backend A on the record's own channel.
func (f *FileRecord) NormalizedParts() []PartInfo {
	if len(f.PartsInfo) > 0 {
		return f.PartsInfo
	}
	channelID := f.ChannelID
	parts := make([]PartInfo, 0, len(f.MessageIDs))
	for i, mid := range f.MessageIDs {
		parts = append(parts, PartInfo{
			Part:      i + 1,
			Platform:  PlatformA,
			MessageID: mid,
			ChannelID: &channelID,
		})
	}
	return parts
}

// UploadSession tracks an in-progress upload.
type UploadSession struct {
	SessionID      string   `json:"session_id"`
	Filename       string   `json:"filename"`
	FileSize       int64    `json:"file_size"`
	TotalChunks    int      `json:"total_chunks"`
	ReceivedChunks []int    `json:"received_chunks"`
	FolderID       string   `json:"folder_id"`
	Message        string   `json:"message"`
	Status         string   `json:"status"`
	CreatedAt      string   `json:"created_at"`
	ChannelID      *string  `json:"channel_id,omitempty"`
	ChannelName    *string  `json:"channel_name,omitempty"`
	FolderName     *string  `json:"folder_name,omitempty"`
	DiscordResult  any      `json:"discord_result,omitempty"`
}

const (
	SessionStatusUploading = "uploading"
	SessionStatusSending   = "sending"
)

const (
	MethodDirect = "direct"
	MethodSplit  = "split"
	MethodDual   = "dual"
)
