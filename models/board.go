package models

import "net/url"

const SnapshotKind = "whiteboard"

type Viewport struct {
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
	Zoom float64 `json:"zoom"`
}

func DefaultViewport() Viewport {
	return Viewport{Zoom: 1}
}

type Board struct {
	Id       string
	Name     string
	OwnerId  string
	RoomId   string
	Elements Elements
	Viewport Viewport
}

// Draft is the locally cached copy of a board used for recovery.
type Draft struct {
	Id        string   `json:"id"`
	Name      string   `json:"name"`
	Elements  Elements `json:"elements"`
	PanX      float64  `json:"panX"`
	PanY      float64  `json:"panY"`
	Zoom      float64  `json:"zoom"`
	UpdatedAt int64    `json:"updatedAt"`
}

// Snapshot is the durable document written on Save and Post.
type Snapshot struct {
	Id           string   `json:"id"`
	Kind         string   `json:"kind"`
	Name         string   `json:"name"`
	OwnerId      string   `json:"ownerId"`
	RoomId       string   `json:"roomId,omitempty"`
	Elements     Elements `json:"elements"`
	Viewport     Viewport `json:"viewport"`
	ThumbnailURL string   `json:"thumbnailUrl"`
	LastExitMode ExitMode `json:"lastExitMode"`
	ContentHash  string   `json:"contentHash,omitempty"`
	CreatedAt    int64    `json:"createdAt"`
	UpdatedAt    int64    `json:"updatedAt"`
}

// SnapshotSummary is the listing form of a Snapshot, without elements.
type SnapshotSummary struct {
	Id           string   `json:"id"`
	Name         string   `json:"name"`
	RoomId       string   `json:"roomId,omitempty"`
	ThumbnailURL string   `json:"thumbnailUrl"`
	LastExitMode ExitMode `json:"lastExitMode"`
	UpdatedAt    int64    `json:"updatedAt"`
}

type ExitMode string

const (
	ExitDiscard ExitMode = "discard"
	ExitSave    ExitMode = "save"
	ExitPost    ExitMode = "post"
)

func (m ExitMode) Valid() bool {
	return m == ExitDiscard || m == ExitSave || m == ExitPost
}

type ExitResult struct {
	Mode         ExitMode `json:"mode"`
	ItemId       string   `json:"itemId,omitempty"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
	Name         string   `json:"name,omitempty"`
}

// PublishMessage is handed to the publish collaborator after a Post.
type PublishMessage struct {
	BoardId      string `json:"boardId"`
	OwnerId      string `json:"ownerId"`
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

func DraftFromBoard(b Board, updatedAt int64) Draft {
	return Draft{
		Id:        b.Id,
		Name:      b.Name,
		Elements:  b.Elements.Persistable(),
		PanX:      b.Viewport.PanX,
		PanY:      b.Viewport.PanY,
		Zoom:      b.Viewport.Zoom,
		UpdatedAt: updatedAt,
	}
}

// IsDurableURL reports whether u is an absolute http or https URL.
func IsDurableURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
