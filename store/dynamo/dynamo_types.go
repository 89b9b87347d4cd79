package dynamo

import (
	"encoding/json"
	"fmt"

	"github.com/zlnvch/whiteboard/models"
)

func ownerPK(ownerId string) string { return "OWNER#" + ownerId }
func roomPK(roomId string) string   { return "ROOM#" + roomId }
func boardSK(boardId string) string { return "BOARD#" + boardId }

type dynamoSnapshot struct {
	PK           string  `dynamodbav:"PK"`
	SK           string  `dynamodbav:"SK"`
	Id           string  `dynamodbav:"Id"`
	Kind         string  `dynamodbav:"Kind"`
	Name         string  `dynamodbav:"Name"`
	OwnerId      string  `dynamodbav:"OwnerId"`
	RoomId       string  `dynamodbav:"RoomId,omitempty"`
	Elements     string  `dynamodbav:"Elements"`
	PanX         float64 `dynamodbav:"PanX"`
	PanY         float64 `dynamodbav:"PanY"`
	Zoom         float64 `dynamodbav:"Zoom"`
	ThumbnailURL string  `dynamodbav:"ThumbnailURL"`
	LastExitMode string  `dynamodbav:"LastExitMode"`
	ContentHash  string  `dynamodbav:"ContentHash,omitempty"`
	CreatedAt    int64   `dynamodbav:"CreatedAt"`
	UpdatedAt    int64   `dynamodbav:"UpdatedAt"`
}

var summaryFields = []string{"Id", "Name", "RoomId", "ThumbnailURL", "LastExitMode", "UpdatedAt"}

// Map domain Snapshot -> Dynamo. Elements are stored as their JSON encoding
// so the kind-tagged union survives unchanged.
func snapshotToDynamo(s models.Snapshot, pk string) (dynamoSnapshot, error) {
	elements := s.Elements
	if elements == nil {
		elements = models.Elements{}
	}
	data, err := json.Marshal(elements)
	if err != nil {
		return dynamoSnapshot{}, fmt.Errorf("marshal elements: %w", err)
	}

	return dynamoSnapshot{
		PK:           pk,
		SK:           boardSK(s.Id),
		Id:           s.Id,
		Kind:         s.Kind,
		Name:         s.Name,
		OwnerId:      s.OwnerId,
		RoomId:       s.RoomId,
		Elements:     string(data),
		PanX:         s.Viewport.PanX,
		PanY:         s.Viewport.PanY,
		Zoom:         s.Viewport.Zoom,
		ThumbnailURL: s.ThumbnailURL,
		LastExitMode: string(s.LastExitMode),
		ContentHash:  s.ContentHash,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}, nil
}

// Map Dynamo -> domain Snapshot
func snapshotFromDynamo(ds dynamoSnapshot) (models.Snapshot, error) {
	var elements models.Elements
	if ds.Elements != "" {
		if err := json.Unmarshal([]byte(ds.Elements), &elements); err != nil {
			return models.Snapshot{}, fmt.Errorf("unmarshal elements of %s: %w", ds.Id, err)
		}
	}

	return models.Snapshot{
		Id:           ds.Id,
		Kind:         ds.Kind,
		Name:         ds.Name,
		OwnerId:      ds.OwnerId,
		RoomId:       ds.RoomId,
		Elements:     elements,
		Viewport:     models.Viewport{PanX: ds.PanX, PanY: ds.PanY, Zoom: ds.Zoom},
		ThumbnailURL: ds.ThumbnailURL,
		LastExitMode: models.ExitMode(ds.LastExitMode),
		ContentHash:  ds.ContentHash,
		CreatedAt:    ds.CreatedAt,
		UpdatedAt:    ds.UpdatedAt,
	}, nil
}

func summaryFromDynamo(ds dynamoSnapshot) models.SnapshotSummary {
	return models.SnapshotSummary{
		Id:           ds.Id,
		Name:         ds.Name,
		RoomId:       ds.RoomId,
		ThumbnailURL: ds.ThumbnailURL,
		LastExitMode: models.ExitMode(ds.LastExitMode),
		UpdatedAt:    ds.UpdatedAt,
	}
}
