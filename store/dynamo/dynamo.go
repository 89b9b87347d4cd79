package dynamo

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/zlnvch/whiteboard/models"
)

// Table layout:
//
//	PK = OWNER#<ownerId>  SK = BOARD#<boardId>   owner-scoped snapshot
//	PK = ROOM#<roomId>    SK = BOARD#<boardId>   room-scoped mirror
type DynamoWhiteboardStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoWhiteboardStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoWhiteboardStore, error) {
	client, err := newDynamoDBClient(context.Background(), devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}

	foundTable := false
	for _, table := range tables {
		if table == tableName {
			foundTable = true
			break
		}
	}
	if !foundTable {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoWhiteboardStore{client: client, tableName: tableName}, nil
}

// PutSnapshot writes the owner document and the room mirror in one
// transaction. Both are conditioned on the board belonging to the same owner,
// so a room mirror can't be overwritten by someone else's board with the same
// id.
func (dynamoStore *DynamoWhiteboardStore) PutSnapshot(ctx context.Context, snap models.Snapshot) error {
	const ownerCondition = "attribute_not_exists(PK) OR OwnerId = :owner"
	values := map[string]types.AttributeValue{
		":owner": &types.AttributeValueMemberS{Value: snap.OwnerId},
	}

	owned, err := snapshotToDynamo(snap, ownerPK(snap.OwnerId))
	if err != nil {
		return err
	}
	puts := []conditionalPut{{item: owned, condition: ownerCondition, values: values}}

	if snap.RoomId != "" {
		mirror := owned
		mirror.PK = roomPK(snap.RoomId)
		puts = append(puts, conditionalPut{item: mirror, condition: ownerCondition, values: values})
	}

	return transactPut(dynamoStore, ctx, puts)
}

func (dynamoStore *DynamoWhiteboardStore) GetSnapshot(ctx context.Context, ownerId string, boardId string) (models.Snapshot, error) {
	ds, err := getItem[dynamoSnapshot](dynamoStore, ctx, ownerPK(ownerId), boardSK(boardId), false)
	if err != nil {
		return models.Snapshot{}, err
	}
	return snapshotFromDynamo(ds)
}

func (dynamoStore *DynamoWhiteboardStore) GetRoomSnapshot(ctx context.Context, roomId string, boardId string) (models.Snapshot, error) {
	ds, err := getItem[dynamoSnapshot](dynamoStore, ctx, roomPK(roomId), boardSK(boardId), false)
	if err != nil {
		return models.Snapshot{}, err
	}
	return snapshotFromDynamo(ds)
}

// ListSnapshots returns the owner's boards, most recently updated first.
func (dynamoStore *DynamoWhiteboardStore) ListSnapshots(ctx context.Context, ownerId string) ([]models.SnapshotSummary, error) {
	items, err := queryAllByPK[dynamoSnapshot](dynamoStore, ctx, ownerPK(ownerId), true, 0, summaryFields)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.SnapshotSummary, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, summaryFromDynamo(item))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt > summaries[j].UpdatedAt
	})

	return summaries, nil
}
