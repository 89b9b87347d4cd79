package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/zlnvch/whiteboard/store"
)

func newDynamoDBClient(ctx context.Context, devMode bool, dynamodbEndpoint string) (*dynamodb.Client, error) {
	var cfg aws.Config
	var err error

	if devMode {
		// Load config with dummy credentials and region for local/dev
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion("us-east-1"),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("dummy", "dummy", ""),
			),
		)
		if err != nil {
			return nil, err
		}

		// Override endpoint for DynamoDB locally
		return dynamodb.New(dynamodb.Options{
			Credentials:      cfg.Credentials,
			Region:           cfg.Region,
			EndpointResolver: dynamodb.EndpointResolverFromURL(dynamodbEndpoint),
		}), nil
	}

	// Production/Fargate: default config (uses Task Role and AWS endpoints)
	cfg, err = config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(cfg), nil
}

func getTables(client *dynamodb.Client, ctx context.Context) ([]string, error) {
	output, err := client.ListTables(ctx, &dynamodb.ListTablesInput{})
	if err != nil {
		return nil, err
	}

	return output.TableNames, nil
}

// getItem retrieves an item of type T from DynamoDB by PK and SK
func getItem[T any](dynamoStore *DynamoWhiteboardStore, ctx context.Context, pk string, sk string, consistentRead bool) (T, error) {
	var zero T

	key := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}

	resp, err := dynamoStore.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(dynamoStore.tableName),
		Key:            key,
		ConsistentRead: aws.Bool(consistentRead),
	})
	if err != nil {
		return zero, fmt.Errorf("GetItem failed: %w", err)
	}
	if resp.Item == nil {
		return zero, store.ErrItemNotFound
	}

	var item T
	if err := attributevalue.UnmarshalMap(resp.Item, &item); err != nil {
		return zero, fmt.Errorf("failed to unmarshal item: %w", err)
	}

	return item, nil
}

// queryAllByPK returns all items of type T with the given PK, ordered by SK,
// with a limit. A non-empty projection restricts the attributes fetched.
func queryAllByPK[T any](dynamoStore *DynamoWhiteboardStore, ctx context.Context, pk string, scanIndexForward bool, limit int32, projection []string) ([]T, error) {
	var results []T

	input := &dynamodb.QueryInput{
		TableName:              aws.String(dynamoStore.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ScanIndexForward: aws.Bool(scanIndexForward),
	}

	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	if len(projection) > 0 {
		// Attribute names like Name are reserved words, so always alias them.
		names := make(map[string]string, len(projection))
		expr := ""
		for i, field := range projection {
			alias := fmt.Sprintf("#p%d", i)
			names[alias] = field
			if i > 0 {
				expr += ", "
			}
			expr += alias
		}
		input.ProjectionExpression = aws.String(expr)
		input.ExpressionAttributeNames = names
	}

	// dynamodb uses limit per page, so we also need to handle limit globally
	paginator := dynamodb.NewQueryPaginator(dynamoStore.client, input)

	for paginator.HasMorePages() {
		if limit > 0 && len(results) >= int(limit) {
			break
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}

		var pageItems []T
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal page items: %w", err)
		}

		results = append(results, pageItems...)
	}

	if limit > 0 && len(results) > int(limit) {
		results = results[:limit]
	}

	return results, nil
}

// conditionalPut is one Put in a transaction. Condition may be empty.
type conditionalPut struct {
	item      any
	condition string
	values    map[string]types.AttributeValue
}

// transactPut writes all items atomically. A failed condition on any item
// cancels the whole transaction and is reported as store.ErrConditionFailed.
func transactPut(dynamoStore *DynamoWhiteboardStore, ctx context.Context, puts []conditionalPut) error {
	if len(puts) == 0 {
		return nil
	}

	items := make([]types.TransactWriteItem, 0, len(puts))
	for _, p := range puts {
		avMap, err := attributevalue.MarshalMap(p.item)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		if _, ok := avMap["PK"]; !ok {
			return errors.New("struct missing PK field")
		}
		if _, ok := avMap["SK"]; !ok {
			return errors.New("struct missing SK field")
		}

		put := &types.Put{
			TableName: aws.String(dynamoStore.tableName),
			Item:      avMap,
		}
		if p.condition != "" {
			put.ConditionExpression = aws.String(p.condition)
			put.ExpressionAttributeValues = p.values
		}
		items = append(items, types.TransactWriteItem{Put: put})
	}

	_, err := dynamoStore.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			for _, reason := range tce.CancellationReasons {
				if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
					return store.ErrConditionFailed
				}
			}
		}
		return fmt.Errorf("TransactWriteItems failed: %w", err)
	}

	return nil
}
