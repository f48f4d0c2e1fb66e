package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DDBClient is the interface for DynamoDB operations used by the Catalog.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrConcurrentModification is returned when a concurrent write is detected.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// ErrNoBackups is returned by Current when nothing has been recorded yet.
var ErrNoBackups = errors.New("no backups recorded")

// Entry is one recorded backup.
type Entry struct {
	Version   uint64
	Location  string
	CreatedAt time.Time
}

// Catalog records completed backups for one store in a DynamoDB table.
// Rows are keyed by store ID and a monotonically growing version number;
// a conditional write guards the version so two runs can never record
// under the same one.
//
// The table needs store_id (S) as partition key and version (N) as sort key.
type Catalog struct {
	client  DDBClient
	table   string
	storeID string
}

// NewCatalog creates a Catalog for the given store ID.
func NewCatalog(client DDBClient, tableName, storeID string) *Catalog {
	return &Catalog{
		client:  client,
		table:   tableName,
		storeID: storeID,
	}
}

// Record registers a completed backup under the next free version and
// returns that version.
func (c *Catalog) Record(ctx context.Context, location string) (uint64, error) {
	latest, found, err := c.latest(ctx)
	if err != nil {
		return 0, err
	}

	newVersion := uint64(1)
	if found {
		newVersion = latest.Version + 1
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item: map[string]types.AttributeValue{
			"store_id":   &types.AttributeValueMemberS{Value: c.storeID},
			"version":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", newVersion)},
			"location":   &types.AttributeValueMemberS{Value: location},
			"created_at": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentModification
		}
		return 0, fmt.Errorf("failed to record backup: %w", err)
	}

	return newVersion, nil
}

// Current returns the most recently recorded backup.
func (c *Catalog) Current(ctx context.Context) (Entry, error) {
	latest, found, err := c.latest(ctx)
	if err != nil {
		return Entry{}, err
	}
	if !found {
		return Entry{}, ErrNoBackups
	}
	return latest, nil
}

// latest queries for the highest recorded version.
func (c *Catalog) latest(ctx context.Context) (Entry, bool, error) {
	resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.table),
		KeyConditionExpression: aws.String("store_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: c.storeID},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to query backup catalog: %w", err)
	}

	if len(resp.Items) == 0 {
		return Entry{}, false, nil
	}

	entry, err := parseEntry(resp.Items[0])
	if err != nil {
		return Entry{}, false, err
	}

	return entry, true, nil
}

func parseEntry(item map[string]types.AttributeValue) (Entry, error) {
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return Entry{}, errors.New("invalid version attribute in backup catalog")
	}

	locationAttr, ok := item["location"].(*types.AttributeValueMemberS)
	if !ok {
		return Entry{}, errors.New("invalid location attribute in backup catalog")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return Entry{}, fmt.Errorf("failed to parse version: %w", err)
	}

	entry := Entry{
		Version:  version,
		Location: locationAttr.Value,
	}

	// created_at is informational; older rows may not carry it.
	if createdAttr, ok := item["created_at"].(*types.AttributeValueMemberS); ok {
		if ts, err := time.Parse(time.RFC3339, createdAttr.Value); err == nil {
			entry.CreatedAt = ts
		}
	}

	return entry, nil
}
