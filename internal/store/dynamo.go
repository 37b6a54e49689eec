// Package store holds the persistence adapters: creator scripts, style
// profiles and feature flags in DynamoDB, historical content metrics in
// PostgreSQL.
package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"

	"github.com/apresai/reelscript/internal/style"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
}

const (
	creatorPrefix = "CREATOR#"
	scriptPrefix  = "SCRIPT#"
	basePrefix    = "BASE#"
	profileSK     = "STYLE_PROFILE"
	flagPrefix    = "FLAG#"
	flagSK        = "FLAG"

	batchGetMax = 100

	// fixed width so sort keys order lexically
	sortKeyTime = "2006-01-02T15:04:05.000000000Z"
)

// ScriptItem is the DynamoDB record for a creator script.
type ScriptItem struct {
	PK               string `dynamodbav:"PK"`
	SK               string `dynamodbav:"SK"`
	ScriptID         string `dynamodbav:"scriptId"`
	CreatorID        string `dynamodbav:"creatorId"`
	Source           string `dynamodbav:"source"`
	Content          string `dynamodbav:"content"`
	BaseScriptID     string `dynamodbav:"baseScriptId,omitempty"`
	AdminRecommended bool   `dynamodbav:"adminRecommended,omitempty"`
	UpdatedAt        string `dynamodbav:"updatedAt"`
}

// BaseItem holds the originally generated text an edited script started from.
type BaseItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	BaseID    string `dynamodbav:"baseId"`
	Content   string `dynamodbav:"content"`
	CreatedAt string `dynamodbav:"createdAt"`
}

type profileItem struct {
	PK        string        `dynamodbav:"PK"`
	SK        string        `dynamodbav:"SK"`
	Profile   style.Profile `dynamodbav:"profile"`
	UpdatedAt string        `dynamodbav:"updatedAt"`
}

type flagItem struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	Enabled bool   `dynamodbav:"enabled"`
}

// ScriptStore keeps scripts, generated bases, style profiles and flags in a
// single DynamoDB table.
type ScriptStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

// NewScriptStore creates a store on tableName.
func NewScriptStore(client DynamoAPI, tableName string) *ScriptStore {
	return &ScriptStore{client: client, tableName: tableName, now: time.Now}
}

// NewID generates a ULID for a script or generated base.
func NewID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

func creatorPK(id string) string { return creatorPrefix + id }

func scriptSK(updatedAt time.Time, id string) string {
	return scriptPrefix + updatedAt.UTC().Format(sortKeyTime) + "#" + id
}

// SaveScript stores a script version. The sort key orders versions by
// update time so listing newest first is a single query.
func (s *ScriptStore) SaveScript(ctx context.Context, e style.ScriptEntry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = s.now()
	}
	item := ScriptItem{
		PK:               creatorPK(e.CreatorID),
		SK:               scriptSK(e.UpdatedAt, e.ID),
		ScriptID:         e.ID,
		CreatorID:        e.CreatorID,
		Source:           string(e.Source),
		Content:          e.Content,
		BaseScriptID:     e.BaseScriptID,
		AdminRecommended: e.AdminRecommended,
		UpdatedAt:        e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal script item: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: av}); err != nil {
		return fmt.Errorf("put script item: %w", err)
	}
	return nil
}

// SaveBase stores the generated text a script was drafted from.
func (s *ScriptStore) SaveBase(ctx context.Context, creatorID, baseID, content string) error {
	item := BaseItem{
		PK:        creatorPK(creatorID),
		SK:        basePrefix + baseID,
		BaseID:    baseID,
		Content:   content,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal base item: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}); err != nil {
		return fmt.Errorf("put base item: %w", err)
	}
	return nil
}

// ListScripts returns up to limit scripts of the creator, newest first,
// with BaseContent filled for scripts linked to a generated base.
func (s *ScriptStore) ListScripts(ctx context.Context, creatorID string, limit int) ([]style.ScriptEntry, error) {
	if limit <= 0 {
		limit = 600
	}
	var items []ScriptItem
	var start map[string]types.AttributeValue
	for len(items) < limit {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.tableName,
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: creatorPK(creatorID)},
				":prefix": &types.AttributeValueMemberS{Value: scriptPrefix},
			},
			ScanIndexForward:  aws.Bool(false),
			Limit:             aws.Int32(int32(min(limit-len(items), 1000))),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("query scripts: %w", err)
		}
		var page []ScriptItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal scripts: %w", err)
		}
		items = append(items, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	if len(items) > limit {
		items = items[:limit]
	}

	bases, err := s.loadBases(ctx, creatorID, items)
	if err != nil {
		return nil, err
	}
	entries := make([]style.ScriptEntry, 0, len(items))
	for _, it := range items {
		updated, _ := time.Parse(time.RFC3339Nano, it.UpdatedAt)
		entries = append(entries, style.ScriptEntry{
			ID:               it.ScriptID,
			CreatorID:        it.CreatorID,
			Source:           style.Source(it.Source),
			Content:          it.Content,
			BaseScriptID:     it.BaseScriptID,
			BaseContent:      bases[it.BaseScriptID],
			AdminRecommended: it.AdminRecommended,
			UpdatedAt:        updated,
		})
	}
	return entries, nil
}

func (s *ScriptStore) loadBases(ctx context.Context, creatorID string, items []ScriptItem) (map[string]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, it := range items {
		if it.BaseScriptID != "" && !seen[it.BaseScriptID] {
			seen[it.BaseScriptID] = true
			ids = append(ids, it.BaseScriptID)
		}
	}
	sort.Strings(ids)
	bases := make(map[string]string, len(ids))
	for i := 0; i < len(ids); i += batchGetMax {
		chunk := ids[i:min(i+batchGetMax, len(ids))]
		keys := make([]map[string]types.AttributeValue, len(chunk))
		for j, id := range chunk {
			keys[j] = map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: creatorPK(creatorID)},
				"SK": &types.AttributeValueMemberS{Value: basePrefix + id},
			}
		}
		req := map[string]types.KeysAndAttributes{s.tableName: {Keys: keys}}
		for len(req) > 0 {
			out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: req})
			if err != nil {
				return nil, fmt.Errorf("batch get bases: %w", err)
			}
			var page []BaseItem
			if err := attributevalue.UnmarshalListOfMaps(out.Responses[s.tableName], &page); err != nil {
				return nil, fmt.Errorf("unmarshal bases: %w", err)
			}
			for _, b := range page {
				bases[b.BaseID] = b.Content
			}
			req = out.UnprocessedKeys
		}
	}
	return bases, nil
}

// GetProfile returns the stored style profile, nil when there is none, or
// style.ErrProfileCorrupted when the record cannot be decoded.
func (s *ScriptStore) GetProfile(ctx context.Context, creatorID string) (*style.Profile, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: creatorPK(creatorID)},
			"SK": &types.AttributeValueMemberS{Value: profileSK},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get style profile: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	if _, ok := out.Item["profile"].(*types.AttributeValueMemberM); !ok {
		return nil, fmt.Errorf("style profile %s: %w", creatorID, style.ErrProfileCorrupted)
	}
	var item profileItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("style profile %s: %w: %v", creatorID, style.ErrProfileCorrupted, err)
	}
	return &item.Profile, nil
}

// PutProfile replaces the creator's style profile.
func (s *ScriptStore) PutProfile(ctx context.Context, p *style.Profile) error {
	if p == nil || p.CreatorID == "" {
		return errors.New("put style profile: missing creator id")
	}
	av, err := attributevalue.MarshalMap(profileItem{
		PK:        creatorPK(p.CreatorID),
		SK:        profileSK,
		Profile:   *p,
		UpdatedAt: s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal style profile: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: av}); err != nil {
		return fmt.Errorf("put style profile: %w", err)
	}
	return nil
}

// LookupFlag reads a feature flag record.
func (s *ScriptStore) LookupFlag(ctx context.Context, name string) (enabled, found bool, err error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: flagPrefix + strings.ToLower(name)},
			"SK": &types.AttributeValueMemberS{Value: flagSK},
		},
	})
	if err != nil {
		return false, false, fmt.Errorf("get flag %s: %w", name, err)
	}
	if out.Item == nil {
		return false, false, nil
	}
	var item flagItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return false, false, fmt.Errorf("unmarshal flag %s: %w", name, err)
	}
	return item.Enabled, true, nil
}

// SetFlag writes a feature flag record.
func (s *ScriptStore) SetFlag(ctx context.Context, name string, enabled bool) error {
	av, err := attributevalue.MarshalMap(flagItem{PK: flagPrefix + strings.ToLower(name), SK: flagSK, Enabled: enabled})
	if err != nil {
		return fmt.Errorf("marshal flag: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: av}); err != nil {
		return fmt.Errorf("put flag %s: %w", name, err)
	}
	return nil
}
