package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/apresai/reelscript/internal/style"
)

// memDynamo is an in-memory table keyed by PK and SK.
type memDynamo struct {
	items      map[string]map[string]types.AttributeValue
	queries    int
	batchCalls int
	putErr     error
}

func newMemDynamo() *memDynamo {
	return &memDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func itemKey(item map[string]types.AttributeValue) string {
	return str(item["PK"]) + "|" + str(item["SK"])
}

func (m *memDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: m.items[itemKey(in.Key)]}, nil
}

func (m *memDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	k := itemKey(in.Item)
	if in.ConditionExpression != nil && strings.Contains(*in.ConditionExpression, "attribute_not_exists") {
		if _, ok := m.items[k]; ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.items[k] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.queries++
	pk := str(in.ExpressionAttributeValues[":pk"])
	prefix := str(in.ExpressionAttributeValues[":prefix"])
	var matched []map[string]types.AttributeValue
	for _, item := range m.items {
		if str(item["PK"]) == pk && strings.HasPrefix(str(item["SK"]), prefix) {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return str(matched[i]["SK"]) > str(matched[j]["SK"]) })
	if in.ExclusiveStartKey != nil {
		after := str(in.ExclusiveStartKey["SK"])
		for len(matched) > 0 && str(matched[0]["SK"]) >= after {
			matched = matched[1:]
		}
	}
	out := &dynamodb.QueryOutput{}
	if in.Limit != nil && int(*in.Limit) < len(matched) {
		matched = matched[:*in.Limit]
		last := matched[len(matched)-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{"PK": last["PK"], "SK": last["SK"]}
	}
	out.Items = matched
	return out, nil
}

func (m *memDynamo) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	m.batchCalls++
	out := &dynamodb.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
	for table, ka := range in.RequestItems {
		for _, key := range ka.Keys {
			if item, ok := m.items[itemKey(key)]; ok {
				out.Responses[table] = append(out.Responses[table], item)
			}
		}
	}
	return out, nil
}

func TestListScriptsNewestFirstWithBases(t *testing.T) {
	db := newMemDynamo()
	s := NewScriptStore(db, "reelscript")
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.SaveBase(ctx, "c1", "b1", "Texto gerado original"); err != nil {
		t.Fatalf("SaveBase: %v", err)
	}
	for i := 0; i < 5; i++ {
		e := style.ScriptEntry{
			ID:        fmt.Sprintf("s%d", i),
			CreatorID: "c1",
			Source:    style.SourceManual,
			Content:   fmt.Sprintf("Roteiro %d", i),
			UpdatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if i == 3 {
			e.Source = style.SourceAI
			e.BaseScriptID = "b1"
		}
		if err := s.SaveScript(ctx, e); err != nil {
			t.Fatalf("SaveScript: %v", err)
		}
	}
	if err := s.SaveScript(ctx, style.ScriptEntry{ID: "other", CreatorID: "c2", Content: "x", UpdatedAt: base}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListScripts(ctx, "c1", 4)
	if err != nil {
		t.Fatalf("ListScripts: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d scripts, want 4", len(got))
	}
	want := []string{"s4", "s3", "s2", "s1"}
	for i, e := range got {
		if e.ID != want[i] {
			t.Errorf("script %d = %s, want %s", i, e.ID, want[i])
		}
	}
	if got[1].BaseContent != "Texto gerado original" || got[1].Source != style.SourceAI {
		t.Errorf("linked script = %+v", got[1])
	}
	if !got[0].UpdatedAt.Equal(base.Add(4 * time.Hour)) {
		t.Errorf("updated at = %v", got[0].UpdatedAt)
	}
	if db.batchCalls != 1 {
		t.Errorf("batch calls = %d, want 1", db.batchCalls)
	}
}

func TestListScriptsPaginates(t *testing.T) {
	db := newMemDynamo()
	s := NewScriptStore(db, "t")
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 1500; i++ {
		if err := s.SaveScript(ctx, style.ScriptEntry{ID: fmt.Sprintf("s%04d", i), CreatorID: "c", Content: "x", UpdatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListScripts(ctx, "c", 1200)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1200 {
		t.Fatalf("got %d, want 1200", len(got))
	}
	if db.queries != 2 {
		t.Errorf("queries = %d, want 2", db.queries)
	}
	if got[0].ID != "s1499" || got[1199].ID != "s0300" {
		t.Errorf("range %s..%s", got[0].ID, got[1199].ID)
	}
}

func TestSaveBaseRejectsOverwrite(t *testing.T) {
	s := NewScriptStore(newMemDynamo(), "t")
	ctx := context.Background()
	if err := s.SaveBase(ctx, "c", "b", "one"); err != nil {
		t.Fatal(err)
	}
	err := s.SaveBase(ctx, "c", "b", "two")
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		t.Errorf("expected conditional check failure, got %v", err)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	s := NewScriptStore(newMemDynamo(), "t")
	ctx := context.Background()

	p, err := s.GetProfile(ctx, "c1")
	if err != nil || p != nil {
		t.Fatalf("missing profile = %v, %v", p, err)
	}

	built := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	in := &style.Profile{
		CreatorID:      "c1",
		ProfileVersion: style.ProfileVersion,
		SampleSize:     3,
		BuiltAt:        built,
		SourceMix:      style.SourceMix{Manual: 2, AI: 1},
		Signals:        &style.Signals{SentenceLength: 9.5, QuestionRate: 0.2},
		Examples:       []style.Example{{ScriptID: "s1", Source: style.SourceManual, Weight: 1, Snippet: "Oi gente"}},
	}
	if err := s.PutProfile(ctx, in); err != nil {
		t.Fatalf("PutProfile: %v", err)
	}
	out, err := s.GetProfile(ctx, "c1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if out == nil || out.SampleSize != 3 || out.Signals == nil || out.Signals.SentenceLength != 9.5 {
		t.Fatalf("profile = %+v", out)
	}
	if !out.BuiltAt.Equal(built) || len(out.Examples) != 1 || out.Examples[0].Snippet != "Oi gente" {
		t.Errorf("profile = %+v", out)
	}
	if err := out.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestProfileCorrupted(t *testing.T) {
	db := newMemDynamo()
	s := NewScriptStore(db, "t")
	db.items["CREATOR#c1|STYLE_PROFILE"] = map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: "CREATOR#c1"},
		"SK":      &types.AttributeValueMemberS{Value: "STYLE_PROFILE"},
		"profile": &types.AttributeValueMemberS{Value: "not a map"},
	}
	_, err := s.GetProfile(context.Background(), "c1")
	if !errors.Is(err, style.ErrProfileCorrupted) {
		t.Errorf("err = %v, want ErrProfileCorrupted", err)
	}
}

func TestPutProfileRequiresCreator(t *testing.T) {
	s := NewScriptStore(newMemDynamo(), "t")
	if err := s.PutProfile(context.Background(), &style.Profile{}); err == nil {
		t.Error("expected error")
	}
}

func TestFlags(t *testing.T) {
	s := NewScriptStore(newMemDynamo(), "t")
	ctx := context.Background()

	_, found, err := s.LookupFlag(ctx, style.FlagTraining)
	if err != nil || found {
		t.Fatalf("missing flag: found=%v err=%v", found, err)
	}
	if err := s.SetFlag(ctx, "Style_Profile_Training", true); err != nil {
		t.Fatal(err)
	}
	enabled, found, err := s.LookupFlag(ctx, style.FlagTraining)
	if err != nil || !found || !enabled {
		t.Errorf("flag = %v found=%v err=%v", enabled, found, err)
	}
}

func TestPutErrorWrapped(t *testing.T) {
	db := newMemDynamo()
	db.putErr = errors.New("throttled")
	s := NewScriptStore(db, "t")
	err := s.SaveScript(context.Background(), style.ScriptEntry{ID: "s", CreatorID: "c"})
	if err == nil || !strings.Contains(err.Error(), "put script item") {
		t.Errorf("err = %v", err)
	}
}

func TestNewID(t *testing.T) {
	a, err := NewID()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewID()
	if len(a) != 26 || a == b {
		t.Errorf("ids %q %q", a, b)
	}
}
