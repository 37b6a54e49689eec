package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type draft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"plain", `{"title":"A","content":"B"}`},
		{"fenced", "```json\n{\"title\":\"A\",\"content\":\"B\"}\n```"},
		{"prose", "Claro! Aqui está:\n{\"title\":\"A\",\"content\":\"B\"}\nEspero que ajude."},
	}
	for _, tt := range tests {
		var d draft
		if err := DecodeJSON(tt.in, &d); err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if d.Title != "A" || d.Content != "B" {
			t.Errorf("%s: got %+v", tt.name, d)
		}
	}
	var d draft
	if err := DecodeJSON("sem json nenhum", &d); err == nil {
		t.Error("expected error for text without JSON")
	}
	if err := DecodeJSON("{title: A}", &d); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestAnthropicProvider(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "{\"title\":\"T\",\"content\":\"C\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", srv.URL)
	resp, err := p.Complete(context.Background(), Request{
		Model:       "sonnet",
		Temperature: 0.4,
		MaxTokens:   512,
		System:      "sistema",
		Messages:    []Message{{Role: RoleUser, Content: "oi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != `{"title":"T","content":"C"}` || resp.InputTokens != 12 || resp.OutputTokens != 7 {
		t.Errorf("resp = %+v", resp)
	}
	if got["model"] != "claude-sonnet-4-5-20250929" {
		t.Errorf("model sent = %v", got["model"])
	}
	if _, ok := got["system"]; !ok {
		t.Error("system prompt not sent")
	}
}

func TestAnthropicProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("k", srv.URL)
	if _, err := p.Complete(context.Background(), Request{Model: "haiku", MaxTokens: 10, Messages: []Message{{Role: RoleUser, Content: "x"}}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestGeminiProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-pro:generateContent" {
			http.NotFound(w, r)
			return
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SystemInstruction == nil || len(req.Contents) != 2 || req.Contents[1].Role != "model" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{\"title\":"},{"text":"\"x\"}"}]}}],"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":4}}`)
	}))
	defer srv.Close()

	p := NewGeminiProvider("key", srv.URL)
	resp, err := p.Complete(context.Background(), Request{
		Model:    "gemini-pro",
		System:   "s",
		Messages: []Message{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != `{"title":"x"}` || resp.OutputTokens != 4 {
		t.Errorf("resp = %+v", resp)
	}

	if _, err := NewGeminiProvider("", srv.URL).Complete(context.Background(), Request{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("missing key: err = %v", err)
	}
}

type fakeConverse struct {
	in  *bedrockruntime.ConverseInput
	out *bedrockruntime.ConverseOutput
	err error
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.in = in
	return f.out, f.err
}

func TestBedrockProvider(t *testing.T) {
	fake := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "ok"}},
		}},
		Usage: &types.TokenUsage{InputTokens: aws.Int32(5), OutputTokens: aws.Int32(2)},
	}}
	p := NewBedrockProviderWithClient(fake)
	resp, err := p.Complete(context.Background(), Request{
		Model:     "nova-lite",
		MaxTokens: 100,
		System:    "s",
		Messages:  []Message{{Role: RoleUser, Content: "q"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "ok" || resp.InputTokens != 5 || resp.Model != "us.amazon.nova-2-lite-v1:0" {
		t.Errorf("resp = %+v", resp)
	}
	if aws.ToString(fake.in.ModelId) != "us.amazon.nova-2-lite-v1:0" || len(fake.in.System) != 1 {
		t.Errorf("input = %+v", fake.in)
	}

	fake.out = &bedrockruntime.ConverseOutput{}
	if _, err := p.Complete(context.Background(), Request{Model: "haiku"}); err == nil {
		t.Error("expected error on empty output")
	}
}

func TestUnconfigured(t *testing.T) {
	if _, err := (Unconfigured{}).Complete(context.Background(), Request{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestDefaultTiers(t *testing.T) {
	if tr := DefaultTiers("anthropic"); tr.Premium != "sonnet" || tr.Base != "haiku" {
		t.Errorf("anthropic tiers = %+v", tr)
	}
	if tr := DefaultTiers("gemini"); tr.Base != "gemini-flash" {
		t.Errorf("gemini tiers = %+v", tr)
	}
}
