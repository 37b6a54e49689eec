package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apresai/reelscript/internal/adjust"
	"github.com/apresai/reelscript/internal/contract"
	"github.com/apresai/reelscript/internal/pipeline"
	"github.com/apresai/reelscript/internal/telemetry"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		flagJSON, flagFile, flagOutput = false, "", ""
	})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roteiro.txt")
	d := contract.Fallback(contract.Options{Prompt: "dicas de carreira"})
	if err := os.WriteFile(path, []byte(d.Content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "reelscript "+Version {
		t.Errorf("out = %q", out)
	}
}

func TestScopeCommand(t *testing.T) {
	out, err := runCLI(t, "scope", "--json", "-f", writeScript(t), "Ajuste apenas a Cena 2")
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	var got struct {
		Scope   adjust.Scope    `json:"scope"`
		Segment *adjust.Segment `json:"segment"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Scope.Mode != adjust.ModePatch || got.Scope.Target.Index != 2 {
		t.Errorf("scope = %+v", got.Scope)
	}
	if got.Segment == nil || !strings.Contains(got.Segment.Heading, "CENA 2") {
		t.Errorf("segment = %+v", got.Segment)
	}
}

func TestScopeCommandMissingScene(t *testing.T) {
	_, err := runCLI(t, "scope", "-f", writeScript(t), "muda a cena 9")
	var snf *pipeline.ScopeNotFoundError
	if !errors.As(err, &snf) || snf.Target.Index != 9 {
		t.Fatalf("err = %v", err)
	}
}

func TestReadScriptStdin(t *testing.T) {
	got, err := readScript(strings.NewReader("texto"), "-")
	if err != nil || got != "texto" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := readScript(nil, filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSummaryListsDegradations(t *testing.T) {
	res := &pipeline.Result{
		Diagnostics: telemetry.Diagnostics{
			SceneCount:       5,
			ModelUnavailable: true,
			LegacyConverted:  true,
		},
		VersionID: "01J",
	}
	s := summary(res)
	for _, want := range []string{"modelo indisponível", "roteiro antigo convertido", "01J"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}

func TestEmitWritesOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	flagOutput, flagJSON = path, true
	t.Cleanup(func() { flagOutput, flagJSON = "", false })

	var buf bytes.Buffer
	res := &pipeline.Result{EventID: "e1"}
	res.Draft.Title = "T"
	res.Draft.Content = "conteúdo"
	if err := emit(&buf, res); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "conteúdo\n" {
		t.Fatalf("file = %q, %v", data, err)
	}
	var got jsonResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil || got.EventID != "e1" || got.Content != "conteúdo" {
		t.Errorf("json = %+v, %v", got, err)
	}
}
