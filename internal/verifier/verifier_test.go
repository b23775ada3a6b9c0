package verifier

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamaly87/assembly-engine/internal/assembler"
	"github.com/jamaly87/assembly-engine/internal/models"
	"github.com/jamaly87/assembly-engine/pkg/config"
)

func testVerifier(t *testing.T) *Verifier {
	t.Helper()
	return New(&config.VerifierConfig{
		GoBin:      "go",
		ScratchDir: t.TempDir(),
	})
}

func TestCompileAndFixWritesFileBeforeCompiling(t *testing.T) {
	v := testVerifier(t)
	code := "package main\n\nfunc main() {}\n"

	_, _, err := v.CompileAndFix(context.Background(), code, "output.go")
	if err != nil {
		t.Fatalf("unexpected infrastructure error: %v", err)
	}

	written, readErr := os.ReadFile(filepath.Join(v.cfg.ScratchDir, "output.go"))
	if readErr != nil {
		t.Fatalf("expected code written to scratch dir: %v", readErr)
	}
	if string(written) != code {
		t.Fatalf("expected written file to match code exactly")
	}
}

func TestCompileAndFixReportsSyntaxErrorStderr(t *testing.T) {
	v := testVerifier(t)
	code := "package main\n\nfunc main() {\n"

	ok, stderr, err := v.CompileAndFix(context.Background(), code, "bad.go")
	if err != nil {
		t.Fatalf("unexpected infrastructure error: %v", err)
	}
	if ok {
		t.Fatalf("expected compile failure for invalid syntax")
	}
	if stderr == "" {
		t.Fatalf("expected non-empty stderr describing the syntax error")
	}
}

func TestWithSupportingDefinitionsAppendsMissingChunks(t *testing.T) {
	code := "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tresult := double(4)\n\tfmt.Println(\"result:\", result)\n}\n"
	chunks := []models.Chunk{
		{FuncName: "double", Source: "func double(x int) int {\n\treturn x * 2\n}"},
	}

	unit := withSupportingDefinitions(code, chunks)
	if !strings.Contains(unit, "func double(x int) int") {
		t.Fatalf("expected chunk definition appended, got: %s", unit)
	}
}

func TestWithSupportingDefinitionsSkipsAlreadyDefinedChunks(t *testing.T) {
	code := "package main\n\nfunc double(x int) int { return x * 2 }\n\nfunc main() {\n\tdouble(4)\n}\n"
	chunks := []models.Chunk{
		{FuncName: "double", Source: "func double(x int) int { return x * 2 }"},
	}

	unit := withSupportingDefinitions(code, chunks)
	if strings.Count(unit, "func double(") != 1 {
		t.Fatalf("expected no duplicate definition, got: %s", unit)
	}
}

func TestCompileAndFixSucceedsWithSupportingDefinitions(t *testing.T) {
	v := testVerifier(t)
	code := "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tresult := double(4)\n\tfmt.Println(\"result:\", result)\n}\n"
	chunks := []models.Chunk{
		{FuncName: "double", Source: "func double(x int) int {\n\treturn x * 2\n}"},
	}

	ok, stderr, err := v.CompileAndFix(context.Background(), withSupportingDefinitions(code, chunks), "output.go")
	if err != nil {
		t.Fatalf("unexpected infrastructure error: %v", err)
	}
	if !ok {
		t.Fatalf("expected unit with supporting definitions to compile, stderr: %s", stderr)
	}
}

// scriptedModel returns canned responses in order, recording every prompt
// it was given so tests can assert on the re-prompt's contents.
type scriptedModel struct {
	responses []string
	prompts   []string
}

func (m *scriptedModel) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.prompts = append(m.prompts, prompt)
	i := len(m.prompts) - 1
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i], nil
}

func TestRunRepromptsOnceWithCompilerStderr(t *testing.T) {
	chunks := []models.Chunk{
		{FuncName: "double", Filename: "utils", Source: "func double(x int) int {\n\treturn x * 2\n}", Signature: models.Signature{Params: []string{"x"}}},
	}

	// The first response passes every validator stage but calls an
	// undefined function, so only the compiler catches it. The second
	// response is clean.
	bad := `{"reasoning": "first try", "code": "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tresult := double(4)\n\tquadruple()\n\tfmt.Println(\"result:\", result)\n}", "filename": "output.go"}`
	good := `{"reasoning": "fixed", "code": "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tresult := double(4)\n\tfmt.Println(\"result:\", result)\n}", "filename": "output.go"}`

	model := &scriptedModel{responses: []string{bad, good}}
	a := assembler.NewAssembler(model, 0)
	v := New(&config.VerifierConfig{
		GoBin:        "go",
		ScratchDir:   t.TempDir(),
		MaxReprompts: 1,
	})

	result, ok, stderr := Run(context.Background(), a, v, chunks, "double 4")
	if !ok {
		t.Fatalf("expected the re-prompted assembly to compile, stderr: %s", stderr)
	}
	if len(model.prompts) != 2 {
		t.Fatalf("expected exactly one re-prompt, got %d model calls", len(model.prompts))
	}
	if !strings.Contains(model.prompts[1], "PREVIOUS ATTEMPT FAILED") {
		t.Fatalf("expected the second prompt to carry the failure section")
	}
	if !strings.Contains(model.prompts[1], "quadruple") {
		t.Fatalf("expected the compiler stderr naming quadruple spliced into the re-prompt")
	}
	if result.Reasoning != "fixed" {
		t.Fatalf("expected the second attempt's result, got reasoning %q", result.Reasoning)
	}
}
