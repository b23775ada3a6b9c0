package validate

import (
	"strings"
	"testing"

	"github.com/jamaly87/assembly-engine/internal/models"
)

func sampleChunks() []models.Chunk {
	return []models.Chunk{
		{FuncName: "double", Filename: "utils", Source: "func double(x int) int { return x * 2 }"},
	}
}

func TestChainInjectsMissingImportBlock(t *testing.T) {
	code := "package main\n\nfunc main() {\n\tresult := double(4)\n\tfmt.Println(\"result:\", result)\n}\n"
	out, ok := Chain(code, sampleChunks(), "// uses: double (from utils)")
	if !ok {
		t.Fatalf("expected chain to pass")
	}
	if !strings.Contains(out, "// uses: double (from utils)") {
		t.Fatalf("expected import block injected, got: %s", out)
	}
}

func TestChainFallsBackOnEmptyCallGraph(t *testing.T) {
	code := "package main\n\nfunc main() {\n\tfmt.Println(\"nothing to see here\")\n}\n"
	_, ok := Chain(code, sampleChunks(), "// uses: double (from utils)")
	if ok {
		t.Fatalf("expected fallback when code never mentions a retrieved func_name")
	}
}

func TestChainFallsBackOnSyntaxError(t *testing.T) {
	code := "package main\n\nfunc main() {\n\tresult := double(\n}\n"
	_, ok := Chain(code, sampleChunks(), "// uses: double (from utils)")
	if ok {
		t.Fatalf("expected fallback on invalid Go syntax")
	}
}

func TestChainFallsBackOnUseBeforeDefine(t *testing.T) {
	code := "package main\n\nfunc main() {\n\tresult := double(result)\n\tfmt.Println(\"result:\", result)\n}\n"
	_, ok := Chain(code, sampleChunks(), "// uses: double (from utils)")
	if ok {
		t.Fatalf("expected fallback when result is read before it is ever defined")
	}
}

func TestChainAppendsPrintWhenResultBoundButNeverPrinted(t *testing.T) {
	code := "package main\n\nfunc main() {\n\tresult := double(4)\n}\n"
	out, ok := Chain(code, sampleChunks(), "// uses: double (from utils)")
	if !ok {
		t.Fatalf("expected chain to pass and append a print")
	}
	if !strings.Contains(out, "fmt.Println") {
		t.Fatalf("expected a trailing print appended, got: %s", out)
	}
}

func TestChainFallsBackWhenNeitherPrintsNorBindsResult(t *testing.T) {
	code := "package main\n\nfunc main() {\n\tdouble(4)\n}\n"
	_, ok := Chain(code, sampleChunks(), "// uses: double (from utils)")
	if ok {
		t.Fatalf("expected fallback when code neither prints nor binds result")
	}
}
