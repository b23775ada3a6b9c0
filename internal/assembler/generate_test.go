package assembler

import (
	"context"
	"strings"
	"testing"

	"github.com/jamaly87/assembly-engine/internal/models"
)

func sampleChunk() models.Chunk {
	return models.Chunk{
		FuncName: "double",
		Filename: "utils.go",
		Source:   "func double(x int) int { return x * 2 }",
		Signature: models.Signature{
			Params: []string{"x"},
		},
	}
}

func TestGenerateFallsBackOnEmptyChunks(t *testing.T) {
	a := NewAssembler(&MockModel{Response: "irrelevant"}, 0)
	result := a.Generate(context.Background(), nil, "double a number", "")

	if !strings.Contains(result.Reasoning, "Set intersection returned empty") {
		t.Fatalf("expected empty-chunks reasoning, got: %s", result.Reasoning)
	}
	if !strings.Contains(result.Code, "panic") {
		t.Fatalf("expected insufficient-data shell, got: %s", result.Code)
	}
}

func TestGenerateFallsBackWhenModelNil(t *testing.T) {
	a := NewAssembler(nil, 0)
	result := a.Generate(context.Background(), []models.Chunk{sampleChunk()}, "double 4", "")

	if !strings.Contains(result.Code, "double(") {
		t.Fatalf("expected deterministic call to double, got: %s", result.Code)
	}
}

func TestGenerateFallsBackOnModelError(t *testing.T) {
	a := NewAssembler(&MockModel{Err: context.DeadlineExceeded}, 0)
	result := a.Generate(context.Background(), []models.Chunk{sampleChunk()}, "double 4", "")

	if !strings.Contains(result.Code, "double(") {
		t.Fatalf("expected deterministic fallback to still call double, got: %s", result.Code)
	}
}

func TestGenerateFallsBackOnMalformedModelOutput(t *testing.T) {
	a := NewAssembler(&MockModel{Response: "not even json"}, 0)
	result := a.Generate(context.Background(), []models.Chunk{sampleChunk()}, "double 4", "")

	if !strings.Contains(result.Code, "double(") {
		t.Fatalf("expected deterministic fallback on parse failure, got: %s", result.Code)
	}
}

func TestGenerateFallsBackOnValidationFailure(t *testing.T) {
	response := `{"reasoning": "calls double", "code": "package main\n\nfunc main() {\n\tfmt.Println(\"no call here\")\n}", "filename": "output.go"}`
	a := NewAssembler(&MockModel{Response: response}, 0)
	result := a.Generate(context.Background(), []models.Chunk{sampleChunk()}, "double 4", "")

	if !strings.Contains(result.Code, "double(") {
		t.Fatalf("expected deterministic fallback when model never calls a retrieved func_name, got: %s", result.Code)
	}
}

func TestGenerateReturnsValidatedModelOutput(t *testing.T) {
	response := `{"reasoning": "calls double", "code": "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tresult := double(4)\n\tfmt.Println(\"result:\", result)\n}", "filename": "output.go"}`
	a := NewAssembler(&MockModel{Response: response}, 0)
	result := a.Generate(context.Background(), []models.Chunk{sampleChunk()}, "double 4", "")

	if result.Reasoning != "calls double" {
		t.Fatalf("expected model reasoning to be preserved, got: %s", result.Reasoning)
	}
	if !strings.Contains(result.Code, "double(4)") {
		t.Fatalf("expected validated model code preserved, got: %s", result.Code)
	}
}
