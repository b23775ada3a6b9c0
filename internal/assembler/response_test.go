package assembler

import (
	"strings"
	"testing"
)

func TestExtractJSONObjectParsesFencedResponse(t *testing.T) {
	response := "Here you go:\n```json\n{\"reasoning\": \"calls double\", \"code\": \"package main\", \"filename\": \"output.go\"}\n```\n"
	out, err := extractJSONObject(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Reasoning != "calls double" || out.Filename != "output.go" {
		t.Fatalf("unexpected parse result: %+v", out)
	}
}

func TestExtractJSONObjectToleratesBracesInsideCodeField(t *testing.T) {
	response := `{"reasoning": "ok", "code": "func main() { fmt.Println(\"{}\") }", "filename": "output.go"}`
	out, err := extractJSONObject(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.Code, "fmt.Println") {
		t.Fatalf("expected embedded braces preserved in code field, got: %s", out.Code)
	}
}

func TestExtractJSONObjectSkipsNonMatchingObjectBeforeRealOne(t *testing.T) {
	response := `{"unrelated": true} then {"reasoning": "r", "code": "c", "filename": "f.go"}`
	out, err := extractJSONObject(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Reasoning != "r" {
		t.Fatalf("expected to find the second object, got: %+v", out)
	}
}

func TestExtractJSONObjectErrorsWhenNoObjectFound(t *testing.T) {
	if _, err := extractJSONObject("no json here at all"); err == nil {
		t.Fatalf("expected an error for input with no JSON object")
	}
}

func TestCleanCodeStripsFencesAndSelfReference(t *testing.T) {
	code := "```go\npackage main\n\n// uses: output.go\nfunc main() {}\n```"
	cleaned := cleanCode(code, "output.go")

	if strings.Contains(cleaned, "```") {
		t.Fatalf("expected code fences stripped, got: %s", cleaned)
	}
	if strings.Contains(cleaned, "// uses: output.go") {
		t.Fatalf("expected self-referential provenance line stripped, got: %s", cleaned)
	}
	if !strings.Contains(cleaned, "func main()") {
		t.Fatalf("expected real code preserved, got: %s", cleaned)
	}
}
