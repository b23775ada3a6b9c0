package assembler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jamaly87/assembly-engine/internal/models"
)

// integerLiteralPattern pulls the query's integer pool, left to right.
var integerLiteralPattern = regexp.MustCompile(`\d+`)

// funcInfo is a chunk reduced to what the deterministic assembler actually
// needs: name, arity, and the provenance file it groups imports by.
type funcInfo struct {
	name       string
	filename   string
	paramCount int
}

// BuildDeterministic synthesises a call-sequence script from chunks and
// query, using only signature arity - no model involved. This is the
// grounding floor every other assembly path falls back to.
func BuildDeterministic(chunks []models.Chunk, query string) models.AssemblyResult {
	if len(chunks) == 0 {
		return models.AssemblyResult{
			Reasoning: "ERROR: No matching chunks found. Cannot proceed.",
			Code:      insufficientDataShell,
			Filename:  models.DefaultOutputFilename,
		}
	}

	fileOrder, filesToFuncs := groupByFilename(chunks)
	infos := make([]funcInfo, 0, len(chunks))
	names := make([]string, 0, len(chunks))
	for _, c := range chunks {
		params := c.Signature.Params
		if len(params) > 0 && params[0] == "self" {
			params = params[1:]
		}
		infos = append(infos, funcInfo{name: c.FuncName, filename: c.Filename, paramCount: len(params)})
		names = append(names, c.FuncName)
	}

	numbers := integerLiteralPattern.FindAllString(query, -1)
	numberIdx := 0

	var body strings.Builder
	resultDeclared := false
	resultBound := false
	var resultVar string
	for i, fn := range infos {
		body.WriteString(fmt.Sprintf("\t// Step %d: Call %s (%d params)\n", i+1, fn.name, fn.paramCount))

		if fn.paramCount == 0 {
			body.WriteString(fmt.Sprintf("\t%s()\n", fn.name))
			continue
		}

		args := make([]string, 0, fn.paramCount)
		for j := 0; j < fn.paramCount; j++ {
			switch {
			case resultBound && j == 0:
				args = append(args, resultVar)
			case numberIdx < len(numbers):
				args = append(args, numbers[numberIdx])
				numberIdx++
			default:
				args = append(args, fmt.Sprintf("%d", 10+j))
			}
		}

		resultVar = "result"
		assign := ":="
		if resultDeclared {
			assign = "="
		}
		body.WriteString(fmt.Sprintf("\tresult %s %s(%s)\n", assign, fn.name, strings.Join(args, ", ")))
		resultDeclared = true
		resultBound = true
	}

	if resultBound {
		body.WriteString("\n\tfmt.Println(\"result:\", result)\n")
	}

	// The header is built after the body so the fmt import only appears
	// when a result was bound and printed - an unused import would not
	// compile.
	var code strings.Builder
	code.WriteString("package main\n\n")
	if resultBound {
		code.WriteString("import \"fmt\"\n\n")
	}
	for _, fname := range fileOrder {
		code.WriteString(fmt.Sprintf("// uses: %s (from %s)\n", strings.Join(filesToFuncs[fname], ", "), fname))
	}
	code.WriteString("\nfunc main() {\n")
	code.WriteString(body.String())
	code.WriteString("}\n")

	return models.AssemblyResult{
		Reasoning: fmt.Sprintf("Deterministic assembly using %d chunks with signature-aware calls: %s",
			len(chunks), strings.Join(names, ", ")),
		Code:     code.String(),
		Filename: models.DefaultOutputFilename,
	}
}

// insufficientDataShell is the panic-shell used when no chunks survive
// retrieval but the deterministic assembler is still invoked directly: a
// minimal valid program that fails loudly at runtime instead of compile
// time, so the output always parses.
const insufficientDataShell = `package main

func main() {
	panic("insufficient data: no matching chunks found")
}
`

// groupByFilename buckets chunks by origin file in first-seen order,
// deduplicating function names per file. The buckets become the per-file
// provenance comments the assembled code begins with.
func groupByFilename(chunks []models.Chunk) ([]string, map[string][]string) {
	order := make([]string, 0)
	seen := make(map[string]bool)
	byFile := make(map[string][]string)

	for _, c := range chunks {
		if !seen[c.Filename] {
			seen[c.Filename] = true
			order = append(order, c.Filename)
		}
		funcs := byFile[c.Filename]
		if !containsString(funcs, c.FuncName) {
			byFile[c.Filename] = append(funcs, c.FuncName)
		}
	}

	return order, byFile
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
