// Package validate implements the constrained assembler's five-layer
// validator chain: a pipeline of stages over model output, each of which
// either passes (possibly repairing the code) or escapes to the
// deterministic fallback. There are no retries in this package - an
// escape is terminal for the chain, handled by the caller.
package validate

import (
	"go/parser"
	"go/token"
	"strings"

	"github.com/jamaly87/assembly-engine/internal/models"
)

// sentinel names the use-before-define stage watches for on the RHS of an
// assignment before they've ever appeared on an LHS.
var sentinelNames = []string{"result", "output", "value", "total"}

// Context carries everything a validator stage needs: the code under
// test, the chunks it was grounded on, and the provenance block it must
// begin with.
type Context struct {
	Code        string
	Chunks      []models.Chunk
	ImportBlock string
}

// Result is the sum type each stage produces: either the (possibly
// repaired) code to carry forward, or Fallback signalling the chain
// should escape to the deterministic assembler. There is no partial
// "warn but continue" state - every stage either passes or escapes.
type Result struct {
	Code     string
	Fallback bool
}

// Stage is one link in the validator chain.
type Stage func(ctx Context) Result

// Chain runs every stage in order over code, threading the possibly
// repaired code from one stage into the next. It returns the final code
// and true on success, or ("", false) the moment any stage escapes.
func Chain(code string, chunks []models.Chunk, importBlock string) (string, bool) {
	ctx := Context{Code: code, Chunks: chunks, ImportBlock: importBlock}

	stages := []Stage{
		ImportInjection,
		FunctionUsage,
		Syntax,
		UseBeforeDefine,
		Completeness,
	}

	for _, stage := range stages {
		result := stage(ctx)
		if result.Fallback {
			return "", false
		}
		ctx.Code = result.Code
	}

	return ctx.Code, true
}

// ImportInjection prepends the required provenance block if it isn't
// already present as a substring of the code.
func ImportInjection(ctx Context) Result {
	if strings.Contains(ctx.Code, ctx.ImportBlock) {
		return Result{Code: ctx.Code}
	}
	return Result{Code: ctx.ImportBlock + "\n\n" + ctx.Code}
}

// FunctionUsage requires code to mention at least one retrieved
// func_name as a substring. An empty call graph means the model ignored
// every provided chunk - escape to deterministic assembly.
func FunctionUsage(ctx Context) Result {
	// The provenance block names every retrieved function, so it is left
	// out of the search: only the code around it counts as usage.
	body := ctx.Code
	if ctx.ImportBlock != "" {
		body = strings.Replace(body, ctx.ImportBlock, "", 1)
	}
	for _, c := range ctx.Chunks {
		if strings.Contains(body, c.FuncName) {
			return Result{Code: ctx.Code}
		}
	}
	return Result{Fallback: true}
}

// Syntax requires code to parse as valid Go. This is the one place the
// validator chain reaches for go/parser from the standard library rather
// than tree-sitter: verifying assembled Go syntax is a self-contained,
// allocation-free check the standard library already gets exactly right,
// and a typed *ast.File plus a precise scanner.ErrorList beats re-deriving
// position info from a tree-sitter tree we'd have to re-parse anyway.
func Syntax(ctx Context) Result {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "assembled.go", ctx.Code, parser.AllErrors); err != nil {
		return Result{Fallback: true}
	}
	return Result{Code: ctx.Code}
}

// comparisonOperators are substrings that mean a line's "=" is part of a
// comparison, not an assignment, and should be skipped by the
// use-before-define scan.
var comparisonOperators = []string{"==", "!=", "<=", ">="}

// UseBeforeDefine line-scans code for assignments and rejects any whose
// right-hand side references a sentinel name before it has ever appeared
// on a left-hand side - the model must not assign from a variable it
// never produced.
func UseBeforeDefine(ctx Context) Result {
	defined := make(map[string]bool)

	for _, rawLine := range strings.Split(ctx.Code, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "func ") {
			continue
		}
		if !strings.Contains(line, "=") {
			continue
		}
		if isComparison(line) {
			continue
		}

		lhs, rhs, ok := splitOnce(line, "=")
		if !ok {
			continue
		}

		for _, name := range sentinelNames {
			if strings.Contains(rhs, name) && !defined[name] {
				return Result{Fallback: true}
			}
		}

		if ident := singleIdentifier(lhs); ident != "" {
			defined[ident] = true
		}
	}

	return Result{Code: ctx.Code}
}

// Completeness requires code to either print something or bind the
// conventional result variable. If it binds result but never prints, a
// trailing print is appended rather than escaping.
func Completeness(ctx Context) Result {
	hasPrint := strings.Contains(ctx.Code, "fmt.Println(") || strings.Contains(ctx.Code, "fmt.Printf(")
	hasResult := strings.Contains(ctx.Code, "result :=") || strings.Contains(ctx.Code, "result =")

	if !hasPrint && !hasResult {
		return Result{Fallback: true}
	}
	if hasResult && !hasPrint {
		// The print has to land inside main's body, before the final
		// closing brace - appending to the end of the file would put it
		// at top level.
		idx := strings.LastIndex(ctx.Code, "}")
		if idx == -1 {
			return Result{Fallback: true}
		}
		code := ctx.Code[:idx] + "\tfmt.Println(\"result:\", result)\n" + ctx.Code[idx:]
		if !strings.Contains(code, `"fmt"`) {
			code = injectFmtImport(code)
		}
		return Result{Code: code}
	}
	return Result{Code: ctx.Code}
}

func injectFmtImport(code string) string {
	if idx := strings.Index(code, "package main"); idx != -1 {
		end := idx + len("package main")
		return code[:end] + "\n\nimport \"fmt\"\n" + code[end:]
	}
	return code
}

func isComparison(line string) bool {
	for _, op := range comparisonOperators {
		if strings.Contains(line, op) {
			return true
		}
	}
	return false
}

// splitOnce splits line on the first bare "=" (not part of a multi-char
// operator already filtered out by isComparison).
func splitOnce(line, sep string) (lhs, rhs string, ok bool) {
	idx := strings.Index(line, sep)
	if idx == -1 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

// singleIdentifier returns lhs if it is a single bare identifier (no
// ":=", no ".", no "[", no spaces after trimming), handling Go's ":="
// short declaration by stripping the trailing colon.
func singleIdentifier(lhs string) string {
	lhs = strings.TrimSpace(strings.TrimSuffix(lhs, ":"))
	if lhs == "" {
		return ""
	}
	for _, r := range lhs {
		if !isIdentifierRune(r) {
			return ""
		}
	}
	return lhs
}

func isIdentifierRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
