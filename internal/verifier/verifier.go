// Package verifier implements the compile-and-fix loop: write assembled
// code to disk, shell out to an external compiler check, and on failure
// re-invoke the constrained assembler with the compiler's stderr as
// error context.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jamaly87/assembly-engine/internal/assembler"
	"github.com/jamaly87/assembly-engine/internal/models"
	"github.com/jamaly87/assembly-engine/pkg/config"
)

// Verifier writes candidate code to a scratch directory and shells out
// to `go build` as a compile-only check. No binary is ever executed -
// assembled code is checked, never run.
type Verifier struct {
	cfg *config.VerifierConfig
}

// New constructs a Verifier bound to cfg.
func New(cfg *config.VerifierConfig) *Verifier {
	return &Verifier{cfg: cfg}
}

// CompileAndFix writes code to filename inside the scratch directory and
// invokes a compile-only `go build`, returning (true, "", nil) on exit 0.
// A non-zero exit returns the captured stderr for the caller to act on -
// this single call never retries or re-prompts; that's Run's job.
func (v *Verifier) CompileAndFix(ctx context.Context, code, filename string) (bool, string, error) {
	if err := os.MkdirAll(v.cfg.ScratchDir, 0o755); err != nil {
		return false, "", fmt.Errorf("failed to create scratch directory: %w", err)
	}

	// The filename may come from model output; keep it confined to the
	// scratch directory.
	path := filepath.Join(v.cfg.ScratchDir, filepath.Base(filename))
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return false, "", fmt.Errorf("failed to write output file: %w", err)
	}

	goBin := v.cfg.GoBin
	if goBin == "" {
		goBin = "go"
	}

	cmd := exec.CommandContext(ctx, goBin, "build", "-o", os.DevNull, path)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return true, "", nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, string(output), nil
	}
	return false, "", fmt.Errorf("failed to invoke compiler: %w", err)
}

// withSupportingDefinitions appends each chunk's source to code unless the
// code already defines a function of that name. The glue code calls
// workspace functions by name; the compiler can only resolve them if their
// definitions travel in the same compilation unit.
func withSupportingDefinitions(code string, chunks []models.Chunk) string {
	var unit strings.Builder
	unit.WriteString(strings.TrimRight(code, "\n"))
	unit.WriteString("\n")

	for _, c := range chunks {
		if strings.Contains(code, "func "+c.FuncName+"(") {
			continue
		}
		unit.WriteString("\n")
		unit.WriteString(strings.TrimRight(c.Source, "\n"))
		unit.WriteString("\n")
	}

	return unit.String()
}

// Run drives the assemble -> compile -> re-prompt loop: assembler.Generate
// is first called with no error context; on compile failure it is called
// again with the captured stderr as error context, up to MaxReprompts
// additional times. The final failure's stderr is surfaced to the caller
// without a further retry.
func Run(ctx context.Context, a *assembler.Assembler, v *Verifier, chunks []models.Chunk, query string) (models.AssemblyResult, bool, string) {
	maxReprompts := v.cfg.MaxReprompts

	errorContext := ""
	var result models.AssemblyResult
	var stderr string
	for attempt := 0; attempt <= maxReprompts; attempt++ {
		result = a.Generate(ctx, chunks, query, errorContext)

		unit := withSupportingDefinitions(result.Code, chunks)
		ok, out, err := v.CompileAndFix(ctx, unit, result.Filename)
		if err != nil {
			return result, false, err.Error()
		}
		if ok {
			return result, true, ""
		}
		stderr = out
		errorContext = out
	}
	return result, false, stderr
}
