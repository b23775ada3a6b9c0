package assembler

import (
	"context"
	"log"

	"github.com/jamaly87/assembly-engine/internal/assembler/validate"
	"github.com/jamaly87/assembly-engine/internal/models"
)

// defaultMaxResponseTokens bounds the model's completion when the caller
// doesn't configure a budget.
const defaultMaxResponseTokens = 400

// Assembler is the constrained assembler: it owns the model handle (a
// long-lived singleton threaded through construction rather than a
// package global) and drives the prompt -> model -> parse -> validate
// state machine, with a single escape edge to the deterministic assembler
// from any non-terminal state.
type Assembler struct {
	model     Model
	maxTokens int
}

// NewAssembler constructs an Assembler bound to model, with maxTokens
// bounding each completion (<= 0 uses the default budget). model may be
// nil, in which case Generate always escapes straight to
// BuildDeterministic - the model-unavailable degradation policy.
func NewAssembler(model Model, maxTokens int) *Assembler {
	if maxTokens <= 0 {
		maxTokens = defaultMaxResponseTokens
	}
	return &Assembler{model: model, maxTokens: maxTokens}
}

// Generate drives the state machine: init -> prompt_built -> model_called
// -> response_parsed -> validated -> ok, escaping to BuildDeterministic
// from any non-terminal state. errorContext, when non-empty, is stderr
// from a prior verifier failure spliced into the prompt for a re-prompt.
func (a *Assembler) Generate(ctx context.Context, chunks []models.Chunk, query, errorContext string) models.AssemblyResult {
	// state: init
	if len(chunks) == 0 {
		return models.AssemblyResult{
			Reasoning: "ERROR: Set intersection returned empty. No matching code chunks.",
			Code:      insufficientDataShell,
			Filename:  models.DefaultOutputFilename,
		}
	}

	if a.model == nil {
		log.Printf("assembler: no model configured, falling back to deterministic assembly")
		return BuildDeterministic(chunks, query)
	}

	// state: prompt_built
	prompt := BuildPrompt(chunks, query, errorContext)

	// state: model_called
	response, err := a.model.Generate(ctx, prompt, a.maxTokens)
	if err != nil {
		log.Printf("assembler: model unavailable (%v), falling back to deterministic assembly", err)
		return BuildDeterministic(chunks, query)
	}

	// state: response_parsed
	parsed, err := extractJSONObject(response)
	if err != nil {
		log.Printf("assembler: model output malformed (%v), falling back to deterministic assembly", err)
		return BuildDeterministic(chunks, query)
	}

	filename := parsed.Filename
	if filename == "" {
		filename = models.DefaultOutputFilename
	}
	code := cleanCode(parsed.Code, filename)

	// state: validated
	importBlock := BuildImportBlock(chunks)
	validated, ok := validate.Chain(code, chunks, importBlock)
	if !ok {
		log.Printf("assembler: model output failed validation, falling back to deterministic assembly")
		return BuildDeterministic(chunks, query)
	}

	// state: ok
	return models.AssemblyResult{
		Reasoning: parsed.Reasoning,
		Code:      validated,
		Filename:  filename,
	}
}
