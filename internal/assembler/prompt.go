package assembler

import (
	"fmt"
	"log"
	"strings"

	"github.com/jamaly87/assembly-engine/internal/models"
	"github.com/pkoukk/tiktoken-go"
)

// promptEncoding is the tokenizer used purely to budget the rendered
// prompt, not to tokenize code for the model itself (the model has its
// own tokenizer; this is the constrained assembler's own estimate of how
// much retrieved-chunk context it can afford to keep).
const promptEncoding = "cl100k_base"

// maxPromptTokens bounds how much of the rendered prompt (system + user
// turns) the constrained assembler will send, trimming retrieved-chunk
// context from the tail when the budget would be exceeded. This keeps the
// max_tokens ≈ 400 response budget honest by not crowding the context
// window with more chunk source than the model can reason over.
const maxPromptTokens = 3000

// BuildImportBlock renders the provenance block assembled code must begin
// with: one comment per origin file naming the functions a caller may
// invoke directly (same-package call convention, since Go has no
// intra-module import).
func BuildImportBlock(chunks []models.Chunk) string {
	order, byFile := groupByFilename(chunks)
	lines := make([]string, 0, len(order))
	for _, f := range order {
		lines = append(lines, fmt.Sprintf("// uses: %s (from %s)", strings.Join(byFile[f], ", "), f))
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt renders the four-part structured prompt: system role,
// required imports, retrieved chunk sources with provenance, and the user
// query. When errorContext is non-empty, a "previous attempt failed"
// block is spliced in verbatim before the closing assistant delimiter -
// the re-prompt path wired from the verifier loop.
func BuildPrompt(chunks []models.Chunk, query, errorContext string) string {
	importBlock := BuildImportBlock(chunks)

	contextChunks := trimToBudget(chunks, importBlock, query, errorContext)

	var context strings.Builder
	for i, c := range contextChunks {
		if i > 0 {
			context.WriteString("\n\n")
		}
		context.WriteString(fmt.Sprintf("// %s from %s:\n%s", c.FuncName, c.Filename, c.Source))
	}

	errorSection := ""
	if errorContext != "" {
		errorSection = fmt.Sprintf("\nPREVIOUS ATTEMPT FAILED with this error:\n```\n%s\n```\nFIX THE ERROR and generate correct code.\n", errorContext)
	}

	return fmt.Sprintf(`<|im_start|>system
You are a CODE ASSEMBLER, not a code generator. You MUST:
1. Use ONLY the functions provided below - no new implementations
2. Output valid JSON matching this exact schema: {"reasoning": "...", "code": "...", "filename": "output.go"}
3. The "code" field must start with this exact provenance block:
%s

Available functions (USE THESE ONLY):
%s
<|im_end|>
<|im_start|>user
Assemble code to: %s
Remember: Just CALL the provided functions. Do not implement new logic.
%s<|im_end|>
<|im_start|>assistant
`, importBlock, context.String(), query, errorSection)
}

// trimToBudget walks the retrieved chunks in order and drops (and logs)
// each one whose estimated token cost would push the prompt past
// maxPromptTokens. The first chunk is always kept, even if it alone
// exceeds the budget.
func trimToBudget(chunks []models.Chunk, importBlock, query, errorContext string) []models.Chunk {
	enc, err := tiktoken.GetEncoding(promptEncoding)
	if err != nil {
		log.Printf("assembler: tiktoken encoding unavailable (%v), skipping prompt budget trim", err)
		return chunks
	}

	fixedOverhead := len(enc.Encode(importBlock+query+errorContext, nil, nil)) + 200

	kept := make([]models.Chunk, 0, len(chunks))
	used := fixedOverhead
	for _, c := range chunks {
		cost := len(enc.Encode(c.Source, nil, nil)) + 16
		if used+cost > maxPromptTokens && len(kept) > 0 {
			log.Printf("assembler: dropping chunk %q from prompt context, token budget exhausted", c.FuncName)
			continue
		}
		kept = append(kept, c)
		used += cost
	}
	return kept
}
