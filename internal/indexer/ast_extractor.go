package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync"

	"github.com/jamaly87/assembly-engine/internal/models"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// Tree-sitter node type constants for the Go grammar. These strings are
// defined by the tree-sitter-go grammar itself, not by this package; they
// are stable within a parser version but not Go language constants.
const (
	nodeTypeFuncDecl              = "function_declaration"
	nodeTypeMethodDecl            = "method_declaration"
	nodeTypeParameterList         = "parameter_list"
	nodeTypeParameterDecl         = "parameter_declaration"
	nodeTypeVariadicParameterDecl = "variadic_parameter_declaration"
	nodeTypeIdentifier            = "identifier"
	nodeTypeFieldIdentifier       = "field_identifier"
)

// minChunkSizeBytes skips incomplete or stub declarations too small to be
// a meaningful callable unit.
const minChunkSizeBytes = 10

// ASTExtractor walks a parsed Go source file and extracts its
// function/method declarations as chunks. One parser instance, guarded by
// a mutex because tree-sitter parsers are not goroutine-safe, reused
// across files.
type ASTExtractor struct {
	parser *sitter.Parser
	mux    sync.Mutex
}

// NewASTExtractor constructs an extractor bound to the Go grammar. A
// failure to obtain the grammar is fatal: the caller should refuse all
// further indexing calls.
func NewASTExtractor() (*ASTExtractor, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	return &ASTExtractor{parser: parser}, nil
}

// ExtractChunks parses content (the bytes of filename, a bare module stem
// used as the Chunk's Filename) and returns every function/method
// declaration found, at every nesting depth.
func (ax *ASTExtractor) ExtractChunks(filename, content string) ([]models.Chunk, error) {
	ax.mux.Lock()
	tree := ax.parser.Parse(nil, []byte(content))
	ax.mux.Unlock()

	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", filename)
	}

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("empty parse tree for %s", filename)
	}

	var chunks []models.Chunk
	ax.walk(root, content, func(node *sitter.Node, nodeType string) {
		chunk := ax.createChunk(node, filename, content, nodeType)
		if chunk != nil {
			chunks = append(chunks, *chunk)
		}
	})

	return chunks, nil
}

// walk recursively visits every node, invoking callback for function and
// method declarations at any depth (a method defined inside a nested
// scope is still captured).
func (ax *ASTExtractor) walk(node *sitter.Node, content string, callback func(*sitter.Node, string)) {
	if node == nil {
		return
	}

	nodeType := node.Type()
	if nodeType == nodeTypeFuncDecl || nodeType == nodeTypeMethodDecl {
		callback(node, nodeType)
	}

	childCount := int(node.ChildCount())
	for i := 0; i < childCount; i++ {
		ax.walk(node.Child(i), content, callback)
	}
}

// createChunk builds a Chunk from a function/method declaration node.
func (ax *ASTExtractor) createChunk(node *sitter.Node, filename, content, nodeType string) *models.Chunk {
	if node == nil {
		return nil
	}

	startByte := node.StartByte()
	endByte := node.EndByte()
	if startByte >= endByte || int(endByte) > len(content) {
		return nil
	}

	source := content[startByte:endByte]
	if len(source) < minChunkSizeBytes {
		return nil
	}

	name := ax.extractName(node, content)
	if name == "" {
		log.Printf("indexer: declaration without a name in %s, skipping", filename)
		return nil
	}

	params := ax.extractParams(node, content)
	sum := sha256.Sum256([]byte(source))

	return &models.Chunk{
		FuncName: name,
		Filename: filename,
		Source:   source,
		Signature: models.Signature{
			Params:  params,
			Returns: nil,
		},
		ChunkID: hex.EncodeToString(sum[:]),
	}
}

// extractName finds the declaration's name child. function_declaration
// names are plain identifiers; method_declaration names are
// field_identifiers (the Go grammar's term for a name attached to a
// receiver).
func (ax *ASTExtractor) extractName(node *sitter.Node, content string) string {
	childCount := int(node.ChildCount())
	for i := 0; i < childCount; i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		childType := child.Type()
		if childType == nodeTypeIdentifier || childType == nodeTypeFieldIdentifier {
			start, end := child.StartByte(), child.EndByte()
			if int(start) < int(end) && int(end) <= len(content) {
				return content[start:end]
			}
		}
	}
	return ""
}

// extractParams walks the declaration's parameter_list. A method's
// receiver lives in its own parameter_list and is never counted among the
// params.
func (ax *ASTExtractor) extractParams(node *sitter.Node, content string) []string {
	paramList := ax.findParameterList(node, content)
	if paramList == nil {
		return []string{}
	}

	var params []string
	childCount := int(paramList.ChildCount())
	for i := 0; i < childCount; i++ {
		child := paramList.Child(i)
		if child == nil {
			continue
		}
		if child.Type() == nodeTypeParameterDecl || child.Type() == nodeTypeVariadicParameterDecl {
			params = append(params, ax.extractParamNames(child, content)...)
		}
	}
	if params == nil {
		params = []string{}
	}
	return params
}

// findParameterList locates the declaration's own parameter_list, skipping
// the first one encountered on a method_declaration (the receiver list)
// so only the true argument list is used.
func (ax *ASTExtractor) findParameterList(node *sitter.Node, content string) *sitter.Node {
	skipFirst := node.Type() == nodeTypeMethodDecl
	childCount := int(node.ChildCount())
	for i := 0; i < childCount; i++ {
		child := node.Child(i)
		if child == nil || child.Type() != nodeTypeParameterList {
			continue
		}
		if skipFirst {
			skipFirst = false
			continue
		}
		return child
	}
	return nil
}

// extractParamNames pulls every identifier name out of a parameter
// declaration. Go allows grouped names ("a, b int"), so a single
// declaration node can yield more than one param name.
func (ax *ASTExtractor) extractParamNames(decl *sitter.Node, content string) []string {
	var names []string
	childCount := int(decl.ChildCount())
	for i := 0; i < childCount; i++ {
		child := decl.Child(i)
		if child == nil || child.Type() != nodeTypeIdentifier {
			continue
		}
		start, end := child.StartByte(), child.EndByte()
		if int(start) < int(end) && int(end) <= len(content) {
			names = append(names, content[start:end])
		}
	}
	return names
}

// Close releases the held parser. smacker's tree-sitter parsers need no
// explicit teardown beyond dropping the reference.
func (ax *ASTExtractor) Close() {
	ax.parser = nil
}
