package stf

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// probeScriptSyntax is a best-effort executability check behind the primary
// bracket/string scan. It only runs for plain (non-module) script content and
// its verdict is advisory: bracket/string failures are always reported first
// by the caller, and any probe-internal failure is treated as a pass.
func probeScriptSyntax(content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if isModuleScript(content) {
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(content))
	if err != nil || tree == nil {
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || !root.HasError() {
		return nil
	}
	if node := firstErrorNode(root); node != nil {
		return fmt.Errorf("syntax error near line %d", node.StartPoint().Row+1)
	}
	return fmt.Errorf("syntax error")
}

func isModuleScript(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "export ") {
			return true
		}
	}
	return false
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}
