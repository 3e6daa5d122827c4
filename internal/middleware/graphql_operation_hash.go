package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperationName = "<anonymous>"

// operationHash identifies an operation independent of whitespace, comments
// and fragments it does not use. It prints the operation plus the fragments
// it references and hashes that together with the operation name.
func operationHash(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) (string, error) {
	if op == nil {
		return "", fmt.Errorf("operation is nil")
	}

	names := referencedFragments(op.SelectionSet, fragments)
	definitions := make([]ast.Node, 0, 1+len(names))
	definitions = append(definitions, op)
	for _, name := range names {
		fragment, ok := fragments[name]
		if !ok || fragment == nil {
			return "", fmt.Errorf("fragment %q not found", name)
		}
		definitions = append(definitions, fragment)
	}

	printed, ok := printer.Print(ast.NewDocument(&ast.Document{Definitions: definitions})).(string)
	if !ok {
		return "", fmt.Errorf("printer returned a non-string document")
	}

	name := anonymousOperationName
	if op.Name != nil && op.Name.Value != "" {
		name = op.Name.Value
	}

	hash := sha256.New()
	for _, part := range []string{printed, name} {
		_, _ = fmt.Fprintf(hash, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func referencedFragments(root *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition) []string {
	if root == nil || len(fragments) == 0 {
		return nil
	}
	seen := map[string]bool{}
	walkFragmentSpreads(root, fragments, seen)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func walkFragmentSpreads(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, seen map[string]bool) {
	if set == nil {
		return
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			walkFragmentSpreads(sel.SelectionSet, fragments, seen)
		case *ast.InlineFragment:
			walkFragmentSpreads(sel.SelectionSet, fragments, seen)
		case *ast.FragmentSpread:
			if sel.Name == nil || sel.Name.Value == "" || seen[sel.Name.Value] {
				continue
			}
			seen[sel.Name.Value] = true
			if fragment, ok := fragments[sel.Name.Value]; ok && fragment != nil {
				walkFragmentSpreads(fragment.SelectionSet, fragments, seen)
			}
		}
	}
}
