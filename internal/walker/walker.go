// Package walker implements the generic traversal of a JSON document paired
// with its specification.
//
// The walk is a synchronized depth-first descent: document and schema are
// descended together, and a pluggable visitor is invoked only at leaves
// whose schema node carries the sensitive annotation. Everything else is
// copied, so the output is structurally isomorphic to the input except at
// sensitive leaves. The walker itself performs no I/O; the visitor decides
// what a sensitive leaf becomes (obfuscation and hydration are both just
// visitors).
//
// Composition keywords require speculative matching: a schema with oneOf or
// anyOf alternatives is resolved by validating the document subtree against
// each branch and selecting the first branch that structurally validates.
// The selection is a pure function; the walker stays branch-agnostic.
package walker

import (
	"fmt"
	"strconv"

	"github.com/xeipuuv/gojsonschema"

	cserrors "github.com/systmms/confseal/internal/errors"
	"github.com/systmms/confseal/internal/schema"
)

// Visitor is invoked at every sensitive leaf during a walk. The returned
// value replaces the leaf in the transformed document.
type Visitor interface {
	OnSecretLeaf(path schema.Path, value any) (any, error)
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc func(path schema.Path, value any) (any, error)

// OnSecretLeaf implements Visitor.
func (f VisitorFunc) OnSecretLeaf(path schema.Path, value any) (any, error) {
	return f(path, value)
}

// Walk traverses doc against spec and returns the transformed document.
// Non-secret data passes through untouched; array order is preserved and
// objects are rebuilt key for key.
func Walk(doc any, spec map[string]any, visitor Visitor) (any, error) {
	return walk(doc, spec, nil, visitor)
}

func walk(doc any, node map[string]any, path schema.Path, visitor Visitor) (any, error) {
	node, err := resolveComposition(doc, node, path)
	if err != nil {
		return nil, err
	}

	if schema.IsSecret(node) {
		return visitor.OnSecretLeaf(path, doc)
	}

	if _, ok := node["properties"]; ok {
		return walkObject(doc, node, path, visitor)
	}
	if _, ok := node["items"]; ok {
		return walkArray(doc, node, path, visitor)
	}

	// Scalar or unconstrained node: plain data.
	return doc, nil
}

func walkObject(doc any, node map[string]any, path schema.Path, visitor Visitor) (any, error) {
	props := node["properties"].(map[string]any)

	docMap, ok := doc.(map[string]any)
	if !ok {
		// A mismatch only matters if it hides a sensitive descendant.
		if schema.HasSecrets(node) {
			return nil, cserrors.TraversalError{
				Path:    path.String(),
				Message: fmt.Sprintf("expected object, got %T", doc),
			}
		}
		return doc, nil
	}

	out := make(map[string]any, len(docMap))
	for key, value := range docMap {
		childNode, ok := props[key].(map[string]any)
		if !ok {
			// Property not described by the schema: copy unchanged.
			out[key] = value
			continue
		}
		transformed, err := walk(value, childNode, path.Child(key), visitor)
		if err != nil {
			return nil, err
		}
		out[key] = transformed
	}
	return out, nil
}

func walkArray(doc any, node map[string]any, path schema.Path, visitor Visitor) (any, error) {
	items, ok := node["items"].(map[string]any)
	if !ok {
		return nil, cserrors.SchemaError{
			Path:    path.String(),
			Message: "'items' is not an object",
		}
	}

	docList, ok := doc.([]any)
	if !ok {
		if schema.HasSecrets(node) {
			return nil, cserrors.TraversalError{
				Path:    path.String(),
				Message: fmt.Sprintf("expected array, got %T", doc),
			}
		}
		return doc, nil
	}

	// Each element gets its concrete index as the path segment. Paths must
	// identify one leaf, not one schema position: callers correlate leaves
	// across documents by path, and a shared wildcard segment would fold
	// every element of a secret array onto the same key.
	out := make([]any, len(docList))
	for i, element := range docList {
		transformed, err := walk(element, items, path.Child(strconv.Itoa(i)), visitor)
		if err != nil {
			return nil, err
		}
		out[i] = transformed
	}
	return out, nil
}

// resolveComposition collapses the composition keywords on a node into one
// concrete schema for this document subtree. allOf branches always apply
// and are merged in order; oneOf/anyOf alternatives are resolved by
// speculative matching, first structurally-valid branch wins.
func resolveComposition(doc any, node map[string]any, path schema.Path) (map[string]any, error) {
	resolved := node

	if branches, ok := node["allOf"].([]any); ok {
		resolved = stripKeyword(resolved, "allOf")
		for i, branch := range branches {
			branchNode, ok := branch.(map[string]any)
			if !ok {
				return nil, cserrors.SchemaError{
					Path:    path.String(),
					Message: fmt.Sprintf("'allOf' branch %d is not an object", i),
				}
			}
			resolved = mergeNodes(resolved, branchNode)
		}
	}

	for _, keyword := range []string{"oneOf", "anyOf"} {
		branches, ok := resolved[keyword].([]any)
		if !ok {
			continue
		}
		resolved = stripKeyword(resolved, keyword)

		selected, err := selectBranch(doc, branches, path)
		if err != nil {
			return nil, err
		}
		if selected == nil {
			// No branch matched. Tolerable only when no branch could
			// have marked anything sensitive.
			for _, branch := range branches {
				if branchNode, ok := branch.(map[string]any); ok && schema.HasSecrets(branchNode) {
					return nil, cserrors.TraversalError{
						Path:    path.String(),
						Message: fmt.Sprintf("document matches no '%s' branch", keyword),
					}
				}
			}
			continue
		}
		resolved = mergeNodes(resolved, selected)
	}

	return resolved, nil
}

// selectBranch returns the first branch the document subtree structurally
// validates against, or nil when none matches.
func selectBranch(doc any, branches []any, path schema.Path) (map[string]any, error) {
	for i, branch := range branches {
		branchNode, ok := branch.(map[string]any)
		if !ok {
			return nil, cserrors.SchemaError{
				Path:    path.String(),
				Message: fmt.Sprintf("composition branch %d is not an object", i),
			}
		}

		result, err := gojsonschema.Validate(
			gojsonschema.NewGoLoader(relaxSecrets(branchNode)),
			gojsonschema.NewGoLoader(doc),
		)
		if err != nil {
			return nil, cserrors.SchemaError{
				Path:    path.String(),
				Message: fmt.Sprintf("composition branch %d does not compile: %v", i, err),
			}
		}
		if result.Valid() {
			return branchNode, nil
		}
	}
	return nil, nil
}

// relaxSecrets rewrites a branch schema so sensitive leaves accept any
// value. An obfuscated document carries wrapper objects where the schema
// declares strings; branch selection must match either representation, so
// every annotated node becomes an unconstrained schema for the purpose of
// speculative validation.
func relaxSecrets(node map[string]any) map[string]any {
	if schema.IsSecret(node) {
		return map[string]any{}
	}

	out := make(map[string]any, len(node))
	for key, value := range node {
		switch key {
		case "properties":
			if props, ok := value.(map[string]any); ok {
				relaxed := make(map[string]any, len(props))
				for name, child := range props {
					if childNode, ok := child.(map[string]any); ok {
						relaxed[name] = relaxSecrets(childNode)
					} else {
						relaxed[name] = child
					}
				}
				out[key] = relaxed
				continue
			}
		case "items":
			if itemsNode, ok := value.(map[string]any); ok {
				out[key] = relaxSecrets(itemsNode)
				continue
			}
		case "oneOf", "anyOf", "allOf":
			if branches, ok := value.([]any); ok {
				relaxed := make([]any, len(branches))
				for i, branch := range branches {
					if branchNode, ok := branch.(map[string]any); ok {
						relaxed[i] = relaxSecrets(branchNode)
					} else {
						relaxed[i] = branch
					}
				}
				out[key] = relaxed
				continue
			}
		}
		out[key] = value
	}
	return out
}

// mergeNodes overlays branch onto base without mutating either. Properties
// maps are merged key-wise; any other keyword on the branch wins.
func mergeNodes(base, branch map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(branch))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range branch {
		if key == "properties" {
			baseProps, okBase := merged["properties"].(map[string]any)
			branchProps, okBranch := value.(map[string]any)
			if okBase && okBranch {
				props := make(map[string]any, len(baseProps)+len(branchProps))
				for name, node := range baseProps {
					props[name] = node
				}
				for name, node := range branchProps {
					props[name] = node
				}
				merged["properties"] = props
				continue
			}
		}
		merged[key] = value
	}
	return merged
}

func stripKeyword(node map[string]any, keyword string) map[string]any {
	out := make(map[string]any, len(node))
	for key, value := range node {
		if key == keyword {
			continue
		}
		out[key] = value
	}
	return out
}
