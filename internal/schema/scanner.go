// Package schema scans JSON-schema-like connector specifications for
// properties flagged sensitive.
//
// Sensitivity is declared by annotation, not by type: any schema node
// carrying `airbyte_secret: true` marks its property path as sensitive.
// Scanning is schema-driven and generic over document shape, so it must
// follow nested objects, array items, and every branch of the composition
// keywords (oneOf/anyOf/allOf). A document may match any branch, so the
// result is the union across branches.
package schema

import (
	"fmt"
	"sort"
	"strings"

	cserrors "github.com/systmms/confseal/internal/errors"
)

// SecretAnnotation is the schema key that flags a property as sensitive.
const SecretAnnotation = "airbyte_secret"

// ItemsToken is the path segment standing for "any element" of an array.
// It appears only in scanner output, which describes schema positions;
// document walks use the concrete element index so each leaf has a path
// of its own.
const ItemsToken = "[]"

// Path is an ordered sequence of segments from the document root to a
// sensitive leaf: property names, plus ItemsToken (scanner) or the element
// index (walker) for array elements.
type Path []string

// String renders the path in dotted form, e.g. "credentials.api_token",
// "tunnel_hosts.[].password" (scanner) or "tunnel_hosts.1.password"
// (walker).
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Child returns a new path extended by one segment. The receiver is not
// modified and the result does not alias its backing array.
func (p Path) Child(segment string) Path {
	child := make(Path, 0, len(p)+1)
	child = append(child, p...)
	return append(child, segment)
}

// IsSecret reports whether a schema node carries the sensitive annotation.
func IsSecret(node map[string]any) bool {
	flag, ok := node[SecretAnnotation].(bool)
	return ok && flag
}

// Scan walks a specification and returns the sorted set of property paths
// flagged sensitive. It has no side effects and fails with SchemaError when
// the specification is structurally invalid.
func Scan(spec map[string]any) ([]Path, error) {
	seen := make(map[string]Path)
	if err := scan(spec, nil, seen); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	paths := make([]Path, 0, len(keys))
	for _, key := range keys {
		paths = append(paths, seen[key])
	}
	return paths, nil
}

// HasSecrets reports whether any path under the given schema node is
// flagged sensitive. The walker uses this to decide whether a document/
// schema mismatch is fatal or can be tolerated as plain data.
func HasSecrets(node map[string]any) bool {
	seen := make(map[string]Path)
	if err := scan(node, nil, seen); err != nil {
		// A structurally invalid subtree may still hide annotations;
		// treat it as potentially sensitive so traversal surfaces the
		// real error.
		return true
	}
	return len(seen) > 0
}

func scan(node map[string]any, path Path, seen map[string]Path) error {
	if IsSecret(node) {
		seen[path.String()] = path
	}

	if props, ok := node["properties"]; ok {
		propsMap, ok := props.(map[string]any)
		if !ok {
			return cserrors.SchemaError{
				Path:    path.String(),
				Message: "'properties' is not an object",
			}
		}
		for name, child := range propsMap {
			childNode, ok := child.(map[string]any)
			if !ok {
				return cserrors.SchemaError{
					Path:    path.Child(name).String(),
					Message: "property schema is not an object",
				}
			}
			if err := scan(childNode, path.Child(name), seen); err != nil {
				return err
			}
		}
	}

	if items, ok := node["items"]; ok {
		itemsNode, ok := items.(map[string]any)
		if !ok {
			return cserrors.SchemaError{
				Path:    path.Child(ItemsToken).String(),
				Message: "'items' is not an object",
			}
		}
		if err := scan(itemsNode, path.Child(ItemsToken), seen); err != nil {
			return err
		}
	}

	for _, keyword := range []string{"oneOf", "anyOf", "allOf"} {
		branches, ok := node[keyword]
		if !ok {
			continue
		}
		branchList, ok := branches.([]any)
		if !ok {
			return cserrors.SchemaError{
				Path:    path.String(),
				Message: fmt.Sprintf("'%s' is not an array", keyword),
			}
		}
		for i, branch := range branchList {
			branchNode, ok := branch.(map[string]any)
			if !ok {
				return cserrors.SchemaError{
					Path:    path.String(),
					Message: fmt.Sprintf("'%s' branch %d is not an object", keyword, i),
				}
			}
			if err := scan(branchNode, path, seen); err != nil {
				return err
			}
		}
	}

	if ref, ok := node["$ref"]; ok {
		// Unresolvable references cannot be scanned for annotations, and
		// silently skipping one could leak a secret as plaintext.
		return cserrors.SchemaError{
			Path:    path.String(),
			Message: fmt.Sprintf("unresolvable $ref %v: specifications must be self-contained", ref),
		}
	}

	return nil
}
