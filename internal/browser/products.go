// internal/browser/products.go
package browser

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/tidwall/gjson"
)

const productsSubject = "product collection"

// ValidateProductCollection extracts the product list from a catalog body and
// checks it holds at least min items.
//
// A top-level array is used as is. For an object, the first array-valued
// top-level field in document order is used. Raw JSON ([]byte, json.RawMessage
// or string) keeps document order; an already decoded map has none, so its keys
// are scanned in sorted order.
func ValidateProductCollection(body any, min int) ([]any, error) {
	items, err := extractProducts(body)
	if err != nil {
		return nil, err
	}
	if len(items) < min {
		return items, &ValidationFailure{
			Subject: productsSubject,
			Reason:  fmt.Sprintf("found %d products, required at least %d", len(items), min),
		}
	}
	return items, nil
}

func extractProducts(body any) ([]any, error) {
	switch b := body.(type) {
	case []byte:
		return extractFromRaw(b)
	case json.RawMessage:
		return extractFromRaw(b)
	case string:
		return extractFromRaw([]byte(b))
	case []any:
		return b, nil
	case map[string]any:
		for _, key := range slices.Sorted(maps.Keys(b)) {
			if arr, ok := b[key].([]any); ok {
				return arr, nil
			}
		}
		return nil, &ValidationFailure{Subject: productsSubject, Reason: "object has no array-valued field"}
	case nil:
		return nil, &ValidationFailure{Subject: productsSubject, Reason: "body is empty"}
	default:
		return nil, &ValidationFailure{Subject: productsSubject, Reason: fmt.Sprintf("unsupported body type %T", body)}
	}
}

func extractFromRaw(raw []byte) ([]any, error) {
	if !gjson.ValidBytes(raw) {
		return nil, &ValidationFailure{Subject: productsSubject, Reason: "body is not valid JSON"}
	}

	root := gjson.ParseBytes(raw)
	var list gjson.Result
	switch {
	case root.IsArray():
		list = root
	case root.IsObject():
		root.ForEach(func(_, value gjson.Result) bool {
			if value.IsArray() {
				list = value
				return false
			}
			return true
		})
		if !list.Exists() {
			return nil, &ValidationFailure{Subject: productsSubject, Reason: "object has no array-valued field"}
		}
	default:
		return nil, &ValidationFailure{Subject: productsSubject, Reason: "body is neither an array nor an object"}
	}

	elems := list.Array()
	items := make([]any, 0, len(elems))
	for _, e := range elems {
		items = append(items, e.Value())
	}
	return items, nil
}
