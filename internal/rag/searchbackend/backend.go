// Package searchbackend defines the SearchBackend port (spec §4.2, §6) plus
// the filter-tree translation shared by every concrete adapter.
package searchbackend

import (
	"context"

	"github.com/yuewanzhe/ragpipeline/internal/rag/document"
)

// Mode selects the retrieval operator.
type Mode string

const (
	Hybrid   Mode = "hybrid"
	NearText Mode = "near_text"
)

// NearTextDistanceCap is the default maximum vector distance accepted by the
// near_text operator (spec §4.2).
const NearTextDistanceCap = 0.7

// Query describes one backend call: a single query variant against a single
// collection/text-field, at a given mode.
type Query struct {
	Mode            Mode
	Collection      string
	TextField       string
	QueryText       string
	TopK            int
	Filters         map[string]any
	Alpha           float64 // only meaningful for Hybrid
	DistanceCap     float64 // only meaningful for NearText; 0 means "use default"
	BM25Properties  []string
	QueryEmbedding  []float64 // pre-computed embedding, used by hybrid/near_text vector side
}

// SearchBackend is the port every concrete vector-store client implements.
type SearchBackend interface {
	// Query executes one retrieval call. Implementations must return
	// *ragerr.Error with Code SchemaError when q.TextField does not exist on
	// the collection, and Code BackendUnavailable on any other transport
	// failure. The coordinator does not retry: any error from Query fails
	// the retrieve stage.
	Query(ctx context.Context, q Query) ([]*document.Document, error)
}

// Filter is a translated filter-tree node, built from a flat
// map[string]any per the rules in §4.2:
//   - string   -> TextContains (case-insensitive)
//   - bool     -> Equal (boolean)
//   - numeric  -> Equal (numeric)
//   - list     -> Or of the above per item
//   - multiple top-level keys -> And
type Filter struct {
	Op       string // "text_contains", "equal", "or", "and"
	Field    string
	Value    any
	Children []Filter
}

// TranslateFilters converts a flat {field: value} mapping into a Filter tree.
// A nil or empty map returns a nil Filter (no filtering).
func TranslateFilters(flat map[string]any) *Filter {
	if len(flat) == 0 {
		return nil
	}
	var clauses []Filter
	for field, value := range flat {
		clauses = append(clauses, translateOne(field, value))
	}
	if len(clauses) == 1 {
		c := clauses[0]
		return &c
	}
	return &Filter{Op: "and", Children: clauses}
}

func translateOne(field string, value any) Filter {
	if list, ok := value.([]any); ok {
		var children []Filter
		for _, v := range list {
			children = append(children, leafFilter(field, v))
		}
		return Filter{Op: "or", Field: field, Children: children}
	}
	return leafFilter(field, value)
}

func leafFilter(field string, value any) Filter {
	switch value.(type) {
	case string:
		return Filter{Op: "text_contains", Field: field, Value: value}
	case bool:
		return Filter{Op: "equal", Field: field, Value: value}
	default:
		return Filter{Op: "equal", Field: field, Value: value}
	}
}

// FallbackTextFields is an ordered list of alternative text-field names for
// a SchemaError (§4.2). The coordinator does not consult it; a SchemaError
// fails the retrieve stage.
var FallbackTextFields = []string{"text", "page_content", "body", "chunk"}
