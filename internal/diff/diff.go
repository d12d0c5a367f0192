// Package diff implements structural, type-aware comparison of two
// plan-like documents. Documents are compared as decoded JSON
// (map[string]any); array elements carrying an "id" field are matched
// by identity, everything else field by field.
package diff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// ChangeType classifies one change record.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// Change is one typed difference between two documents.
type Change struct {
	Type        ChangeType `json:"type"`
	Section     string     `json:"section"`
	Path        string     `json:"path"`
	Field       string     `json:"field,omitempty"`
	OldValue    any        `json:"old_value,omitempty"`
	NewValue    any        `json:"new_value,omitempty"`
	Description string     `json:"description"`
}

// Stats aggregates a comparison.
type Stats struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
	Total    int `json:"total"`
}

// Result is the full outcome of comparing two documents.
type Result struct {
	HasChanges bool     `json:"has_changes"`
	Changes    []Change `json:"changes"`
	Stats      Stats    `json:"stats"`
	Summary    string   `json:"summary"`
}

// Compare diffs two documents. Either side may be nil: nil-vs-nil has
// no changes; nil-vs-document is an initial creation and
// document-vs-nil a deletion, both reported as single whole-document
// changes rather than diffed structurally.
func Compare(oldDoc, newDoc any) (Result, error) {
	oldMap, err := toMap(oldDoc)
	if err != nil {
		return Result{}, fmt.Errorf("decode old document: %w", err)
	}
	newMap, err := toMap(newDoc)
	if err != nil {
		return Result{}, fmt.Errorf("decode new document: %w", err)
	}

	switch {
	case oldMap == nil && newMap == nil:
		return Result{}, nil
	case oldMap == nil:
		r := Result{
			HasChanges: true,
			Changes: []Change{{
				Type:        ChangeAdded,
				Section:     "document",
				Path:        "document",
				Description: "initial creation",
			}},
			Stats: Stats{Added: 1, Total: 1},
		}
		r.Summary = Summarize(r.Changes, DefaultSummaryCap)
		return r, nil
	case newMap == nil:
		r := Result{
			HasChanges: true,
			Changes: []Change{{
				Type:        ChangeRemoved,
				Section:     "document",
				Path:        "document",
				Description: "deletion",
			}},
			Stats: Stats{Removed: 1, Total: 1},
		}
		r.Summary = Summarize(r.Changes, DefaultSummaryCap)
		return r, nil
	}

	changes := compareObjects("", "", oldMap, newMap)
	stats := tally(changes)
	return Result{
		HasChanges: stats.Total > 0,
		Changes:    changes,
		Stats:      stats,
		Summary:    Summarize(changes, DefaultSummaryCap),
	}, nil
}

// toMap round-trips a document through JSON into map form. Untyped nil
// and typed nil pointers both normalize to nil.
func toMap(doc any) (map[string]any, error) {
	if doc == nil {
		return nil, nil
	}
	v := reflect.ValueOf(doc)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return nil, nil
	}
	if m, ok := doc.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func compareObjects(section, path string, oldObj, newObj map[string]any) []Change {
	var changes []Change
	keys := unionKeys(oldObj, newObj)
	for _, key := range keys {
		sec := section
		if sec == "" {
			sec = key
		}
		childPath := key
		if path != "" {
			childPath = path + "." + key
		}
		oldVal, inOld := oldObj[key]
		newVal, inNew := newObj[key]
		switch {
		case !inOld:
			if newVal == nil {
				continue
			}
			changes = append(changes, Change{
				Type:        ChangeAdded,
				Section:     sec,
				Path:        childPath,
				NewValue:    newVal,
				Description: fmt.Sprintf("%s added", childPath),
			})
		case !inNew:
			changes = append(changes, Change{
				Type:        ChangeRemoved,
				Section:     sec,
				Path:        childPath,
				OldValue:    oldVal,
				Description: fmt.Sprintf("%s removed", childPath),
			})
		default:
			changes = append(changes, compareValues(sec, childPath, oldVal, newVal)...)
		}
	}
	return changes
}

func compareValues(section, path string, oldVal, newVal any) []Change {
	oldArr, oldIsArr := oldVal.([]any)
	newArr, newIsArr := newVal.([]any)
	if oldIsArr && newIsArr {
		if isIdentityKeyed(oldArr) || isIdentityKeyed(newArr) {
			return compareIdentityArrays(section, path, oldArr, newArr)
		}
		if !DeepEqual(oldVal, newVal) {
			return []Change{modified(section, path, "", oldVal, newVal)}
		}
		return nil
	}

	oldObj, oldIsObj := oldVal.(map[string]any)
	newObj, newIsObj := newVal.(map[string]any)
	if oldIsObj && newIsObj {
		var changes []Change
		for _, key := range unionKeys(oldObj, newObj) {
			ov, inOld := oldObj[key]
			nv, inNew := newObj[key]
			childPath := path + "." + key
			switch {
			case !inOld:
				changes = append(changes, Change{
					Type:        ChangeAdded,
					Section:     section,
					Path:        childPath,
					Field:       key,
					NewValue:    nv,
					Description: fmt.Sprintf("%s added", childPath),
				})
			case !inNew:
				changes = append(changes, Change{
					Type:        ChangeRemoved,
					Section:     section,
					Path:        childPath,
					Field:       key,
					OldValue:    ov,
					Description: fmt.Sprintf("%s removed", childPath),
				})
			case !DeepEqual(ov, nv):
				changes = append(changes, modified(section, childPath, key, ov, nv))
			}
		}
		return changes
	}

	if !DeepEqual(oldVal, newVal) {
		return []Change{modified(section, path, "", oldVal, newVal)}
	}
	return nil
}

// compareIdentityArrays does the three-way classification over arrays
// whose elements carry an "id": only-in-new is added, only-in-old is
// removed, both-present-but-unequal is modified.
func compareIdentityArrays(section, path string, oldArr, newArr []any) []Change {
	oldByID, oldOrder := indexByID(oldArr)
	newByID, newOrder := indexByID(newArr)

	var changes []Change
	for _, id := range oldOrder {
		oldItem := oldByID[id]
		newItem, ok := newByID[id]
		if !ok {
			changes = append(changes, Change{
				Type:        ChangeRemoved,
				Section:     section,
				Path:        path + "[" + id + "]",
				OldValue:    oldItem,
				Description: fmt.Sprintf("%s item %s removed", path, id),
			})
			continue
		}
		if !DeepEqual(oldItem, newItem) {
			changes = append(changes, Change{
				Type:        ChangeModified,
				Section:     section,
				Path:        path + "[" + id + "]",
				OldValue:    oldItem,
				NewValue:    newItem,
				Description: fmt.Sprintf("%s item %s modified", path, id),
			})
		}
	}
	for _, id := range newOrder {
		if _, ok := oldByID[id]; ok {
			continue
		}
		changes = append(changes, Change{
			Type:        ChangeAdded,
			Section:     section,
			Path:        path + "[" + id + "]",
			NewValue:    newByID[id],
			Description: fmt.Sprintf("%s item %s added", path, id),
		})
	}
	return changes
}

func indexByID(arr []any) (map[string]any, []string) {
	byID := make(map[string]any, len(arr))
	var order []string
	for i, item := range arr {
		obj, ok := item.(map[string]any)
		var id string
		if ok {
			id, _ = obj["id"].(string)
		}
		if id == "" {
			id = fmt.Sprintf("#%d", i)
		}
		if _, dup := byID[id]; !dup {
			order = append(order, id)
		}
		byID[id] = item
	}
	return byID, order
}

func isIdentityKeyed(arr []any) bool {
	for _, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			return false
		}
		if id, _ := obj["id"].(string); id == "" {
			return false
		}
	}
	return len(arr) > 0
}

// DeepEqual recurses arrays and objects; a type mismatch is an
// inequality, never a panic.
func DeepEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bval, ok := bv[k]
			if !ok || !DeepEqual(v, bval) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

func modified(section, path, field string, oldVal, newVal any) Change {
	return Change{
		Type:        ChangeModified,
		Section:     section,
		Path:        path,
		Field:       field,
		OldValue:    oldVal,
		NewValue:    newVal,
		Description: fmt.Sprintf("%s changed", path),
	}
}

func tally(changes []Change) Stats {
	var s Stats
	for _, c := range changes {
		switch c.Type {
		case ChangeAdded:
			s.Added++
		case ChangeRemoved:
			s.Removed++
		case ChangeModified:
			s.Modified++
		}
	}
	s.Total = s.Added + s.Removed + s.Modified
	return s
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var keys []string
	for k := range a {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
