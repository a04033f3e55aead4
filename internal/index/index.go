package index

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"arkoon-rule-exporter/internal/model"
	"arkoon-rule-exporter/internal/parser"
)

var ErrGroupCycle = errors.New("circular group membership")

// Index maps object GUIDs to display names. It is built once and only read
// afterwards.
type Index struct {
	names  map[string]string
	groups map[string][]string
}

func New() *Index {
	return &Index{
		names:  make(map[string]string),
		groups: make(map[string][]string),
	}
}

// Build registers every object of every category of doc. A GUID seen twice
// keeps the last name.
func Build(doc *parser.Document) *Index {
	idx := New()
	for _, cat := range doc.Categories() {
		for _, obj := range cat.Objects {
			if !obj.HasGuid {
				slog.Debug("Skipping object without Guid", "category", cat.Name, "name", obj.Name)
				continue
			}
			if prev, ok := idx.names[obj.Guid]; ok && prev != obj.Name {
				slog.Debug("Duplicate object Guid", "guid", obj.Guid, "previous", prev, "name", obj.Name)
			}
			idx.Add(obj.Guid, obj.Name)
			if cat.Group {
				idx.AddGroup(obj.Guid, obj.Members)
			}
		}
	}
	return idx
}

func (idx *Index) Add(guid, name string) {
	idx.names[guid] = name
}

// AddGroup records the member GUIDs of a group.
func (idx *Index) AddGroup(guid string, members []string) {
	idx.groups[guid] = append([]string(nil), members...)
}

func (idx *Index) Len() int {
	return len(idx.names)
}

func (idx *Index) Lookup(guid string) (string, bool) {
	name, ok := idx.names[guid]
	return name, ok
}

// Name resolves guid, falling back to model.UnknownObject.
func (idx *Index) Name(guid string) string {
	if name, ok := idx.names[guid]; ok {
		return name
	}
	return model.UnknownObject
}

func (idx *Index) IsGroup(guid string) bool {
	_, ok := idx.groups[guid]
	return ok
}

// Expand flattens a group into the GUIDs of its non-group members, depth
// first and in member order. Each leaf appears once. A GUID that is not a
// group expands to itself.
func (idx *Index) Expand(guid string) ([]string, error) {
	var leaves []string
	seen := make(map[string]bool)
	if err := idx.expand(guid, make(map[string]bool), nil, seen, &leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

func (idx *Index) expand(guid string, visiting map[string]bool, path []string, seen map[string]bool, leaves *[]string) error {
	members, ok := idx.groups[guid]
	if !ok {
		if !seen[guid] {
			seen[guid] = true
			*leaves = append(*leaves, guid)
		}
		return nil
	}

	path = append(path, idx.Name(guid))
	if visiting[guid] {
		return fmt.Errorf("%w: %s", ErrGroupCycle, strings.Join(path, " -> "))
	}
	visiting[guid] = true
	defer delete(visiting, guid)

	for _, member := range members {
		if err := idx.expand(member, visiting, path, seen, leaves); err != nil {
			return err
		}
	}
	return nil
}
