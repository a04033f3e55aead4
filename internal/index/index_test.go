package index

import (
	"errors"
	"reflect"
	"testing"

	"arkoon-rule-exporter/internal/model"
	"arkoon-rule-exporter/internal/parser"
)

func TestBuildRegistersEveryCategory(t *testing.T) {
	doc := &parser.Document{
		Hosts:         []parser.Object{{Guid: "h1", HasGuid: true, Name: "WebServer"}},
		Networks:      []parser.Object{{Guid: "n1", HasGuid: true, Name: "LAN"}},
		Appliances:    []parser.Object{{Guid: "f1", HasGuid: true, Name: "fw-node"}},
		Clusters:      []parser.Object{{Guid: "c1", HasGuid: true, Name: "ha"}},
		SystemTCP:     []parser.Object{{Guid: "st", HasGuid: true, Name: "http"}},
		SystemUDP:     []parser.Object{{Guid: "su", HasGuid: true, Name: "dns"}},
		SystemICMP:    []parser.Object{{Guid: "si", HasGuid: true, Name: "ping"}},
		SystemOther:   []parser.Object{{Guid: "so", HasGuid: true, Name: "gre"}},
		UserTCP:       []parser.Object{{Guid: "ut", HasGuid: true, Name: "app-8080"}},
		UserUDP:       []parser.Object{{Guid: "uu", HasGuid: true, Name: "syslog-alt"}},
		UserICMP:      []parser.Object{{Guid: "ui", HasGuid: true, Name: "echo-reply"}},
		UserOther:     []parser.Object{{Guid: "uo", HasGuid: true, Name: "esp"}},
		ServiceGroups: []parser.Object{{Guid: "gs", HasGuid: true, Name: "web", Members: []string{"st", "ut"}}},
		NetworkGroups: []parser.Object{{Guid: "gn", HasGuid: true, Name: "servers", Members: []string{"h1"}}},
	}

	idx := Build(doc)
	if idx.Len() != 14 {
		t.Fatalf("expected 14 objects, got %d", idx.Len())
	}
	if name, ok := idx.Lookup("uo"); !ok || name != "esp" {
		t.Errorf("expected esp, got %q (%v)", name, ok)
	}
	if !idx.IsGroup("gs") || !idx.IsGroup("gn") {
		t.Errorf("expected group categories to be registered as groups")
	}
	if idx.IsGroup("h1") {
		t.Errorf("host must not be a group")
	}
}

func TestBuildSkipsObjectsWithoutGuidAndOverwritesDuplicates(t *testing.T) {
	doc := &parser.Document{
		Hosts: []parser.Object{
			{Guid: "h1", HasGuid: true, Name: "first"},
			{Name: "orphan"},
		},
		Networks: []parser.Object{{Guid: "h1", HasGuid: true, Name: "second"}},
	}
	idx := Build(doc)
	if idx.Len() != 1 {
		t.Fatalf("expected 1 object, got %d", idx.Len())
	}
	if got := idx.Name("h1"); got != "second" {
		t.Errorf("expected later duplicate to win, got %q", got)
	}
}

func TestNameFallsBackToUnknownObject(t *testing.T) {
	idx := New()
	idx.Add("g1", "WebServer")

	if got := idx.Name("g1"); got != "WebServer" {
		t.Errorf("expected WebServer, got %q", got)
	}
	if got := idx.Name("missing"); got != model.UnknownObject {
		t.Errorf("expected %q, got %q", model.UnknownObject, got)
	}
	if _, ok := idx.Lookup("missing"); ok {
		t.Errorf("expected lookup of missing guid to report false")
	}
}

func TestExpandFlattensNestedGroups(t *testing.T) {
	idx := New()
	idx.AddGroup("outer", []string{"a", "inner", "b"})
	idx.AddGroup("inner", []string{"c", "a"})

	leaves, err := idx.Expand("outer")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []string{"a", "c", "b"}
	if !reflect.DeepEqual(leaves, want) {
		t.Errorf("expected %v, got %v", want, leaves)
	}

	leaves, err = idx.Expand("plain")
	if err != nil || !reflect.DeepEqual(leaves, []string{"plain"}) {
		t.Errorf("expected non-group to expand to itself, got %v (%v)", leaves, err)
	}
}

func TestExpandAllowsSharedSubgroups(t *testing.T) {
	idx := New()
	idx.AddGroup("top", []string{"left", "right"})
	idx.AddGroup("left", []string{"shared"})
	idx.AddGroup("right", []string{"shared"})
	idx.AddGroup("shared", []string{"x"})

	leaves, err := idx.Expand("top")
	if err != nil {
		t.Fatalf("a diamond is not a cycle, got %v", err)
	}
	if !reflect.DeepEqual(leaves, []string{"x"}) {
		t.Errorf("expected [x], got %v", leaves)
	}
}

func TestExpandDetectsCycles(t *testing.T) {
	idx := New()
	idx.Add("A", "groupA")
	idx.Add("B", "groupB")
	idx.AddGroup("A", []string{"B"})
	idx.AddGroup("B", []string{"A"})

	_, err := idx.Expand("A")
	if !errors.Is(err, ErrGroupCycle) {
		t.Fatalf("expected circular dependency error, got %v", err)
	}

	idx.AddGroup("self", []string{"self"})
	if _, err := idx.Expand("self"); !errors.Is(err, ErrGroupCycle) {
		t.Fatalf("expected self reference to be a cycle, got %v", err)
	}
}
