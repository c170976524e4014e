package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agencydesk/mdconsole/pkg/model"
)

func sampleEntities() []EntitySpec {
	return []EntitySpec{
		{Type: "parent", Label: "Parent", Endpoint: "/parents", DisplayField: "name"},
		{Type: "child", Label: "Child", Endpoint: "/children", DisplayField: "name"},
		{Type: "leaf", Label: "Leaf", Endpoint: "/leaves", DisplayField: "name"},
	}
}

func TestNewIndexesRelations(t *testing.T) {
	h, err := New("sample", "Sample", sampleEntities(), []Relation{
		{Child: "child", ForeignKey: "parent_id", Parent: "parent"},
		{Child: "leaf", ForeignKey: "child_id", Parent: "child", ReportOnly: true},
	})
	require.NoError(t, err)

	require.Len(t, h.ChildRelations("parent"), 1)
	require.Equal(t, model.EntityType("child"), h.ChildRelations("parent")[0].Child)
	require.Len(t, h.ParentRelations("leaf"), 1)
	require.True(t, h.ParentRelations("leaf")[0].ReportOnly)
	require.Empty(t, h.ChildRelations("leaf"))

	spec, ok := h.Entity("child")
	require.True(t, ok)
	require.Equal(t, "/children", spec.Endpoint)
	require.Equal(t, []model.EntityType{"parent", "child", "leaf"}, h.Types())
}

func TestNewRejectsUndeclaredType(t *testing.T) {
	_, err := New("sample", "Sample", sampleEntities(), []Relation{
		{Child: "ghost", ForeignKey: "parent_id", Parent: "parent"},
	})
	require.Error(t, err)
}

func TestNewRejectsCycle(t *testing.T) {
	_, err := New("sample", "Sample", sampleEntities(), []Relation{
		{Child: "child", ForeignKey: "parent_id", Parent: "parent"},
		{Child: "parent", ForeignKey: "child_id", Parent: "child"},
	})
	require.ErrorContains(t, err, "cycle")
}

func TestNewRejectsDuplicateEntity(t *testing.T) {
	entities := append(sampleEntities(), EntitySpec{Type: "leaf", Label: "Leaf", Endpoint: "/x", DisplayField: "name"})
	_, err := New("sample", "Sample", entities, nil)
	require.Error(t, err)
}
