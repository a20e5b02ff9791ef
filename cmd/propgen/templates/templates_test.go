package templates_test

import (
	"go/format"
	"testing"

	"github.com/delaneyj/bindparty/cmd/propgen/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFields(t *testing.T) {
	fields, err := templates.ParseFields("Name:string, Tags:[]string,")
	require.NoError(t, err)
	assert.Equal(t, []templates.Field{
		{Name: "Name", Type: "string"},
		{Name: "Tags", Type: "[]string"},
	}, fields)

	for _, bad := range []string{"", "Name", "name:string", "Name:"} {
		_, err := templates.ParseFields(bad)
		assert.Error(t, err, bad)
	}
}

func TestField(t *testing.T) {
	assert.Equal(t, "firstName", templates.Field{Name: "FirstName"}.Storage())
	assert.True(t, templates.Field{Type: "*Address"}.Comparable())
	assert.False(t, templates.Field{Type: "map[string]int"}.Comparable())
}

func TestProperties(t *testing.T) {
	spec := templates.Spec{
		Package: "model",
		Type:    "Person",
		Fields: []templates.Field{
			{Name: "Name", Type: "string"},
			{Name: "Tags", Type: "[]string"},
		},
		Steps: true,
	}
	src, err := format.Source([]byte(templates.Properties(spec)))
	require.NoError(t, err)
	out := string(src)

	assert.Contains(t, out, "package model")
	assert.Contains(t, out, `PersonNameProperty = "Name"`)
	assert.Contains(t, out, "func (p *Person) Name() string {")
	assert.Contains(t, out, "notify.RaiseAndSetIfChanged(p, &p.name, v, PersonNameProperty)")
	assert.Contains(t, out, "notify.SetIfChanged(p, &p.tags, v, PersonTagsProperty, nil)")
	assert.Contains(t, out, "PersonTagsStep = chain.Member(PersonTagsProperty")
	assert.Contains(t, out, `"github.com/delaneyj/bindparty/chain"`)

	spec.Steps = false
	plain := templates.Properties(spec)
	assert.NotContains(t, plain, "chain")
	_, err = format.Source([]byte(plain))
	assert.NoError(t, err)
}
