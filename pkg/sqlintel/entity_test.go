package sqlintel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityRecognizer_Canonicalization(t *testing.T) {
	r := NewEntityRecognizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"subdivision", "California", "SUBDIVISION:US-CA"},
		{"currency", "EUR amount", "CURRENCY:EUR"},
		{"timezone", "America/New_York", "TIMEZONE:America/New_York"},
		{"country", "USA", "COUNTRY:US"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tags := r.Recognize(tc.in)
			assert.Contains(t, tags, tc.want)
		})
	}
}

func TestEntityRecognizer_PersonOrgTags(t *testing.T) {
	r := NewEntityRecognizer()
	assert.Contains(t, r.Recognize("first_name"), string(EntityPerson))
	assert.Contains(t, r.Recognize("company_name"), string(EntityOrg))
}

func TestEntityRecognizer_EmptyInput(t *testing.T) {
	r := NewEntityRecognizer()
	assert.Nil(t, r.Recognize(""))
}

func TestEntityRecognizer_AnnotateTable(t *testing.T) {
	r := NewEntityRecognizer()
	table := &TableProfile{
		Name:        "customers",
		ColumnOrder: []string{"id", "first_name", "country_code"},
		Columns: map[string]*ColumnProfile{
			"id":           {Name: "id"},
			"first_name":   {Name: "first_name"},
			"country_code": {Name: "country_code"},
		},
	}
	r.AnnotateTable(table)
	require.NotEmpty(t, table.Entities)
	assert.Contains(t, table.Entities, string(EntityPerson))
	assert.Contains(t, table.Columns["first_name"].Entities, string(EntityPerson))
}
