package facet

import (
	"testing"

	"github.com/Ashfaaq98/secwatch-console/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alertDescriptors() Set {
	return DefaultViews()[ViewAlerts].Facets
}

func TestDeriveFirstSeenOrderSkipsEmpty(t *testing.T) {
	c := record.Collection{
		{"rule_name": "Imp Travel", "country": "US", "is_vip": true},
		{"rule_name": "New Device", "country": ""},
		{"rule_name": "Imp Travel", "country": nil, "is_vip": false},
		{"country": "IT"},
	}

	d := Derive(c, alertDescriptors())

	assert.Equal(t, []string{"Imp Travel", "New Device"}, d["alertType"].Values())
	assert.Equal(t, []string{"US", "IT"}, d["country"].Values())
	assert.Equal(t, []string{"true", "false"}, d["vip"].Values())
	assert.Equal(t, 0, d["severity"].Len())

	_, hasKeyword := d["search"]
	assert.False(t, hasKeyword, "keyword facets have no domain")
	_, hasDate := d["dateRange"]
	assert.False(t, hasDate)
}

func TestDeriveIsDeterministic(t *testing.T) {
	c := record.Collection{
		{"rule_name": "B"}, {"rule_name": "A"}, {"rule_name": "B"},
	}
	first := Derive(c, alertDescriptors())
	second := Derive(c, alertDescriptors())
	assert.Equal(t, first["alertType"].Values(), second["alertType"].Values())
	assert.Equal(t, []string{"B", "A"}, first["alertType"].Values())
}

func TestDomainValuesIsACopy(t *testing.T) {
	d := NewDomain("a", "b", "a", "")
	v := d.Values()
	v[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, d.Values())
	assert.True(t, d.Contains("b"))
	assert.False(t, d.Contains(""))
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"keyword":     Keyword,
		"Categorical": Categorical,
		"bool":        Boolean,
		"date_range":  DateRange,
		"dateRange":   DateRange,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKind("histogram")
	assert.Error(t, err)

	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("boolean")))
	assert.Equal(t, Boolean, k)
	b, _ := DateRange.MarshalText()
	assert.Equal(t, "dateRange", string(b))
}

func TestSetValidate(t *testing.T) {
	for _, v := range DefaultViews() {
		assert.NoError(t, v.Facets.Validate(), v.Name)
	}

	bad := Set{
		{ID: "", Kind: Keyword},
		{ID: "x", Kind: Categorical},
		{ID: "y", Kind: Keyword},
		{ID: "y", Kind: Keyword},
		{ID: "z", Kind: Boolean, FieldPath: SearchAll},
	}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty id")
	assert.Contains(t, err.Error(), "requires a field")
	assert.Contains(t, err.Error(), "duplicate id")
	assert.Contains(t, err.Error(), "only keyword")
}

func TestLookupView(t *testing.T) {
	views := DefaultViews()
	v, err := LookupView(views, ViewUsers)
	require.NoError(t, err)
	assert.Equal(t, "api/users/", v.Endpoint)

	_, err = LookupView(views, "charts")
	assert.Error(t, err)
}
