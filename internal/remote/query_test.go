package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryMatches(t *testing.T) {
	row := Row{"idMeal": "m1", "strMeal": "Soup", "id": 3.0}

	tests := []struct {
		name string
		q    Query
		want bool
	}{
		{"empty query", Query{}, true},
		{"filter match", Query{Filter: map[string]any{"idMeal": "m1"}}, true},
		{"filter mismatch", Query{Filter: map[string]any{"idMeal": "m2"}}, false},
		{"conjunctive filter", Query{Filter: map[string]any{"idMeal": "m1", "strMeal": "Stew"}}, false},
		{"numeric filter", Query{Filter: map[string]any{"id": 3}}, true},
		{"id set hit", Query{IDField: "idMeal", IDs: []string{"m0", "m1"}}, true},
		{"id set miss", Query{IDField: "idMeal", IDs: []string{"m0"}}, false},
		{"empty id set", Query{IDField: "idMeal", IDs: []string{}}, false},
		{"default id field", Query{IDs: []string{"3"}}, true},
		{"missing column", Query{Filter: map[string]any{"nope": "x"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.Matches(row))
		})
	}
}

func TestEmbedJoin(t *testing.T) {
	parent := Row{"id": 1.0, "meal": "m1"}
	meals := []Row{{"idMeal": "m0"}, {"idMeal": "m1", "strMeal": "Soup"}}
	events := []Row{{"shared_recipe": 1.0, "step": 1.0}, {"shared_recipe": 2.0, "step": 1.0}, {"shared_recipe": int64(1), "step": 2.0}}

	Embed{Table: "meals", LocalField: "meal", ForeignField: "idMeal"}.Join(parent, meals)
	Embed{Table: "shared_recipes_events", LocalField: "id", ForeignField: "shared_recipe", Many: true}.Join(parent, events)

	meal, ok := parent["meals"].(map[string]any)
	if assert.True(t, ok) {
		assert.Equal(t, "Soup", meal["strMeal"])
	}
	assert.Len(t, parent["shared_recipes_events"], 2)

	orphan := Row{"id": 9.0, "meal": "missing"}
	Embed{Table: "meals", LocalField: "meal", ForeignField: "idMeal"}.Join(orphan, meals)
	assert.Nil(t, orphan["meals"])
}
