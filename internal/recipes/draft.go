package recipes

import (
	"fmt"
	"strings"
)

// Draft is the in-progress form of a recipe. ID is empty until the draft is
// bound to a stored recipe, either by Load or by a successful create.
type Draft struct {
	ID           string
	Title        string
	Instructions string
	Ingredients  []string
}

func (d Draft) clone() Draft {
	d.Ingredients = append([]string(nil), d.Ingredients...)
	return d
}

// Form field names, as used by Touched and Violation.
const (
	FieldTitle        = "strMeal"
	FieldInstructions = "strInstructions"
)

// IngredientField names the ingredient slot at index i.
func IngredientField(i int) string {
	return fmt.Sprintf("ingredients[%d]", i)
}

// Violation is one failed form rule.
type Violation struct {
	Field   string
	Message string
}

// Violations is the result of validating a draft; empty means valid.
type Violations []Violation

func (v Violations) Error() string {
	msgs := make([]string, len(v))
	for i, x := range v {
		msgs[i] = x.Message
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether field has a violation.
func (v Violations) Has(field string) bool {
	for _, x := range v {
		if x.Field == field {
			return true
		}
	}
	return false
}

// Validate checks that title and instructions are non-empty and that every
// ingredient slot holds an id. An empty ingredient list is valid.
func Validate(d Draft) Violations {
	var out Violations
	if d.Title == "" {
		out = append(out, Violation{FieldTitle, "title is required"})
	}
	if d.Instructions == "" {
		out = append(out, Violation{FieldInstructions, "instructions are required"})
	}
	for i, id := range d.Ingredients {
		if id == "" {
			out = append(out, Violation{IngredientField(i), fmt.Sprintf("ingredient %d is required", i+1)})
		}
	}
	return out
}
