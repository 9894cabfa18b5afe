package imagepipe

import (
	"fmt"
	"strings"

	"batchgen/internal/domain"
)

// promptVariations nudge the generation service away from a previous
// near-duplicate without changing the dish itself.
var promptVariations = []string{
	"overhead angle, rustic wooden table",
	"45-degree angle, dark slate background",
	"close-up, bright natural daylight",
}

// BuildPrompt renders the generation prompt from the recipe's descriptive
// fields.
func BuildPrompt(item domain.PersistedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Professional food photograph of %s", item.Title)
	if item.Cuisine != "" {
		fmt.Fprintf(&b, ", %s cuisine", item.Cuisine)
	}
	if item.Description != "" {
		fmt.Fprintf(&b, ". %s", item.Description)
	}
	if len(item.Ingredients) > 0 {
		names := make([]string, 0, 3)
		for _, ing := range item.Ingredients {
			names = append(names, ing.Name)
			if len(names) == 3 {
				break
			}
		}
		fmt.Fprintf(&b, " Featuring %s.", strings.Join(names, ", "))
	}
	b.WriteString(" Plated, appetizing, no text.")
	return b.String()
}

// WithVariation returns the prompt for the given retry attempt. Attempt zero
// is the base prompt.
func WithVariation(prompt string, attempt int) string {
	if attempt <= 0 {
		return prompt
	}
	variation := promptVariations[(attempt-1)%len(promptVariations)]
	return prompt + " Style: " + variation
}
