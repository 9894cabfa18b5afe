package pipeline

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"batchgen/internal/domain"
	"batchgen/internal/infra"
	"batchgen/internal/metrics"
)

const (
	fixPenalty  = 5
	maxServings = 12

	minCalories = 1
	maxCalories = 3000
)

// Validator applies structural checks and auto-fix rules to generated
// recipes. Auto-fixes take priority over rejection; only items that stay
// invalid after fixing are rejected.
type Validator struct {
	logger infra.Logger
}

// NewValidator creates the validator agent.
func NewValidator(logger infra.Logger) *Validator {
	return &Validator{logger: logger}
}

// Process validates one item, auto-correcting what it can. The quality score
// starts at 100 and loses a fixed penalty per applied fix. A rejected item is
// excluded from the persisted set but never fails the batch.
func (v *Validator) Process(item domain.GeneratedItem) (domain.ValidatedItem, error) {
	start := time.Now()
	validated, err := v.process(item)
	metrics.ObserveAgent(domain.AgentValidator, start, err)
	return validated, err
}

func (v *Validator) process(item domain.GeneratedItem) (domain.ValidatedItem, error) {
	var corrections []string

	// Ingredient fixes: unit normalization and metric conversion.
	for i := range item.Ingredients {
		ing := &item.Ingredients[i]
		if ing.Amount < 0 {
			return domain.ValidatedItem{}, fmt.Errorf("%w: negative amount for %q", domain.ErrMalformedItem, ing.Name)
		}
		unit, amount, fixed := normalizeUnit(ing.Unit, ing.Amount)
		if fixed {
			corrections = append(corrections, fmt.Sprintf("normalized unit %q to %q for %s", ing.Unit, unit, ing.Name))
			ing.Unit = unit
			ing.Amount = amount
		}
	}

	// Title casing.
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return domain.ValidatedItem{}, fmt.Errorf("%w: empty title", domain.ErrMalformedItem)
	}
	if title == strings.ToLower(title) || title == strings.ToUpper(title) {
		item.Title = cases.Title(language.English).String(strings.ToLower(title))
		corrections = append(corrections, "re-cased title")
	}

	// Servings and timing sanity.
	if item.Servings < 1 {
		item.Servings = 2
		corrections = append(corrections, "defaulted servings to 2")
	} else if item.Servings > maxServings {
		item.Servings = maxServings
		corrections = append(corrections, fmt.Sprintf("capped servings at %d", maxServings))
	}
	if item.PrepMinutes < 0 {
		item.PrepMinutes = 0
		corrections = append(corrections, "reset negative prep time")
	}
	if item.CookMinutes < 0 {
		item.CookMinutes = 0
		corrections = append(corrections, "reset negative cook time")
	}

	// Nutrition rounding.
	rounded := roundNutrition(&item.Nutrition)
	if rounded {
		corrections = append(corrections, "rounded nutrition values")
	}

	// Hard range checks come after every fix had its chance.
	if item.Nutrition.Calories < minCalories || item.Nutrition.Calories > maxCalories {
		return domain.ValidatedItem{}, fmt.Errorf("%w: calories %d out of range", domain.ErrMalformedItem, item.Nutrition.Calories)
	}

	score := 100 - fixPenalty*len(corrections)
	if score < 0 {
		score = 0
	}

	if len(corrections) > 0 {
		v.logger.Debug().
			Str("title", item.Title).
			Int("fixes", len(corrections)).
			Msg("validator: auto-fixed item")
	}

	return domain.ValidatedItem{
		GeneratedItem: item,
		QualityScore:  score,
		Corrections:   corrections,
	}, nil
}

// normalizeUnit maps spelled-out or metric-prefixed units to canonical ones.
// kg and l convert into g and ml so downstream consumers see one scale.
func normalizeUnit(unit string, amount float64) (string, float64, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(unit))
	switch cleaned {
	case "g", "ml", "tbsp", "tsp", "pcs", "pinch":
		if cleaned == unit {
			return unit, amount, false
		}
		return cleaned, amount, true
	case "gram", "grams", "gr":
		return "g", amount, true
	case "kg", "kilogram", "kilograms":
		return "g", amount * 1000, true
	case "milliliter", "milliliters":
		return "ml", amount, true
	case "l", "liter", "liters", "litre", "litres":
		return "ml", amount * 1000, true
	case "tablespoon", "tablespoons":
		return "tbsp", amount, true
	case "teaspoon", "teaspoons":
		return "tsp", amount, true
	case "piece", "pieces":
		return "pcs", amount, true
	default:
		return unit, amount, false
	}
}

func roundNutrition(n *domain.Nutrition) bool {
	changed := false
	for _, field := range []*float64{&n.Protein, &n.Carbs, &n.Fat} {
		r := math.Round(*field*10) / 10
		if r != *field {
			*field = r
			changed = true
		}
	}
	return changed
}
