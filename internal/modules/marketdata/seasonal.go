package marketdata

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SeasonalPattern is one declarative entry of the seasonal table: a set of
// calendar months in which a category sees a named demand effect.
type SeasonalPattern struct {
	Months      []int   `yaml:"months"`
	Impact      float64 `yaml:"impact"`
	Description string  `yaml:"description"`
}

// SeasonalCalculator maps (category, month) to seasonal factors. It is pure
// and deterministic: the table is fixed at construction time.
type SeasonalCalculator struct {
	patterns map[string][]SeasonalPattern
}

// defaultSeasonalPatterns covers the marketplace's staple categories.
// Categories absent from the table yield an empty factor list.
func defaultSeasonalPatterns() map[string][]SeasonalPattern {
	return map[string][]SeasonalPattern{
		"food_beverages": {
			{Months: []int{6, 7, 8}, Impact: 0.2, Description: "Summer beverage demand increase"},
			{Months: []int{10, 11}, Impact: 0.15, Description: "Festival season food demand"},
			{Months: []int{12, 1}, Impact: -0.1, Description: "Winter seasonal adjustment"},
		},
		"clothing_textiles": {
			{Months: []int{10, 11, 12}, Impact: 0.3, Description: "Festival and winter clothing demand"},
			{Months: []int{3, 4, 5}, Impact: 0.1, Description: "Summer clothing preparation"},
			{Months: []int{6, 7, 8}, Impact: -0.2, Description: "Monsoon season reduced demand"},
		},
		"electronics": {
			{Months: []int{10, 11}, Impact: 0.25, Description: "Festival electronics purchases"},
			{Months: []int{3, 4}, Impact: 0.1, Description: "New year electronics upgrade"},
			{Months: []int{6, 7}, Impact: -0.1, Description: "Monsoon electronics caution"},
		},
	}
}

// NewSeasonalCalculator builds a calculator from the built-in table.
func NewSeasonalCalculator() *SeasonalCalculator {
	return &SeasonalCalculator{patterns: defaultSeasonalPatterns()}
}

// LoadSeasonalCalculator builds a calculator from a YAML table at path.
// An empty path falls back to the built-in table.
func LoadSeasonalCalculator(path string) (*SeasonalCalculator, error) {
	if path == "" {
		return NewSeasonalCalculator(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seasonal factors file: %w", err)
	}

	var patterns map[string][]SeasonalPattern
	if err := yaml.Unmarshal(raw, &patterns); err != nil {
		return nil, fmt.Errorf("failed to parse seasonal factors file: %w", err)
	}

	for category, entries := range patterns {
		for _, entry := range entries {
			for _, month := range entry.Months {
				if month < 1 || month > 12 {
					return nil, fmt.Errorf("seasonal table for %s references invalid month %d", category, month)
				}
			}
		}
	}

	return &SeasonalCalculator{patterns: patterns}, nil
}

// Factors returns the seasonal factors active for a category at the given
// time. The result is empty (never nil) when nothing applies.
func (c *SeasonalCalculator) Factors(category string, at time.Time) []SeasonalFactor {
	month := int(at.Month())

	factors := []SeasonalFactor{}
	for _, pattern := range c.patterns[category] {
		if !containsMonth(pattern.Months, month) {
			continue
		}
		factors = append(factors, SeasonalFactor{
			Factor:         pattern.Description,
			Impact:         pattern.Impact,
			Months:         pattern.Months,
			Description:    pattern.Description,
			HistoricalData: []SeasonalDataPoint{},
		})
	}

	return factors
}

func containsMonth(months []int, month int) bool {
	for _, m := range months {
		if m == month {
			return true
		}
	}
	return false
}
