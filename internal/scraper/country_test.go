package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUSCountry(t *testing.T) {
	usInputs := []string{
		"US", "USA", "U.S.", "United States", "united states of america",
		"America", "  United States  ", "Puerto Rico", "Guam",
		"California, United States", "Austin, TX, United States",
	}
	for _, input := range usInputs {
		assert.True(t, IsUSCountry(input), input)
	}

	nonUSInputs := []string{
		"", "Canada", "United Kingdom", "Australia", "Germany",
		"United Arab Emirates",
	}
	for _, input := range nonUSInputs {
		assert.False(t, IsUSCountry(input), input)
	}
}
