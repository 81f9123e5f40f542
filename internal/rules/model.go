// Package rules exposes the single global configuration object consumed
// read-only by pricing and presentation layers.
package rules

import (
	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
)

// GlobalRules carries the currently effective global configuration. The
// engine never mutates it; changes arrive from the admin surface and only
// affect quotations that have not been approved yet.
type GlobalRules struct {
	TaxPercent       float64            `json:"taxPercent"`
	DefaultBuildType pricing.BuildType  `json:"defaultBuildType"`
	CityFactors      map[string]float64 `json:"cityFactors"`
	BedroomFactors   map[string]float64 `json:"bedroomFactors"`
	TermsText        string             `json:"termsText"`
}

// Defaults returns the rules applied when no row has been configured yet.
func Defaults() GlobalRules {
	return GlobalRules{
		TaxPercent:       18,
		DefaultBuildType: pricing.BuildHandmade,
	}
}
