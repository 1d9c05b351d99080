package catalog

import "strings"

// FieldMode selects which prompt-construction and validation rules apply when
// a field is rewritten.
type FieldMode string

const (
	ModeProfessional   FieldMode = "PROFESSIONAL"
	ModeSEOTitle       FieldMode = "SEO_TITLE"
	ModeSEODescription FieldMode = "SEO_DESCRIPTION"
	ModeSEOSlug        FieldMode = "SEO_SLUG"
	ModeSEOKeyword     FieldMode = "SEO_KEYWORD"
	ModeShortBlurb     FieldMode = "SHORT_BLURB"
	ModeBodyContent    FieldMode = "BODY_CONTENT"
	ModeSellingPoints  FieldMode = "SELLING_POINTS"
	ModeFactual        FieldMode = "FACTUAL"
)

// modeRule maps field-name substrings to a mode. A rule matches when every
// substring in contains appears in the lowercased field name.
type modeRule struct {
	contains []string
	mode     FieldMode
}

// modeRules is checked top to bottom; the first match wins. The order matters
// because field names routinely match several patterns (seo_description hits
// both the seo and description rules, short_description hits short before the
// trailing description rule).
var modeRules = []modeRule{
	{[]string{"selling"}, ModeSellingPoints},
	{[]string{"bullet"}, ModeSellingPoints},
	{[]string{"option"}, ModeProfessional},
	{[]string{"variant"}, ModeProfessional},
	{[]string{"keyword"}, ModeSEOKeyword},
	{[]string{"slug"}, ModeSEOSlug},
	{[]string{"handle"}, ModeSEOSlug},
	{[]string{"seo", "desc"}, ModeSEODescription},
	{[]string{"meta", "desc"}, ModeSEODescription},
	{[]string{"seo"}, ModeSEOTitle},
	{[]string{"body"}, ModeBodyContent},
	{[]string{"short"}, ModeShortBlurb},
	{[]string{"excerpt"}, ModeShortBlurb},
	{[]string{"blurb"}, ModeShortBlurb},
	{[]string{"desc"}, ModeBodyContent},
	{[]string{"title"}, ModeProfessional},
	{[]string{"name"}, ModeProfessional},
}

// DetectFieldMode returns the default optimization mode for a field name.
// Pure function: lowercased substring match against the ordered rule table,
// falling back to FACTUAL.
func DetectFieldMode(field string) FieldMode {
	lower := strings.ToLower(field)
	for _, rule := range modeRules {
		matched := true
		for _, sub := range rule.contains {
			if !strings.Contains(lower, sub) {
				matched = false
				break
			}
		}
		if matched {
			return rule.mode
		}
	}
	return ModeFactual
}

// ValidMode reports whether s is one of the defined mode tags.
func ValidMode(s string) bool {
	switch FieldMode(s) {
	case ModeProfessional, ModeSEOTitle, ModeSEODescription, ModeSEOSlug,
		ModeSEOKeyword, ModeShortBlurb, ModeBodyContent, ModeSellingPoints, ModeFactual:
		return true
	}
	return false
}
