package pipeline

import (
	"fmt"
	"strings"

	"github.com/6000yuval/shopify-seo/pkg/catalog"
)

// BuildInstruction constructs the mode-specific instruction for rewriting one
// field of one record. Deterministic: the output depends only on the mode, the
// field name and the record's current values. An empty return means the field
// has nothing to work from and must be skipped.
func BuildInstruction(mode catalog.FieldMode, field string, rec catalog.Record) string {
	value := strings.TrimSpace(rec.Get(field))
	name := strings.TrimSpace(rec.Get(catalog.FieldTitle))
	keyword := strings.TrimSpace(rec.Get(catalog.FieldKeyword))
	vendor := strings.TrimSpace(rec.Get(catalog.FieldVendor))

	ctx := contextLines(name, keyword, vendor)

	switch mode {
	case catalog.ModeProfessional:
		if value == "" {
			return ""
		}
		return fmt.Sprintf("Rewrite the following %s in a polished, professional tone. Keep the meaning intact. Do not add hype words like \"amazing\" or \"best ever\". Do not use exclamation marks.%s\nCurrent value: %s", field, ctx, value)

	case catalog.ModeSEOTitle:
		if value == "" && name == "" {
			return ""
		}
		src := value
		if src == "" {
			src = name
		}
		return fmt.Sprintf("Write an SEO page title of at most 60 characters. Include the focus keyword near the start when one is given. Do not use quotes, pipes or ALL CAPS.%s\nCurrent value: %s", ctx, src)

	case catalog.ModeSEODescription:
		if value == "" && name == "" {
			return ""
		}
		src := value
		if src == "" {
			src = name
		}
		return fmt.Sprintf("Write an SEO meta description between 140 and 160 characters. Include the focus keyword once and end with a short call to action. Do not use quotes.%s\nCurrent value: %s", ctx, src)

	case catalog.ModeSEOSlug:
		if value == "" && name == "" {
			return ""
		}
		src := value
		if src == "" {
			src = name
		}
		return fmt.Sprintf("Produce a URL slug: lowercase words joined by hyphens, at most 5 words, no stop words (a, an, the, and, of, for), no special characters.%s\nCurrent value: %s", ctx, src)

	case catalog.ModeSEOKeyword:
		if value == "" && name == "" {
			return ""
		}
		src := value
		if src == "" {
			src = name
		}
		return fmt.Sprintf("Suggest one primary SEO keyword phrase of 2 to 4 words for this product. Lowercase, no punctuation, no brand name unless essential.%s\nCurrent value: %s", ctx, src)

	case catalog.ModeShortBlurb:
		if value == "" && name == "" {
			return ""
		}
		src := value
		if src == "" {
			src = name
		}
		return fmt.Sprintf("Write a single-sentence product blurb of at most 120 characters. Concrete benefit first, no exclamation marks, no quotes.%s\nCurrent value: %s", ctx, src)

	case catalog.ModeBodyContent:
		if value == "" && name == "" {
			return ""
		}
		src := value
		if src == "" {
			src = name
		}
		return fmt.Sprintf("Write a product description of 150 to 300 words as HTML using only p, ul and li tags. Weave the focus keyword in naturally once or twice. Keep every factual claim from the current value; invent nothing.%s\nCurrent value: %s", ctx, src)

	case catalog.ModeSellingPoints:
		if value == "" && name == "" {
			return ""
		}
		src := value
		if src == "" {
			src = name
		}
		return fmt.Sprintf("Write 3 to 5 selling points, one per line, each at most 80 characters, no leading bullet characters. Every point must be supported by the current value; invent nothing.%s\nCurrent value: %s", ctx, src)

	case catalog.ModeFactual:
		if value == "" {
			return ""
		}
		return fmt.Sprintf("Tighten the following text. Keep every fact, remove filler, fix grammar. Do not add any new claim.%s\nCurrent value: %s", ctx, value)

	default:
		if value == "" {
			return ""
		}
		return fmt.Sprintf("Tighten the following text. Keep every fact, remove filler, fix grammar. Do not add any new claim.%s\nCurrent value: %s", ctx, value)
	}
}

// contextLines renders sibling-field context appended to every instruction.
func contextLines(name, keyword, vendor string) string {
	var b strings.Builder
	if name != "" {
		b.WriteString("\nProduct name: ")
		b.WriteString(name)
	}
	if keyword != "" {
		b.WriteString("\nFocus keyword: ")
		b.WriteString(keyword)
	}
	if vendor != "" {
		b.WriteString("\nBrand: ")
		b.WriteString(vendor)
	}
	return b.String()
}
