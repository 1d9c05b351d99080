package catalog

import "testing"

func TestDetectFieldMode(t *testing.T) {
	tests := []struct {
		field    string
		expected FieldMode
	}{
		{"selling_points", ModeSellingPoints},
		{"options", ModeProfessional},
		{"variant_title", ModeProfessional},
		{"keyword", ModeSEOKeyword},
		{"focus_keyword", ModeSEOKeyword},
		{"slug", ModeSEOSlug},
		{"handle", ModeSEOSlug},
		{"seo_title", ModeSEOTitle},
		{"seo_description", ModeSEODescription},
		{"meta_description", ModeSEODescription},
		{"body_html", ModeBodyContent},
		{"short_description", ModeShortBlurb},
		{"excerpt", ModeShortBlurb},
		{"description", ModeBodyContent},
		{"title", ModeProfessional},
		{"product_name", ModeProfessional},
		{"sku", ModeFactual},
		{"barcode", ModeFactual},
	}

	for _, tc := range tests {
		if got := DetectFieldMode(tc.field); got != tc.expected {
			t.Errorf("DetectFieldMode(%q) = %s, want %s", tc.field, got, tc.expected)
		}
	}
}

// Field names routinely match several patterns; the rule order decides.
func TestDetectFieldModePriority(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		expected FieldMode
	}{
		{"keyword beats seo", "seo_keyword", ModeSEOKeyword},
		{"slug beats seo", "seo_slug", ModeSEOSlug},
		{"seo beats short", "seo_short_title", ModeSEOTitle},
		{"short beats bare description", "short_description", ModeShortBlurb},
		{"selling beats title", "selling_points_title", ModeSellingPoints},
		{"option beats name", "option_name", ModeProfessional},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectFieldMode(tc.field); got != tc.expected {
				t.Fatalf("DetectFieldMode(%q) = %s, want %s", tc.field, got, tc.expected)
			}
		})
	}
}

func TestDetectFieldModeCaseInsensitive(t *testing.T) {
	if got := DetectFieldMode("SEO_Title"); got != ModeSEOTitle {
		t.Fatalf("expected case-insensitive match, got %s", got)
	}
}

func TestValidMode(t *testing.T) {
	for _, m := range []FieldMode{
		ModeProfessional, ModeSEOTitle, ModeSEODescription, ModeSEOSlug,
		ModeSEOKeyword, ModeShortBlurb, ModeBodyContent, ModeSellingPoints, ModeFactual,
	} {
		if !ValidMode(string(m)) {
			t.Errorf("ValidMode(%q) = false", m)
		}
	}
	if ValidMode("SOMETHING_ELSE") {
		t.Error("expected unknown mode to be invalid")
	}
}
