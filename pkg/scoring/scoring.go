package scoring

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/6000yuval/shopify-seo/pkg/catalog"
)

// Score rates one record's current field values from 0 to 100 and returns
// human-readable issues. Deterministic and side-effect free: the same record
// always yields the same score. Display only; nothing in the pipeline or the
// reconciler reads it.
func Score(rec catalog.Record) (int, []string) {
	score := 100
	var issues []string

	deduct := func(points int, issue string) {
		score -= points
		issues = append(issues, issue)
	}

	title := strings.TrimSpace(rec.Get(catalog.FieldTitle))
	switch {
	case title == "":
		deduct(15, "missing product title")
	case len(title) > 70:
		deduct(5, fmt.Sprintf("title is %d characters, keep it under 70", len(title)))
	case len(title) < 20:
		deduct(5, "title is under 20 characters, add descriptive words")
	}

	seoTitle := strings.TrimSpace(rec.Get(catalog.FieldSEOTitle))
	switch {
	case seoTitle == "":
		deduct(10, "missing SEO title")
	case len(seoTitle) > 60:
		deduct(5, fmt.Sprintf("SEO title is %d characters, keep it under 60", len(seoTitle)))
	}

	seoDesc := strings.TrimSpace(rec.Get(catalog.FieldSEODescription))
	switch {
	case seoDesc == "":
		deduct(10, "missing SEO description")
	case len(seoDesc) > 160:
		deduct(5, fmt.Sprintf("SEO description is %d characters, keep it under 160", len(seoDesc)))
	case len(seoDesc) < 50:
		deduct(5, "SEO description is under 50 characters")
	}

	handle := strings.TrimSpace(rec.Get(catalog.FieldHandle))
	switch {
	case handle == "":
		deduct(5, "missing URL slug")
	case handle != strings.ToLower(handle) || strings.ContainsAny(handle, " _"):
		deduct(5, "URL slug should be lowercase words joined by hyphens")
	}

	keyword := strings.TrimSpace(rec.Get(catalog.FieldKeyword))
	if keyword == "" {
		deduct(5, "no focus keyword set")
	} else if !strings.Contains(strings.ToLower(title), strings.ToLower(keyword)) {
		deduct(5, "focus keyword does not appear in the title")
	}

	if strings.TrimSpace(rec.Get(catalog.FieldTags)) == "" {
		deduct(5, "no tags set")
	}

	scoreBody(rec.Get(catalog.FieldBodyHTML), keyword, deduct)

	if score < 0 {
		score = 0
	}
	return score, issues
}

// scoreBody inspects the description HTML: word count, image alt coverage and
// keyword usage. Unparseable HTML is treated as plain text for word counting.
func scoreBody(bodyHTML, keyword string, deduct func(int, string)) {
	body := strings.TrimSpace(bodyHTML)
	if body == "" {
		deduct(15, "missing product description")
		return
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		if len(strings.Fields(body)) < 50 {
			deduct(10, "description is under 50 words")
		}
		return
	}

	text := doc.Text()
	words := len(strings.Fields(text))
	if words < 50 {
		deduct(10, fmt.Sprintf("description is %d words, aim for at least 50", words))
	}

	missingAlt := 0
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if alt, ok := s.Attr("alt"); !ok || strings.TrimSpace(alt) == "" {
			missingAlt++
		}
	})
	if missingAlt > 0 {
		deduct(5, fmt.Sprintf("%d description image(s) missing alt text", missingAlt))
	}

	if keyword != "" && !strings.Contains(strings.ToLower(text), strings.ToLower(keyword)) {
		deduct(5, "focus keyword does not appear in the description")
	}
}
