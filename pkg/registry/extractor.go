package registry

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lberndt/npmharvest/pkg/errors"
)

var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+[\w.+-]*`)

// DocumentExtractor parses the browse page as a DOM and walks the package
// anchors in document order. This is the default extractor.
type DocumentExtractor struct{}

// NewDocumentExtractor creates a DOM-based extractor.
func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

// Extract returns the (name, version) pairs listed on the page, in order
// of appearance. Anchors without a version nearby are skipped.
func (e *DocumentExtractor) Extract(page string) ([]PackageRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse listing page")
	}

	refs := []PackageRef{}
	doc.Find(`a[href^="/package/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		name := strings.TrimPrefix(href, "/package/")
		if name == "" {
			return
		}
		version := nearestVersion(sel)
		if version == "" {
			return
		}
		refs = append(refs, PackageRef{Name: name, Version: version})
	})
	return refs, nil
}

// nearestVersion scans the anchor's enclosing section (or parent, when the
// page is not sectioned) for the first version-shaped token.
func nearestVersion(sel *goquery.Selection) string {
	scope := sel.Closest("section")
	if scope.Length() == 0 {
		scope = sel.Parent()
	}
	return versionPattern.FindString(scope.Text())
}

// PatternExtractor scans the raw page text with a single regular
// expression, the way the scrape was originally written. It assumes
// well-formed target markup and exists as a DOM-free fallback.
type PatternExtractor struct {
	re *regexp.Regexp
}

// NewPatternExtractor creates a regexp-based extractor.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{
		re: regexp.MustCompile(`(?s)<a[^>]+href="/package/([^"]+)"[^>]*>.*?(\d+\.\d+\.\d+[\w.+-]*)`),
	}
}

// Extract returns the (name, version) pairs matched in the page text,
// in match order.
func (e *PatternExtractor) Extract(page string) ([]PackageRef, error) {
	matches := e.re.FindAllStringSubmatch(page, -1)
	refs := make([]PackageRef, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, PackageRef{Name: m[1], Version: m[2]})
	}
	return refs, nil
}
