package registry

import (
	"context"
	"fmt"
	"io"

	"github.com/lberndt/npmharvest/pkg/errors"
)

// DefaultListingURL is the npm website, which serves the
// browse-by-dependents ranking this tool scrapes.
const DefaultListingURL = "https://www.npmjs.com"

// PackageRef identifies one package release on the registry.
type PackageRef struct {
	Name    string
	Version string
}

// String returns the conventional name@version form.
func (r PackageRef) String() string {
	return r.Name + "@" + r.Version
}

// Extractor turns raw listing-page text into the ordered packages it lists.
// Implementations must preserve the order of appearance in the page.
type Extractor interface {
	Extract(page string) ([]PackageRef, error)
}

// Listing fetches pages of the most-depended-upon ranking.
type Listing struct {
	client    *Client
	baseURL   string
	extractor Extractor
}

// NewListing creates a Listing that scrapes baseURL using the given
// extractor. An empty baseURL falls back to [DefaultListingURL]; a nil
// extractor falls back to [NewDocumentExtractor].
func NewListing(client *Client, baseURL string, extractor Extractor) *Listing {
	if baseURL == "" {
		baseURL = DefaultListingURL
	}
	if extractor == nil {
		extractor = NewDocumentExtractor()
	}
	return &Listing{client: client, baseURL: baseURL, extractor: extractor}
}

// FetchPage returns the packages listed on the browse page at the given
// offset, in page order. The page is requested with gzip transfer encoding
// and inflated before parsing; the decompressed bytes are accumulated in
// full and decoded to text exactly once.
func (l *Listing) FetchPage(ctx context.Context, offset int) ([]PackageRef, error) {
	pageURL := fmt.Sprintf("%s/browse/depended?offset=%d", l.baseURL, offset)

	body, err := l.client.GetCompressed(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecompress, err, "read listing page at offset %d", offset)
	}

	refs, err := l.extractor.Extract(string(raw))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "extract packages at offset %d", offset)
	}
	return refs, nil
}
