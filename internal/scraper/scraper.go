// Package scraper extracts normalized product records from retailer HTML.
//
// Every retailer shares the same extraction algorithm; only the ordered
// selector lists differ. For each field, selectors are tried in priority
// order and the first one yielding a match wins. Items missing a required
// field (name, link) are skipped without failing the page.
package scraper

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"stockbot/internal/classify"
	"stockbot/internal/model"
)

var priceToken = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Out-of-stock and special-status phrases are checked before in-stock ones
// so that e.g. "currently unavailable" never reads as available.
var notInStockPhrases = []string{
	"out of stock",
	"sold out",
	"unavailable",
	"pre-order",
	"preorder",
	"backorder",
	"coming soon",
}

var inStockPhrases = []string{
	"in stock",
	"available",
	"add to cart",
}

// Scraper turns fetched markup into product records.
type Scraper struct {
	keywords classify.Keywords
	log      *slog.Logger
}

// New creates a Scraper using the given keyword lists for categorization
// and booster-box filtering.
func New(kw classify.Keywords, log *slog.Logger) *Scraper {
	return &Scraper{keywords: kw, log: log}
}

// Parse extracts booster-box listings from one page of retailer markup.
// A page with no matching containers yields an empty slice, not an error;
// only unreadable markup is an error.
func (s *Scraper) Parse(retailer model.Retailer, body []byte) ([]model.Product, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	containers := firstMatching(doc.Selection, retailer.Selectors.Container)
	if containers == nil {
		return nil, nil
	}

	var products []model.Product
	containers.Each(func(_ int, item *goquery.Selection) {
		p, ok := s.extractItem(retailer, item)
		if !ok {
			return
		}
		products = append(products, p)
	})
	return products, nil
}

func (s *Scraper) extractItem(retailer model.Retailer, item *goquery.Selection) (model.Product, bool) {
	name := strings.TrimSpace(firstText(item, retailer.Selectors.Name))
	link := firstHref(item, retailer.Selectors.Link)
	if name == "" || link == "" {
		s.log.Debug("skipping item with missing required field", "retailer", retailer.Key)
		return model.Product{}, false
	}
	if !s.keywords.IsBoosterBox(name) {
		return model.Product{}, false
	}

	link = resolveURL(retailer.BaseURL, link)

	return model.Product{
		ID:       ProductID(retailer.Key, link),
		Retailer: retailer.Key,
		Name:     name,
		URL:      link,
		Price:    ParsePrice(firstText(item, retailer.Selectors.Price)),
		Currency: "AUD",
		InStock:  ParseStockStatus(firstText(item, retailer.Selectors.Stock)),
		Category: s.keywords.Category(name),
		SetName:  s.keywords.SetName(name),
	}, true
}

// ProductID returns the stable identifier for a listing: a truncated
// SHA-256 of retailer and canonical URL.
func ProductID(retailer, link string) string {
	h := sha256.Sum256([]byte(retailer + "|" + link))
	return fmt.Sprintf("%x", h[:16])
}

// ParsePrice extracts the first decimal-like token from price text.
// Unparsable text yields nil, never an error.
func ParsePrice(text string) *float64 {
	cleaned := strings.NewReplacer("$", "", "AUD", "", ",", "").Replace(text)
	token := priceToken.FindString(cleaned)
	if token == "" {
		return nil
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseStockStatus maps stock-status text to an in-stock flag. Unmatched
// text defaults to not-in-stock.
func ParseStockStatus(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range notInStockPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	for _, phrase := range inStockPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// firstMatching returns the selection for the first selector that matches
// at least one element, or nil when none do.
func firstMatching(root *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := root.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func firstText(item *goquery.Selection, selectors []string) string {
	if found := firstMatching(item, selectors); found != nil {
		return found.First().Text()
	}
	return ""
}

func firstHref(item *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		found := item.Find(sel)
		if found.Length() == 0 {
			// The item node itself may be the anchor.
			if item.Is(sel) {
				found = item
			} else {
				continue
			}
		}
		if href, ok := found.First().Attr("href"); ok && href != "" {
			return href
		}
	}
	return ""
}

func resolveURL(base, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(u).String()
}
