// Package extractor parses downcc-style font listing pages into font entries.
package extractor

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Ancylx/FontSniffer/internal/sniffer"
)

// Selector chain for the listing layout. The site's markup is an unstable
// external schema; when it changes, extraction degrades to empty results
// rather than errors.
const (
	listSelector   = "section.soft-list ul#li-change-color li"
	anchorSelector = "a.mg-r10[href]"
	pagerSelector  = "div.pages a[href]"
)

var pageHrefPattern = regexp.MustCompile(`list_200_(\d+)\.html`)

// Extractor turns raw listing HTML into FontResult entries. It holds only the
// site base URL used to resolve relative download links and is safe for
// concurrent use.
type Extractor struct {
	base *url.URL
}

// New builds an Extractor resolving relative links against baseURL.
func New(baseURL string) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Extractor{base: base}, nil
}

// Extract returns every font entry found in body. Entries without a usable
// download link are skipped; a malformed or empty document yields an empty
// slice.
func (e *Extractor) Extract(body []byte, sourcePage string) []sniffer.FontResult {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var results []sniffer.FontResult
	doc.Find(listSelector).Each(func(_ int, li *goquery.Selection) {
		anchor := li.Find(anchorSelector).First()
		href, ok := anchor.Attr("href")
		if !ok || !strings.HasPrefix(href, "/font/") {
			return
		}
		name := strings.TrimSpace(anchor.Text())
		if name == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		results = append(results, sniffer.FontResult{
			Name:        name,
			DownloadURL: e.base.ResolveReference(ref).String(),
			SourcePage:  sourcePage,
		})
	})
	return results
}

// PageCount inspects the pager block and returns the highest advertised page
// number, or 0 when the pager is missing or unparseable.
func (e *Extractor) PageCount(body []byte) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0
	}

	max := 0
	doc.Find(pagerSelector).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		m := pageHrefPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	})
	return max
}
