package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageKind is the traversal state a fetched page is handled in.
type PageKind string

// Page kinds, in the order the walk reaches them.
const (
	KindRoot        PageKind = "root"
	KindCityList    PageKind = "city_list"
	KindStoreList   PageKind = "store_list"
	KindStoreDetail PageKind = "store_detail"
)

// Follow is a link a handler wants fetched next, with the state its response is handled in.
type Follow struct {
	URL  string
	Kind PageKind
}

// selectorLinks returns the href of every element matching selector, in document order.
func selectorLinks(doc *goquery.Document, selector string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			if href = strings.TrimSpace(href); href != "" {
				out = append(out, href)
			}
		}
	})
	return out
}

// storeLinks returns the unique anchors whose raw href contains pageURL.
// Store pages live under their city page, so this separates store anchors from site
// navigation. Markup that links stores by relative href or from another path is missed.
func storeLinks(doc *goquery.Document, pageURL string) []string {
	seen := make(map[string]struct{})
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, pageURL) {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		out = append(out, href)
	})
	return out
}

func follows(hrefs []string, kind PageKind) []Follow {
	if len(hrefs) == 0 {
		return nil
	}
	out := make([]Follow, 0, len(hrefs))
	for _, h := range hrefs {
		out = append(out, Follow{URL: h, Kind: kind})
	}
	return out
}
