// Package identifier derives stable names from store page URLs.
package identifier

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
)

// PageIDLength is the number of hex characters kept from the digest.
const PageIDLength = 8

// storeNumberPattern matches the digits directly in front of the ".html" that ends the path.
var storeNumberPattern = regexp.MustCompile(`(\d+)\.html(?:[?#]|$)`)

// PageID returns the first eight hex characters of the SHA-256 digest of the URL's host and path.
// Query strings and fragments do not take part, so tracking parameters map to the same archive file.
// Unparseable input is hashed as-is.
func PageID(rawURL string) string {
	key := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		key = u.Host + u.Path
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:PageIDLength]
}

// StoreNumber extracts the store number embedded as "<digits>.html" in a detail page URL.
func StoreNumber(rawURL string) (string, bool) {
	m := storeNumberPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}
