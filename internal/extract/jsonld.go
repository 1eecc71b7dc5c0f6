package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// ErrNoStructuredData is returned when a page has no parseable JSON-LD block.
var ErrNoStructuredData = errors.New("no structured data block")

const jsonLDSelector = `script[type="application/ld+json"]`

// subject locates the first JSON-LD block on the page and returns the entity it describes.
// A top-level array yields its first element; a lone object is its own subject.
// An empty array yields a result that does not exist, so every field falls back.
func subject(body []byte) (gjson.Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: parse html: %v", ErrNoStructuredData, err)
	}
	script := doc.Find(jsonLDSelector).First()
	if script.Length() == 0 {
		return gjson.Result{}, ErrNoStructuredData
	}
	raw := strings.TrimSpace(script.Text())
	if raw == "" {
		return gjson.Result{}, fmt.Errorf("%w: empty script", ErrNoStructuredData)
	}
	if !gjson.Valid(raw) {
		return gjson.Result{}, fmt.Errorf("%w: invalid json", ErrNoStructuredData)
	}
	root := gjson.Parse(raw)
	switch {
	case root.IsArray():
		return root.Get("0"), nil
	case root.IsObject():
		return root, nil
	default:
		return gjson.Result{}, fmt.Errorf("%w: unexpected top-level %s", ErrNoStructuredData, root.Type)
	}
}

// scalar renders strings and numbers; anything else is a type mismatch.
// Numbers keep their literal text so coordinates keep their published precision.
func scalar(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String:
		return v.Str, true
	case gjson.Number:
		return v.Raw, true
	default:
		return "", false
	}
}
