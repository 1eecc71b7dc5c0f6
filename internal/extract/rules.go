package extract

import (
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/JakeFAU/store-locator-crawler/internal/normalize"
	"github.com/JakeFAU/store-locator-crawler/internal/store"
)

// breadcrumbNameIndex is the position of the store's own crumb in the locator breadcrumb
// (Home > Country > State > City > Store). It assumes the site's current breadcrumb depth;
// a deeper or shallower trail changes only this rule.
const breadcrumbNameIndex = 4

// fieldRule reads one record field from the JSON-LD subject. path is a gjson path.
// A failed lookup or conversion assigns fallback and never affects other rules.
type fieldRule struct {
	field    string
	path     string
	convert  func(gjson.Result) (string, bool)
	fallback string
	assign   func(*store.Record, string)
}

var breadcrumbNameRule = fieldRule{
	field:   "name",
	path:    "mainEntityOfPage.breadcrumb.itemListElement." + strconv.Itoa(breadcrumbNameIndex) + ".item.name",
	convert: scalar,
	assign:  func(r *store.Record, v string) { r.Name = v },
}

var fieldRules = []fieldRule{
	breadcrumbNameRule,
	{
		field:   "latitude",
		path:    "geo.latitude",
		convert: scalar,
		assign:  func(r *store.Record, v string) { r.Latitude = v },
	},
	{
		field:   "longitude",
		path:    "geo.longitude",
		convert: scalar,
		assign:  func(r *store.Record, v string) { r.Longitude = v },
	},
	{
		field:   "street",
		path:    "address",
		convert: streetLine,
		assign:  func(r *store.Record, v string) { r.Street = v },
	},
	{
		field:   "city",
		path:    "address.addressLocality",
		convert: scalar,
		assign:  func(r *store.Record, v string) { r.City = v },
	},
	{
		field:   "state",
		path:    "address.addressRegion",
		convert: scalar,
		assign:  func(r *store.Record, v string) { r.State = v },
	},
	{
		field:   "zip_code",
		path:    "address.postalCode",
		convert: scalar,
		assign:  func(r *store.Record, v string) { r.ZipCode = v },
	},
	{
		// The locator publishes the phone number inside the address block.
		field:   "phone",
		path:    "address.telephone",
		convert: scalar,
		assign:  func(r *store.Record, v string) { r.Phone = v },
	},
	{
		field:   "open_hours",
		path:    "openingHours",
		convert: schedule,
		assign:  func(r *store.Record, v string) { r.OpenHours = v },
	},
	{
		field:   "direction_url",
		path:    "hasMap",
		convert: scalar,
		assign:  func(r *store.Record, v string) { r.DirectionURL = v },
	},
}

// apply evaluates the rule against subject and reports whether the lookup succeeded.
func (fr fieldRule) apply(subject gjson.Result, rec *store.Record) bool {
	if subject.Exists() {
		if node := subject.Get(fr.path); node.Exists() {
			if v, ok := fr.convert(node); ok {
				fr.assign(rec, v)
				return true
			}
		}
	}
	fr.assign(rec, fr.fallback)
	return false
}

// streetLine joins every string value of the address object in document order.
func streetLine(v gjson.Result) (string, bool) {
	if !v.IsObject() {
		return "", false
	}
	var parts []normalize.Part
	ok := true
	v.ForEach(func(key, value gjson.Result) bool {
		if normalize.SkipsAddressKey(key.Str) {
			return true
		}
		if value.Type != gjson.String {
			ok = false
			return false
		}
		parts = append(parts, normalize.Part{Key: key.Str, Value: value.Str})
		return true
	})
	if !ok {
		return "", false
	}
	return normalize.JoinAddressParts(parts), true
}

func schedule(v gjson.Result) (string, bool) {
	if v.Type != gjson.String {
		return "", false
	}
	return normalize.FormatSchedule(v.Str), true
}
