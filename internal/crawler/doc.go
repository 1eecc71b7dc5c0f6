// Package crawler walks a store locator's link hierarchy and hands every store page to the
// extractor and the record sink.
//
// The walk is a fixed four-stage tree: the start page lists regions, each region page lists
// cities, each city page lists stores, each store page is terminal. Fetching, concurrency and
// request timeouts belong to the colly collector; this package only decides which links to
// follow from each page kind and what to do with store pages.
package crawler
