package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// RunDateLayout is the dd_mm_YYYY stamp used in table and archive names.
const RunDateLayout = "02_01_2006"

// tableSuffix marks every table as a US locator crawl.
const tableSuffix = "_USA"

// Run describes one crawl. It is built once at startup and passed by value; nothing mutates it.
type Run struct {
	ID       string
	StartURL string
	Date     time.Time

	// Domain is the host of StartURL.
	Domain string

	// FolderName is Domain with dots replaced, used as the archive folder.
	FolderName string

	// TableName is the relational table this run writes to.
	TableName string

	// StartID and EndID are accepted from the command line and recorded, but the walk ignores them.
	StartID int
	EndID   int
}

// NewRun derives the run's naming from the start URL and the run date.
func NewRun(id, startURL string, date time.Time, startID, endID int) (Run, error) {
	u, err := url.Parse(startURL)
	if err != nil {
		return Run{}, fmt.Errorf("parse start url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Run{}, fmt.Errorf("start url %q must be absolute", startURL)
	}
	domain := u.Hostname()
	return Run{
		ID:         id,
		StartURL:   startURL,
		Domain:     domain,
		FolderName: strings.TrimSpace(strings.ReplaceAll(domain, ".", "_")),
		TableName:  TableName(domain, date),
		Date:       date,
		StartID:    startID,
		EndID:      endID,
	}, nil
}

// TableName names the run's table: the brand label of the domain, the run date and a country suffix.
// "www.levi-strauss.com" gives "levi_strauss_16_10_2026_USA"; "locations.levi.com" gives
// "locations_16_10_2026_USA".
func TableName(domain string, date time.Time) string {
	labels := strings.Split(domain, ".")
	label := labels[0]
	if strings.Contains(domain, "www") && len(labels) > 1 {
		label = labels[1]
	}
	label = strings.ReplaceAll(label, "-", "_")
	return label + "_" + date.Format(RunDateLayout) + tableSuffix
}

// ArchiveDir is the archive-relative directory for this run's pages.
func (r Run) ArchiveDir() string {
	return path.Join(r.Date.Format(RunDateLayout), r.FolderName)
}
