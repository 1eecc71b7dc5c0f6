package store

// NotAvailable marks columns the source never provides.
const NotAvailable = "N/A"

// Fixed values written for every record of a crawl.
const (
	DefaultCountry = "USA"
	DefaultStatus  = "Open"
)

// UpdatedDateLayout formats updated_date as dd-mm-YYYY.
const UpdatedDateLayout = "02-01-2006"

// Columns is the insert order every sink uses. Values returns fields in the same order.
var Columns = []string{
	"store_no",
	"name",
	"latitude",
	"longitude",
	"street",
	"city",
	"state",
	"zip_code",
	"county",
	"phone",
	"open_hours",
	"url",
	"provider",
	"category",
	"updated_date",
	"country",
	"status",
	"direction_url",
	"pagesave_path",
}

// Record is one store location extracted from a store detail page.
type Record struct {
	StoreNo      string `json:"store_no"`
	Name         string `json:"name"`
	Latitude     string `json:"latitude"`
	Longitude    string `json:"longitude"`
	Street       string `json:"street"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	County       string `json:"county"`
	Phone        string `json:"phone"`
	OpenHours    string `json:"open_hours"`
	URL          string `json:"url"`
	Provider     string `json:"provider"`
	Category     string `json:"category"`
	UpdatedDate  string `json:"updated_date"`
	Country      string `json:"country"`
	Status       string `json:"status"`
	DirectionURL string `json:"direction_url"`
	PagesavePath string `json:"pagesave_path"`
}

// Values returns the record's fields ordered like Columns.
func (r Record) Values() []any {
	return []any{
		r.StoreNo,
		r.Name,
		r.Latitude,
		r.Longitude,
		r.Street,
		r.City,
		r.State,
		r.ZipCode,
		r.County,
		r.Phone,
		r.OpenHours,
		r.URL,
		r.Provider,
		r.Category,
		r.UpdatedDate,
		r.Country,
		r.Status,
		r.DirectionURL,
		r.PagesavePath,
	}
}

// ColumnWidth returns the varchar width used when provisioning a column.
func ColumnWidth(column string) int {
	switch column {
	case "street", "open_hours", "url", "direction_url", "pagesave_path":
		return 500
	default:
		return 100
	}
}
