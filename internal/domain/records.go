package domain

import "time"

// ProductLog is a single product listing event: manufacturer FabID offered
// product ProdID in category CatID as of Date. LogID is unique per table;
// ProdID is not (re-listings over time share it).
type ProductLog struct {
	LogID  int64     `json:"log_id" db:"log_id"`
	ProdID int       `json:"prod_id" db:"prod_id"`
	CatID  int       `json:"cat_id" db:"cat_id"`
	FabID  int       `json:"fab_id" db:"fab_id"`
	DateID int       `json:"date_id" db:"date_id"`
	Date   time.Time `json:"date,omitempty" db:"date_formatted"`
}

// SaleLog is a single sale agreement event at store MagID.
type SaleLog struct {
	LogID  int64     `json:"log_id" db:"log_id"`
	ProdID int       `json:"prod_id" db:"prod_id"`
	CatID  int       `json:"cat_id" db:"cat_id"`
	FabID  int       `json:"fab_id" db:"fab_id"`
	MagID  int       `json:"mag_id" db:"mag_id"`
	DateID int       `json:"date_id" db:"date_id"`
	Date   time.Time `json:"date,omitempty" db:"date_formatted"`
}

// HasDate reports whether the listing date was decodable from DateID.
func (p ProductLog) HasDate() bool { return !p.Date.IsZero() }

// HasDate reports whether the agreement date was decodable from DateID.
func (s SaleLog) HasDate() bool { return !s.Date.IsZero() }
