package ingest

import (
	"github.com/rs/zerolog/log"

	"github.com/marketboard/marketboard/internal/domain"
)

// productFromRaw normalizes an API payload into a domain record and decodes
// its date eagerly. An undecodable date_id is logged and left as a zero
// date; the snapshot layer counts those rows.
func productFromRaw(r rawLog) domain.ProductLog {
	rec := domain.ProductLog{
		LogID:  r.LogID,
		ProdID: r.ProdID,
		CatID:  r.CatID,
		FabID:  r.FabID,
		DateID: r.DateID,
	}
	if d, err := domain.DecodeDateIDInt(r.DateID); err == nil {
		rec.Date = d
	} else {
		log.Warn().Int64("log_id", r.LogID).Int("date_id", r.DateID).Msg("product log has undecodable date_id")
	}
	return rec
}

func saleFromRaw(r rawLog) domain.SaleLog {
	rec := domain.SaleLog{
		LogID:  r.LogID,
		ProdID: r.ProdID,
		CatID:  r.CatID,
		FabID:  r.FabID,
		MagID:  r.MagID,
		DateID: r.DateID,
	}
	if d, err := domain.DecodeDateIDInt(r.DateID); err == nil {
		rec.Date = d
	} else {
		log.Warn().Int64("log_id", r.LogID).Int("date_id", r.DateID).Msg("sale log has undecodable date_id")
	}
	return rec
}

// validProduct checks the required fields of a product payload.
func validProduct(r rawLog) bool {
	return r.LogID > 0 && r.ProdID > 0 && r.CatID > 0 && r.FabID > 0 && r.DateID > 0
}

// validSale additionally requires the store id.
func validSale(r rawLog) bool {
	return validProduct(r) && r.MagID > 0
}
