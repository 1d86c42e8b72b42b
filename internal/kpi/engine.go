package kpi

import (
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/marketboard/marketboard/internal/domain"
)

// ErrNoSnapshot is returned when the engine is queried before any snapshot
// was ever loaded. An explicitly loaded empty snapshot is not an error:
// queries against it return the aggregation's zero value.
var ErrNoSnapshot = errors.New("kpi: no snapshot loaded")

// DateRange is an inclusive calendar window. A nil *DateRange means
// unbounded.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (dr *DateRange) contains(t time.Time) bool {
	if dr == nil {
		return true
	}
	return !t.Before(dr.From) && !t.After(dr.To)
}

// StoreRank is one entry of a store ranking.
type StoreRank struct {
	MagID      int `json:"mag_id"`
	Agreements int `json:"agreement_count"`
}

// ActorsPoint is one period of a market-actor time series.
type ActorsPoint struct {
	PeriodStart time.Time `json:"period_start"`
	Actors      int       `json:"actor_count"`
}

// ScorePoint is one period of a health-score time series.
type ScorePoint struct {
	PeriodStart time.Time `json:"period_start"`
	Score       float64   `json:"health_score"`
}

// Engine answers aggregate KPI queries over the current snapshot. The
// snapshot is replaced wholesale with SetSnapshot; every query reads the
// pointer once, so a swap mid-flight is invisible to it.
type Engine struct {
	snap   atomic.Pointer[Snapshot]
	tracer Tracer
}

// NewEngine returns an engine with no snapshot loaded.
func NewEngine() *Engine { return &Engine{} }

// SetSnapshot atomically replaces the current snapshot.
func (e *Engine) SetSnapshot(s *Snapshot) {
	e.snap.Store(s)
}

// SetTracer attaches an optional structured trace callback.
func (e *Engine) SetTracer(t Tracer) { e.tracer = t }

// Snapshot returns the current snapshot, or nil if none was ever loaded.
func (e *Engine) Snapshot() *Snapshot { return e.snap.Load() }

func (e *Engine) snapshot() (*Snapshot, error) {
	s := e.snap.Load()
	if s == nil {
		return nil, ErrNoSnapshot
	}
	return s, nil
}

// MarketActors counts distinct manufacturers with product listings in the
// category, optionally restricted to the date range.
func (e *Engine) MarketActors(categoryID int, dr *DateRange) (int, error) {
	s, err := e.snapshot()
	if err != nil {
		return 0, err
	}

	actors := make(map[int]struct{})
	for _, p := range s.products {
		if p.CatID != categoryID || !dateMatch(p.Date, dr) {
			continue
		}
		actors[p.FabID] = struct{}{}
	}
	e.trace("market_actors", map[string]any{"category": categoryID, "actors": len(actors)})
	return len(actors), nil
}

// AvgProductsPerManufacturer averages the distinct product count per
// manufacturer over manufacturers present in the category. Distinct
// products, not raw listing rows: re-listings of the same product must not
// inflate breadth.
func (e *Engine) AvgProductsPerManufacturer(categoryID int, dr *DateRange) (float64, error) {
	s, err := e.snapshot()
	if err != nil {
		return 0, err
	}
	return avgDistinctProducts(s.products, categoryID, dr), nil
}

// ManufacturerProductCount counts the manufacturer's distinct products in
// the category and window.
func (e *Engine) ManufacturerProductCount(manufacturerID, categoryID int, dr *DateRange) (int, error) {
	s, err := e.snapshot()
	if err != nil {
		return 0, err
	}

	prods := make(map[int]struct{})
	for _, p := range s.products {
		if p.CatID != categoryID || p.FabID != manufacturerID || !dateMatch(p.Date, dr) {
			continue
		}
		prods[p.ProdID] = struct{}{}
	}
	return len(prods), nil
}

// ManufacturerShare is the manufacturer's distinct-product count divided by
// the category's total distinct-product count, both over the same window.
// Zero denominator yields 0.0 by convention.
func (e *Engine) ManufacturerShare(manufacturerID, categoryID int, dr *DateRange) (float64, error) {
	s, err := e.snapshot()
	if err != nil {
		return 0, err
	}

	total := make(map[int]struct{})
	mine := make(map[int]struct{})
	for _, p := range s.products {
		if p.CatID != categoryID || !dateMatch(p.Date, dr) {
			continue
		}
		total[p.ProdID] = struct{}{}
		if p.FabID == manufacturerID {
			mine[p.ProdID] = struct{}{}
		}
	}
	if len(total) == 0 {
		return 0, nil
	}
	return float64(len(mine)) / float64(len(total)), nil
}

// TopStores ranks all stores by total sale-agreement count descending and
// returns the first n. Ties break by ascending store id so the ranking is
// deterministic and TopStores(n) is a prefix of TopStores(n+1).
func (e *Engine) TopStores(n int) ([]StoreRank, error) {
	s, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	ranks := rankStores(s.sales, n, nil)
	e.trace("top_stores", map[string]any{"n": n, "returned": len(ranks)})
	return ranks, nil
}

// ManufacturerHealthScore measures a manufacturer's shelf presence in the
// top-volume stores: the mean, over the topN stores ranked within the date
// window, of the manufacturer's share of distinct products sold in that
// store and category. A manufacturer with no product listings in the
// category scores 0.0 outright.
func (e *Engine) ManufacturerHealthScore(manufacturerID, categoryID int, dr *DateRange, topN int) (float64, error) {
	s, err := e.snapshot()
	if err != nil {
		return 0, err
	}

	sales := filterSalesByDate(s.sales, dr)
	score := healthScore(s.products, sales, manufacturerID, categoryID, dr, topN)
	e.trace("health_score", map[string]any{
		"manufacturer": manufacturerID,
		"category":     categoryID,
		"top_n":        topN,
		"sales_rows":   len(sales),
		"score":        score,
	})
	return score, nil
}

// MarketActorsOverTime computes the distinct-manufacturer count per period
// across [start, end]. Every period produces a row, zero counts included.
func (e *Engine) MarketActorsOverTime(categoryID int, start, end time.Time, g Granularity) ([]ActorsPoint, error) {
	s, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	periods := periodsBetween(start, end, g)
	out := make([]ActorsPoint, 0, len(periods))
	for _, per := range periods {
		actors := make(map[int]struct{})
		for _, p := range s.products {
			if p.CatID != categoryID || !p.HasDate() {
				continue
			}
			if p.Date.Before(per.Start) || !p.Date.Before(per.End) {
				continue
			}
			actors[p.FabID] = struct{}{}
		}
		out = append(out, ActorsPoint{PeriodStart: per.Start, Actors: len(actors)})
	}
	return out, nil
}

// ManufacturerHealthScoreOverTime runs the health-score algorithm
// independently inside each period: sales are restricted to the period and
// top stores are re-ranked within it. Periods without category sales yield
// a 0.0 row, never an omitted one.
func (e *Engine) ManufacturerHealthScoreOverTime(manufacturerID, categoryID int, start, end time.Time, topN int, g Granularity) ([]ScorePoint, error) {
	s, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	periods := periodsBetween(start, end, g)
	out := make([]ScorePoint, 0, len(periods))
	for _, per := range periods {
		dr := &DateRange{From: per.Start, To: per.End.AddDate(0, 0, -1)}
		sales := filterSalesByDate(s.sales, dr)
		score := healthScore(s.products, sales, manufacturerID, categoryID, dr, topN)
		out = append(out, ScorePoint{PeriodStart: per.Start, Score: score})
	}
	return out, nil
}

// AvgProductsInDiscountPeriod is AvgProductsPerManufacturer with the window
// pinned to the seasonal discount period of the given year.
func (e *Engine) AvgProductsInDiscountPeriod(categoryID int, winter bool, year int) (float64, error) {
	from, to := domain.DiscountPeriod(winter, year)
	return e.AvgProductsPerManufacturer(categoryID, &DateRange{From: from, To: to})
}

// TopStoresInDiscountPeriod ranks stores by agreements inside the seasonal
// discount window. categoryID 0 ranks across all categories.
func (e *Engine) TopStoresInDiscountPeriod(categoryID, n int, winter bool, year int) ([]StoreRank, error) {
	s, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	from, to := domain.DiscountPeriod(winter, year)
	dr := &DateRange{From: from, To: to}
	var catFilter *int
	if categoryID != 0 {
		catFilter = &categoryID
	}
	return rankStores(filterSalesByDate(s.sales, dr), n, catFilter), nil
}

// --- shared aggregation helpers ---

// dateMatch applies an optional inclusive range filter. Rows without a
// decoded date never match a bounded range but always match an unbounded
// one.
func dateMatch(t time.Time, dr *DateRange) bool {
	if dr == nil {
		return true
	}
	if t.IsZero() {
		return false
	}
	return dr.contains(t)
}

func filterSalesByDate(sales []domain.SaleLog, dr *DateRange) []domain.SaleLog {
	if dr == nil {
		return sales
	}
	out := make([]domain.SaleLog, 0, len(sales))
	for _, sl := range sales {
		if dateMatch(sl.Date, dr) {
			out = append(out, sl)
		}
	}
	return out
}

// rankStores counts agreements per store (optionally category-scoped),
// sorts by count descending with store id as tiebreak, and keeps the
// first n.
func rankStores(sales []domain.SaleLog, n int, categoryID *int) []StoreRank {
	if n <= 0 {
		return nil
	}
	counts := make(map[int]int)
	for _, sl := range sales {
		if categoryID != nil && sl.CatID != *categoryID {
			continue
		}
		counts[sl.MagID]++
	}

	ranks := make([]StoreRank, 0, len(counts))
	for mag, c := range counts {
		ranks = append(ranks, StoreRank{MagID: mag, Agreements: c})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Agreements != ranks[j].Agreements {
			return ranks[i].Agreements > ranks[j].Agreements
		}
		return ranks[i].MagID < ranks[j].MagID
	})
	if len(ranks) > n {
		ranks = ranks[:n]
	}
	return ranks
}

func avgDistinctProducts(products []domain.ProductLog, categoryID int, dr *DateRange) float64 {
	perFab := make(map[int]map[int]struct{})
	for _, p := range products {
		if p.CatID != categoryID || !dateMatch(p.Date, dr) {
			continue
		}
		set, ok := perFab[p.FabID]
		if !ok {
			set = make(map[int]struct{})
			perFab[p.FabID] = set
		}
		set[p.ProdID] = struct{}{}
	}
	if len(perFab) == 0 {
		return 0
	}
	total := 0
	for _, set := range perFab {
		total += len(set)
	}
	return float64(total) / float64(len(perFab))
}

// healthScore implements the canonical algorithm over pre-date-filtered
// sales. Store ranking ignores category (store popularity is a market-wide
// signal); the per-store sub-score is category-scoped.
func healthScore(products []domain.ProductLog, sales []domain.SaleLog, manufacturerID, categoryID int, dr *DateRange, topN int) float64 {
	if len(sales) == 0 {
		return 0
	}

	// Absent manufacturers cannot have health in the category.
	listed := false
	for _, p := range products {
		if p.CatID == categoryID && p.FabID == manufacturerID && dateMatch(p.Date, dr) {
			listed = true
			break
		}
	}
	if !listed {
		return 0
	}

	ranks := rankStores(sales, topN, nil)
	if len(ranks) == 0 {
		return 0
	}

	var sum float64
	for _, r := range ranks {
		total := make(map[int]struct{})
		mine := make(map[int]struct{})
		for _, sl := range sales {
			if sl.MagID != r.MagID || sl.CatID != categoryID {
				continue
			}
			total[sl.ProdID] = struct{}{}
			if sl.FabID == manufacturerID {
				mine[sl.ProdID] = struct{}{}
			}
		}
		if len(total) > 0 {
			sum += float64(len(mine)) / float64(len(total))
		}
	}
	return sum / float64(len(ranks))
}
