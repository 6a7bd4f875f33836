package search

import "carscout/models"

// Pass item ceilings: a pass stops collecting once it holds this many
// items, bounding latency on high-volume sources.
const (
	strictCeiling      = 40
	relaxedCeiling     = 30
	opportunityCeiling = 20
)

// scarcityThreshold is the "enough results" mark: once a source has
// collected at least this many items across passes, later relaxation
// passes are not attempted.
const scarcityThreshold = 10

// Relaxation factors for the relaxed pass.
const (
	relaxYearBack    = 2    // widen year_min down
	relaxYearForward = 1    // widen year_max up
	relaxMileagePct  = 25   // widen mileage_max by %
	relaxPricePct    = 10   // raise price ceiling by %
)

// PassSpec is one filter-relaxation level with its effective criteria.
type PassSpec struct {
	Level    models.PassLevel
	Criteria models.SearchCriteria
	MaxItems int
}

// Planner produces the ordered strict → relaxed → opportunity sequence for
// a source. Static: the sequence depends only on the criteria.
type Planner struct{}

func NewPlanner() *Planner {
	return &Planner{}
}

func (p *Planner) Passes(criteria models.SearchCriteria) []PassSpec {
	return []PassSpec{
		{Level: models.PassStrict, Criteria: criteria, MaxItems: strictCeiling},
		{Level: models.PassRelaxed, Criteria: relax(criteria), MaxItems: relaxedCeiling},
		{Level: models.PassOpportunity, Criteria: opportunity(criteria), MaxItems: opportunityCeiling},
	}
}

// Continue decides whether the next pass runs: stop when the source has
// enough items, or when the last pass came back empty on a source
// configured to skip relaxation in that case.
func (p *Planner) Continue(collected, lastPassCount int, skipIfNoResults bool) bool {
	if collected >= scarcityThreshold {
		return false
	}
	if lastPassCount == 0 && skipIfNoResults {
		return false
	}
	return true
}

func relax(c models.SearchCriteria) models.SearchCriteria {
	r := c
	if r.YearMin > 0 {
		r.YearMin -= relaxYearBack
	}
	if r.YearMax > 0 {
		r.YearMax += relaxYearForward
	}
	if r.MileageMax > 0 {
		r.MileageMax += r.MileageMax * relaxMileagePct / 100
	}
	if r.PriceMax > 0 {
		r.PriceMax += r.PriceMax * relaxPricePct / 100
	}
	return r
}

// opportunity drops every bound except the brand and, when requested, the
// fuel type; an electric-only shopper gets no value from petrol bargains.
func opportunity(c models.SearchCriteria) models.SearchCriteria {
	return models.SearchCriteria{
		Brand:         c.Brand,
		Fuel:          c.Fuel,
		ExcludedSites: c.ExcludedSites,
	}
}
