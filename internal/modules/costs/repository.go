package costs

import (
	"database/sql"
	"fmt"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
)

// Repository reads farm records, usage line items, entity splits, loan
// allocations and production estimates from operations.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new costs repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "costs").Logger(),
	}
}

// FarmsForBusiness returns all non-deleted farms for a business and crop
// year, with usage items, other costs and entity splits attached.
func (r *Repository) FarmsForBusiness(businessID string, cropYear int) ([]Farm, error) {
	rows, err := r.db.Query(`
		SELECT id, business_id, name, commodity, crop_year, acres,
		       primary_entity_id, land_rent, land_rent_per_acre
		FROM farms
		WHERE business_id = ? AND crop_year = ? AND deleted = 0
	`, businessID, cropYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query farms: %w", err)
	}
	defer rows.Close()

	var farms []Farm
	for rows.Next() {
		var f Farm
		var commodity string
		var perAcre int
		if err := rows.Scan(&f.ID, &f.BusinessID, &f.Name, &commodity, &f.CropYear,
			&f.Acres, &f.PrimaryEntityID, &f.LandRent, &perAcre); err != nil {
			return nil, fmt.Errorf("failed to scan farm: %w", err)
		}
		f.LandRentPerAcre = perAcre != 0
		if c, ok := domain.ParseCommodity(commodity); ok {
			f.Commodity = c
		} else {
			r.log.Warn().Str("farm_id", f.ID).Str("commodity", commodity).Msg("Unknown commodity on farm, skipping")
			continue
		}
		farms = append(farms, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("farm rows: %w", err)
	}

	for i := range farms {
		if err := r.attachDetails(&farms[i]); err != nil {
			return nil, err
		}
	}

	return farms, nil
}

func (r *Repository) attachDetails(f *Farm) error {
	usageRows, err := r.db.Query(`
		SELECT id, category, COALESCE(detail, ''), quantity, unit_price, per_acre, nutrient_basis
		FROM farm_usage_items WHERE farm_id = ?
	`, f.ID)
	if err != nil {
		return fmt.Errorf("failed to query usage items for farm %s: %w", f.ID, err)
	}
	defer usageRows.Close()

	for usageRows.Next() {
		var u UsageItem
		var category, basis string
		var perAcre int
		if err := usageRows.Scan(&u.ID, &category, &u.Detail, &u.Quantity, &u.UnitPrice, &perAcre, &basis); err != nil {
			return fmt.Errorf("failed to scan usage item: %w", err)
		}
		u.Category = UsageCategory(category)
		u.NutrientBasis = NutrientBasis(basis)
		u.PerAcre = perAcre != 0
		f.Usage = append(f.Usage, u)
	}
	if err := usageRows.Err(); err != nil {
		return fmt.Errorf("usage rows: %w", err)
	}

	costRows, err := r.db.Query(`
		SELECT id, bucket, amount, per_acre FROM farm_other_costs WHERE farm_id = ?
	`, f.ID)
	if err != nil {
		return fmt.Errorf("failed to query other costs for farm %s: %w", f.ID, err)
	}
	defer costRows.Close()

	for costRows.Next() {
		var c CostItem
		var bucket string
		var perAcre int
		if err := costRows.Scan(&c.ID, &bucket, &c.Amount, &perAcre); err != nil {
			return fmt.Errorf("failed to scan cost item: %w", err)
		}
		c.Bucket = CostBucket(bucket)
		c.PerAcre = perAcre != 0
		f.OtherCosts = append(f.OtherCosts, c)
	}
	if err := costRows.Err(); err != nil {
		return fmt.Errorf("cost rows: %w", err)
	}

	splitRows, err := r.db.Query(`
		SELECT entity_id, percent FROM farm_entity_splits WHERE farm_id = ?
	`, f.ID)
	if err != nil {
		return fmt.Errorf("failed to query entity splits for farm %s: %w", f.ID, err)
	}
	defer splitRows.Close()

	for splitRows.Next() {
		var s EntitySplit
		if err := splitRows.Scan(&s.EntityID, &s.Percent); err != nil {
			return fmt.Errorf("failed to scan entity split: %w", err)
		}
		f.Splits = append(f.Splits, s)
	}
	return splitRows.Err()
}

// AllocationsFor implements LoanAllocator from the loan_allocations table.
func (r *Repository) AllocationsFor(farmID string, cropYear int) ([]domain.LoanAllocation, error) {
	rows, err := r.db.Query(`
		SELECT farm_id, crop_year, loan_class, interest, principal
		FROM loan_allocations WHERE farm_id = ? AND crop_year = ?
	`, farmID, cropYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query loan allocations: %w", err)
	}
	defer rows.Close()

	var allocations []domain.LoanAllocation
	for rows.Next() {
		var a domain.LoanAllocation
		var class string
		if err := rows.Scan(&a.FarmID, &a.CropYear, &class, &a.Interest, &a.Principal); err != nil {
			return nil, fmt.Errorf("failed to scan loan allocation: %w", err)
		}
		a.Class = domain.LoanClass(class)
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// EstimatesByFarm returns production estimates keyed by farm id for a
// business and crop year. Business-level estimates (empty farm_id) are
// keyed by commodity under the empty string and resolved by the caller.
func (r *Repository) EstimatesByFarm(businessID string, cropYear int) (map[string]*ProductionEstimate, error) {
	rows, err := r.db.Query(`
		SELECT id, business_id, COALESCE(farm_id, ''), commodity, crop_year, acres, yield_per_acre
		FROM production_estimates WHERE business_id = ? AND crop_year = ?
	`, businessID, cropYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query production estimates: %w", err)
	}
	defer rows.Close()

	estimates := make(map[string]*ProductionEstimate)
	for rows.Next() {
		var e ProductionEstimate
		var commodity string
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.FarmID, &commodity, &e.CropYear, &e.Acres, &e.YieldPerAcre); err != nil {
			return nil, fmt.Errorf("failed to scan production estimate: %w", err)
		}
		if c, ok := domain.ParseCommodity(commodity); ok {
			e.Commodity = c
		}
		est := e
		estimates[e.FarmID] = &est
	}
	return estimates, rows.Err()
}
