package positions

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
)

// Repository reads grain contracts and projected production from
// operations.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new positions repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "positions").Logger(),
	}
}

// Contracts returns all non-deleted contracts for a business, commodity and
// crop year.
func (r *Repository) Contracts(businessID string, commodity domain.Commodity, cropYear int) ([]GrainContract, error) {
	rows, err := r.db.Query(`
		SELECT id, business_id, COALESCE(entity_id, ''), commodity, crop_year,
		       contract_type, bushels, price, COALESCE(delivery_month, ''), created_at
		FROM grain_contracts
		WHERE business_id = ? AND commodity = ? AND crop_year = ? AND deleted = 0
	`, businessID, string(commodity), cropYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []GrainContract
	for rows.Next() {
		var c GrainContract
		var commodityStr, contractType string
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.EntityID, &commodityStr, &c.CropYear,
			&contractType, &c.Bushels, &c.Price, &c.DeliveryMonth, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		c.Commodity = commodity
		c.Type = ContractType(contractType)
		c.CreatedAt = time.Unix(createdAt, 0)
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// ProjectedBushels sums the projected production (acres x yield) across all
// estimates for a business, commodity and crop year. Returns 0 and false
// when no estimate exists.
func (r *Repository) ProjectedBushels(businessID string, commodity domain.Commodity, cropYear int) (float64, bool, error) {
	rows, err := r.db.Query(`
		SELECT acres, yield_per_acre
		FROM production_estimates
		WHERE business_id = ? AND commodity = ? AND crop_year = ?
	`, businessID, string(commodity), cropYear)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query production estimates: %w", err)
	}
	defer rows.Close()

	var total float64
	found := false
	for rows.Next() {
		var acres, yield float64
		if err := rows.Scan(&acres, &yield); err != nil {
			return 0, false, fmt.Errorf("failed to scan production estimate: %w", err)
		}
		total += acres * yield
		found = true
	}
	return total, found, rows.Err()
}
