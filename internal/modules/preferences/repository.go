package preferences

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
)

// Repository handles business preference rows in operations.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new preferences repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "preferences").Logger(),
	}
}

// Get returns the preferences for a business, falling back to defaults when
// no row exists.
func (r *Repository) Get(businessID string) (Preferences, error) {
	var (
		risk, commodities, instruments                     string
		targetMargin, minAbove, preHarvest, maxSingleSale float64
	)

	err := r.db.QueryRow(`
		SELECT risk_tolerance, enabled_commodities, enabled_instruments,
		       target_margin, min_above_break_even, pre_harvest_target, max_single_sale
		FROM business_preferences WHERE business_id = ?
	`, businessID).Scan(&risk, &commodities, &instruments, &targetMargin, &minAbove, &preHarvest, &maxSingleSale)
	if err == sql.ErrNoRows {
		return Defaults(businessID), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to query preferences for %s: %w", businessID, err)
	}

	prefs := Preferences{
		BusinessID:        businessID,
		RiskTolerance:     domain.RiskTolerance(strings.ToUpper(risk)),
		TargetMargin:      targetMargin,
		MinAboveBreakEven: minAbove,
		PreHarvestTarget:  preHarvest,
		MaxSingleSale:     maxSingleSale,
	}

	for _, c := range strings.Split(commodities, ",") {
		if parsed, ok := domain.ParseCommodity(c); ok {
			prefs.EnabledCommodities = append(prefs.EnabledCommodities, parsed)
		}
	}
	for _, i := range strings.Split(instruments, ",") {
		if trimmed := strings.TrimSpace(i); trimmed != "" {
			prefs.EnabledInstruments = append(prefs.EnabledInstruments, strings.ToUpper(trimmed))
		}
	}

	return prefs, nil
}

// Upsert stores the preferences for a business.
func (r *Repository) Upsert(p Preferences) error {
	commodities := make([]string, 0, len(p.EnabledCommodities))
	for _, c := range p.EnabledCommodities {
		commodities = append(commodities, string(c))
	}

	_, err := r.db.Exec(`
		INSERT INTO business_preferences
		(business_id, risk_tolerance, enabled_commodities, enabled_instruments,
		 target_margin, min_above_break_even, pre_harvest_target, max_single_sale, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(business_id) DO UPDATE SET
			risk_tolerance = excluded.risk_tolerance,
			enabled_commodities = excluded.enabled_commodities,
			enabled_instruments = excluded.enabled_instruments,
			target_margin = excluded.target_margin,
			min_above_break_even = excluded.min_above_break_even,
			pre_harvest_target = excluded.pre_harvest_target,
			max_single_sale = excluded.max_single_sale,
			updated_at = excluded.updated_at
	`, p.BusinessID, string(p.RiskTolerance), strings.Join(commodities, ","),
		strings.Join(p.EnabledInstruments, ","), p.TargetMargin, p.MinAboveBreakEven,
		p.PreHarvestTarget, p.MaxSingleSale, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert preferences for %s: %w", p.BusinessID, err)
	}
	return nil
}

// AllBusinessIDs returns every business with a stored preference row. The
// signal generation job iterates these.
func (r *Repository) AllBusinessIDs() ([]string, error) {
	rows, err := r.db.Query(`SELECT business_id FROM business_preferences`)
	if err != nil {
		return nil, fmt.Errorf("failed to query business ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan business id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Personalized returns the personalized threshold for a business, commodity
// and instrument when one exists. The user with the highest confidence wins
// when several users trained thresholds.
func (r *Repository) Personalized(businessID string, commodity domain.Commodity, instrument string) (*PersonalizedThreshold, error) {
	var p PersonalizedThreshold
	var commodityStr string
	err := r.db.QueryRow(`
		SELECT business_id, user_id, commodity, instrument, threshold, confidence
		FROM personalized_thresholds
		WHERE business_id = ? AND commodity = ? AND instrument = ?
		ORDER BY confidence DESC LIMIT 1
	`, businessID, string(commodity), instrument).
		Scan(&p.BusinessID, &p.UserID, &commodityStr, &p.Instrument, &p.Threshold, &p.Confidence)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query personalized threshold: %w", err)
	}
	p.Commodity = commodity
	return &p, nil
}
