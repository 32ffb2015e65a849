package accumulators

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/grainflow/grainflow/internal/database"
	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
)

// ErrContractNotFound is returned when no contract matches the given id.
var ErrContractNotFound = fmt.Errorf("accumulator contract not found")

// Repository handles accumulator contracts, state and the accrual ledger
// in contracts.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new accumulators repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "accumulators").Logger(),
	}
}

// Create validates and stores a contract with a zeroed state row.
func (r *Repository) Create(c *Contract) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid accumulator contract: %w", err)
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO accumulator_contracts
			(id, business_id, commodity, variant, base_price, knockout_price, double_up_price,
			 daily_bushels, weekly_bushels, total_bushels, settlement_weekday,
			 start_date, end_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.BusinessID, string(c.Commodity), string(c.Variant),
			c.BasePrice, c.KnockoutPrice, c.DoubleUpPrice,
			c.DailyBushels, c.WeeklyBushels, c.TotalBushels, int(c.SettlementWeekday),
			c.StartDate.Format(DateLayout), c.EndDate.Format(DateLayout), c.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert contract: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO accumulator_state (contract_id, updated_at) VALUES (?, ?)
		`, c.ID, c.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to initialize contract state: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().
		Str("contract_id", c.ID).
		Str("business_id", c.BusinessID).
		Str("variant", string(c.Variant)).
		Float64("total_bushels", c.TotalBushels).
		Msg("Accumulator contract created")
	return nil
}

const contractSelect = `
	SELECT id, business_id, commodity, variant, base_price, knockout_price, double_up_price,
	       daily_bushels, weekly_bushels, total_bushels, settlement_weekday,
	       start_date, end_date, created_at
	FROM accumulator_contracts
`

// Get returns one contract by id.
func (r *Repository) Get(id string) (*Contract, error) {
	c, err := scanContract(r.db.QueryRow(contractSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrContractNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query contract %s: %w", id, err)
	}
	return c, nil
}

// All returns every contract, oldest first. The sweep iterates these and
// relies on the state row to skip finished ones.
func (r *Repository) All() ([]*Contract, error) {
	rows, err := r.db.Query(contractSelect + ` ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// ForBusiness returns a business's contracts with their current state.
func (r *Repository) ForBusiness(businessID string) ([]*Contract, map[string]*State, error) {
	rows, err := r.db.Query(contractSelect+` WHERE business_id = ? ORDER BY created_at`, businessID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	states := make(map[string]*State, len(contracts))
	for _, c := range contracts {
		st, err := r.GetState(c.ID)
		if err != nil {
			return nil, nil, err
		}
		states[c.ID] = st
	}
	return contracts, states, nil
}

// GetState returns the derived state row for a contract.
func (r *Repository) GetState(contractID string) (*State, error) {
	var (
		st                          State
		knockedOut, doubled         int
		knockoutDate, lastProcessed sql.NullString
		updatedAt                   int64
	)
	err := r.db.QueryRow(`
		SELECT contract_id, bushels_marketed, bushels_doubled, currently_doubled,
		       knocked_out, knockout_date, last_processed, updated_at
		FROM accumulator_state WHERE contract_id = ?
	`, contractID).Scan(&st.ContractID, &st.BushelsMarketed, &st.BushelsDoubled,
		&doubled, &knockedOut, &knockoutDate, &lastProcessed, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrContractNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query state for %s: %w", contractID, err)
	}

	st.CurrentlyDoubled = doubled != 0
	st.KnockedOut = knockedOut != 0
	st.UpdatedAt = time.Unix(updatedAt, 0)
	if knockoutDate.Valid {
		if t, err := time.Parse(DateLayout, knockoutDate.String); err == nil {
			st.KnockoutDate = &t
		}
	}
	if lastProcessed.Valid {
		if t, err := time.Parse(DateLayout, lastProcessed.String); err == nil {
			st.LastProcessed = &t
		}
	}
	return &st, nil
}

// UpsertEntry writes one accrual ledger row. Reprocessing the same
// contract and date rewrites the row instead of duplicating it.
func (r *Repository) UpsertEntry(e *DailyEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO accumulator_daily_entries
		(id, contract_id, entry_date, bushels, market_price, doubled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(contract_id, entry_date) DO UPDATE SET
			bushels = excluded.bushels,
			market_price = excluded.market_price,
			doubled = excluded.doubled
	`, e.ID, e.ContractID, e.EntryDate.Format(DateLayout),
		e.Bushels, e.MarketPrice, boolToInt(e.Doubled), e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert entry for %s on %s: %w",
			e.ContractID, e.EntryDate.Format(DateLayout), err)
	}
	return nil
}

// Entries returns a contract's ledger in date order.
func (r *Repository) Entries(contractID string) ([]DailyEntry, error) {
	rows, err := r.db.Query(`
		SELECT id, contract_id, entry_date, bushels, market_price, doubled, created_at
		FROM accumulator_daily_entries
		WHERE contract_id = ? ORDER BY entry_date
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for %s: %w", contractID, err)
	}
	defer rows.Close()

	var entries []DailyEntry
	for rows.Next() {
		var (
			e         DailyEntry
			dateStr   string
			doubled   int
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.ContractID, &dateStr, &e.Bushels, &e.MarketPrice, &doubled, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.EntryDate, _ = time.Parse(DateLayout, dateStr)
		e.Doubled = doubled != 0
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecomputeState rebuilds the derived totals from the entry ledger and
// stores them. knockout and lastProcessed are owned by the sweep and passed
// through.
func (r *Repository) RecomputeState(contractID string, knockedOut bool, knockoutDate, lastProcessed *time.Time) (*State, error) {
	entries, err := r.Entries(contractID)
	if err != nil {
		return nil, err
	}

	st := &State{
		ContractID: contractID,
		KnockedOut: knockedOut,
		UpdatedAt:  time.Now(),
	}
	for _, e := range entries {
		st.BushelsMarketed += e.Bushels
		if e.Doubled {
			st.BushelsDoubled += e.Bushels
			st.CurrentlyDoubled = true
		} else {
			st.CurrentlyDoubled = false
		}
	}
	st.KnockoutDate = knockoutDate
	st.LastProcessed = lastProcessed

	var knockoutStr, processedStr interface{}
	if knockoutDate != nil {
		knockoutStr = knockoutDate.Format(DateLayout)
	}
	if lastProcessed != nil {
		processedStr = lastProcessed.Format(DateLayout)
	}

	_, err = r.db.Exec(`
		UPDATE accumulator_state SET
			bushels_marketed = ?, bushels_doubled = ?, currently_doubled = ?,
			knocked_out = ?, knockout_date = ?, last_processed = ?, updated_at = ?
		WHERE contract_id = ?
	`, st.BushelsMarketed, st.BushelsDoubled, boolToInt(st.CurrentlyDoubled),
		boolToInt(st.KnockedOut), knockoutStr, processedStr, st.UpdatedAt.Unix(), contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to store state for %s: %w", contractID, err)
	}
	return st, nil
}

type contractScanner interface {
	Scan(dest ...interface{}) error
}

func scanContract(row contractScanner) (*Contract, error) {
	var (
		c                  Contract
		commodity, variant string
		weekday            int
		startStr, endStr   string
		createdAt          int64
	)
	err := row.Scan(&c.ID, &c.BusinessID, &commodity, &variant,
		&c.BasePrice, &c.KnockoutPrice, &c.DoubleUpPrice,
		&c.DailyBushels, &c.WeeklyBushels, &c.TotalBushels, &weekday,
		&startStr, &endStr, &createdAt)
	if err != nil {
		return nil, err
	}

	c.Commodity = domain.Commodity(commodity)
	c.Variant = Variant(variant)
	c.SettlementWeekday = time.Weekday(weekday)
	c.StartDate, _ = time.Parse(DateLayout, startStr)
	c.EndDate, _ = time.Parse(DateLayout, endStr)
	c.CreatedAt = time.Unix(createdAt, 0)
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
