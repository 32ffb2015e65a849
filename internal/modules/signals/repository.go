// Package signals owns the marketing signal lifecycle: creation with
// deduplication, status transitions and expiry, backed by signals.db.
package signals

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
)

// ErrTerminalSignal is returned when a status transition targets a signal
// already in a terminal state.
var ErrTerminalSignal = fmt.Errorf("signal is in a terminal state")

// ErrSignalNotFound is returned when no signal matches the given uuid.
var ErrSignalNotFound = fmt.Errorf("signal not found")

// dedupeWindow is how far back an ACTIVE signal for the same
// business/instrument/commodity suppresses or absorbs a new draft.
const dedupeWindow = 24 * time.Hour

// Repository handles marketing signal rows in signals.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new signals repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "signals").Logger(),
	}
}

// CreateOrUpdate applies the deduplication rule to a draft. An ACTIVE
// signal for the same business, instrument, commodity and crop year created
// within the window absorbs the draft: identical strength refreshes the
// price, changed strength rewrites strength, price and rationale in place.
// Otherwise a new signal row is inserted. Returns the surviving signal.
func (r *Repository) CreateOrUpdate(draft *domain.SignalDraft) (*domain.MarketingSignal, error) {
	existing, err := r.findRecentActive(draft)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if existing != nil {
		return r.absorb(existing, draft, now)
	}

	contextJSON, err := draft.EncodeContext()
	if err != nil {
		return nil, err
	}

	sig := &domain.MarketingSignal{
		UUID:               uuid.New().String(),
		BusinessID:         draft.BusinessID,
		EntityID:           draft.EntityID,
		Instrument:         draft.Instrument,
		Commodity:          draft.Commodity,
		CropYear:           draft.CropYear,
		IsNewCrop:          draft.IsNewCrop,
		Strength:           draft.Strength,
		Status:             domain.StatusActive,
		CurrentPrice:       draft.CurrentPrice,
		TargetPrice:        draft.TargetPrice,
		BreakEven:          draft.BreakEven,
		Title:              draft.Title,
		Summary:            draft.Summary,
		Rationale:          draft.Rationale,
		RecommendedBushels: draft.RecommendedBushels,
		ContextType:        draft.ContextType,
		Context:            contextJSON,
		ExpiresAt:          now.Add(draft.TTL),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	_, err = r.db.Exec(`
		INSERT INTO marketing_signals
		(uuid, business_id, entity_id, instrument, commodity, crop_year, is_new_crop,
		 strength, status, current_price, target_price, break_even,
		 title, summary, rationale, recommended_bushels, context_type, context,
		 expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sig.UUID, sig.BusinessID, sig.EntityID, string(sig.Instrument), string(sig.Commodity),
		sig.CropYear, boolToInt(sig.IsNewCrop), string(sig.Strength), string(sig.Status),
		sig.CurrentPrice, sig.TargetPrice, sig.BreakEven,
		sig.Title, sig.Summary, sig.Rationale, sig.RecommendedBushels,
		string(sig.ContextType), sig.Context,
		sig.ExpiresAt.Unix(), sig.CreatedAt.Unix(), sig.UpdatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to insert signal: %w", err)
	}

	r.log.Info().
		Str("uuid", sig.UUID).
		Str("business_id", sig.BusinessID).
		Str("instrument", string(sig.Instrument)).
		Str("commodity", string(sig.Commodity)).
		Str("strength", string(sig.Strength)).
		Msg("Signal created")
	return sig, nil
}

// absorb folds a draft into a recent ACTIVE signal instead of inserting a
// duplicate row.
func (r *Repository) absorb(existing *domain.MarketingSignal, draft *domain.SignalDraft, now time.Time) (*domain.MarketingSignal, error) {
	if existing.Strength == draft.Strength {
		// Same read of the market: refresh the price quietly
		_, err := r.db.Exec(`
			UPDATE marketing_signals SET current_price = ?, updated_at = ? WHERE uuid = ?
		`, draft.CurrentPrice, now.Unix(), existing.UUID)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh signal %s: %w", existing.UUID, err)
		}
		existing.CurrentPrice = draft.CurrentPrice
		existing.UpdatedAt = now
		return existing, nil
	}

	contextJSON, err := draft.EncodeContext()
	if err != nil {
		return nil, err
	}

	// Strength changed: rewrite the recommendation in place so the user
	// sees one evolving signal, not a trail of near-duplicates
	_, err = r.db.Exec(`
		UPDATE marketing_signals SET
			strength = ?, current_price = ?, target_price = ?,
			title = ?, summary = ?, rationale = ?, recommended_bushels = ?,
			context_type = ?, context = ?, expires_at = ?, updated_at = ?
		WHERE uuid = ?
	`, string(draft.Strength), draft.CurrentPrice, draft.TargetPrice,
		draft.Title, draft.Summary, draft.Rationale, draft.RecommendedBushels,
		string(draft.ContextType), contextJSON,
		now.Add(draft.TTL).Unix(), now.Unix(), existing.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to update signal %s: %w", existing.UUID, err)
	}

	r.log.Info().
		Str("uuid", existing.UUID).
		Str("old_strength", string(existing.Strength)).
		Str("new_strength", string(draft.Strength)).
		Msg("Signal strength updated in place")

	existing.Strength = draft.Strength
	existing.CurrentPrice = draft.CurrentPrice
	existing.TargetPrice = draft.TargetPrice
	existing.Title = draft.Title
	existing.Summary = draft.Summary
	existing.Rationale = draft.Rationale
	existing.RecommendedBushels = draft.RecommendedBushels
	existing.ContextType = draft.ContextType
	existing.Context = contextJSON
	existing.ExpiresAt = now.Add(draft.TTL)
	existing.UpdatedAt = now
	return existing, nil
}

func (r *Repository) findRecentActive(draft *domain.SignalDraft) (*domain.MarketingSignal, error) {
	cutoff := time.Now().Add(-dedupeWindow).Unix()
	row := r.db.QueryRow(signalSelect+`
		WHERE business_id = ? AND instrument = ? AND commodity = ? AND crop_year = ?
		  AND status = ? AND created_at >= ?
		ORDER BY created_at DESC LIMIT 1
	`, draft.BusinessID, string(draft.Instrument), string(draft.Commodity),
		draft.CropYear, string(domain.StatusActive), cutoff)

	sig, err := scanSignal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query recent signals: %w", err)
	}
	return sig, nil
}

// Get returns one signal by uuid.
func (r *Repository) Get(signalUUID string) (*domain.MarketingSignal, error) {
	row := r.db.QueryRow(signalSelect+` WHERE uuid = ?`, signalUUID)
	sig, err := scanSignal(row)
	if err == sql.ErrNoRows {
		return nil, ErrSignalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query signal %s: %w", signalUUID, err)
	}
	return sig, nil
}

// ActiveForBusiness returns the ACTIVE signals for a business, newest first.
func (r *Repository) ActiveForBusiness(businessID string) ([]*domain.MarketingSignal, error) {
	rows, err := r.db.Query(signalSelect+`
		WHERE business_id = ? AND status = ?
		ORDER BY created_at DESC
	`, businessID, string(domain.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query active signals: %w", err)
	}
	defer rows.Close()

	var result []*domain.MarketingSignal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		result = append(result, sig)
	}
	return result, rows.Err()
}

// MarkViewed stamps the first view on a signal. Later views keep the
// original timestamp.
func (r *Repository) MarkViewed(signalUUID string) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		UPDATE marketing_signals SET viewed_at = COALESCE(viewed_at, ?), updated_at = ?
		WHERE uuid = ?
	`, now, now, signalUUID)
	if err != nil {
		return fmt.Errorf("failed to mark signal %s viewed: %w", signalUUID, err)
	}
	return nil
}

// MarkActioned transitions an ACTIVE signal to TRIGGERED.
func (r *Repository) MarkActioned(signalUUID string) error {
	return r.transition(signalUUID, domain.StatusTriggered)
}

// Dismiss transitions an ACTIVE signal to DISMISSED.
func (r *Repository) Dismiss(signalUUID string) error {
	return r.transition(signalUUID, domain.StatusDismissed)
}

func (r *Repository) transition(signalUUID string, to domain.SignalStatus) error {
	sig, err := r.Get(signalUUID)
	if err != nil {
		return err
	}
	if sig.Status.Terminal() {
		return fmt.Errorf("cannot move signal %s from %s to %s: %w",
			signalUUID, sig.Status, to, ErrTerminalSignal)
	}

	now := time.Now().Unix()
	stampColumn := "actioned_at"
	if to == domain.StatusDismissed {
		stampColumn = "dismissed_at"
	}

	_, err = r.db.Exec(fmt.Sprintf(`
		UPDATE marketing_signals SET status = ?, %s = ?, updated_at = ? WHERE uuid = ?
	`, stampColumn), string(to), now, now, signalUUID)
	if err != nil {
		return fmt.Errorf("failed to transition signal %s: %w", signalUUID, err)
	}

	r.log.Info().
		Str("uuid", signalUUID).
		Str("status", string(to)).
		Msg("Signal status changed")
	return nil
}

// ExpireDue moves every ACTIVE signal past its expiry to EXPIRED and
// returns how many rows changed.
func (r *Repository) ExpireDue() (int64, error) {
	now := time.Now().Unix()
	res, err := r.db.Exec(`
		UPDATE marketing_signals SET status = ?, updated_at = ?
		WHERE status = ? AND expires_at <= ?
	`, string(domain.StatusExpired), now, string(domain.StatusActive), now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire signals: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired signals: %w", err)
	}
	if count > 0 {
		r.log.Info().Int64("count", count).Msg("Signals expired")
	}
	return count, nil
}

const signalSelect = `
	SELECT uuid, business_id, entity_id, instrument, commodity, crop_year, is_new_crop,
	       strength, status, current_price, target_price, break_even,
	       title, summary, rationale, recommended_bushels, context_type, context,
	       expires_at, viewed_at, actioned_at, dismissed_at, created_at, updated_at
	FROM marketing_signals
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSignal(row rowScanner) (*domain.MarketingSignal, error) {
	var (
		sig                                 domain.MarketingSignal
		entityID                            sql.NullString
		instrument, commodity               string
		strength, status, contextType       string
		isNewCrop                           int
		recommendedBushels                  sql.NullFloat64
		expiresAt, createdAt, updatedAt     int64
		viewedAt, actionedAt, dismissedAt   sql.NullInt64
	)

	err := row.Scan(&sig.UUID, &sig.BusinessID, &entityID, &instrument, &commodity,
		&sig.CropYear, &isNewCrop, &strength, &status,
		&sig.CurrentPrice, &sig.TargetPrice, &sig.BreakEven,
		&sig.Title, &sig.Summary, &sig.Rationale, &recommendedBushels,
		&contextType, &sig.Context,
		&expiresAt, &viewedAt, &actionedAt, &dismissedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	sig.EntityID = entityID.String
	sig.Instrument = domain.InstrumentType(instrument)
	sig.Commodity = domain.Commodity(commodity)
	sig.IsNewCrop = isNewCrop != 0
	sig.Strength = domain.SignalStrength(strength)
	sig.Status = domain.SignalStatus(status)
	sig.ContextType = domain.ContextType(contextType)
	if recommendedBushels.Valid {
		sig.RecommendedBushels = &recommendedBushels.Float64
	}
	sig.ExpiresAt = time.Unix(expiresAt, 0)
	sig.CreatedAt = time.Unix(createdAt, 0)
	sig.UpdatedAt = time.Unix(updatedAt, 0)
	if viewedAt.Valid {
		t := time.Unix(viewedAt.Int64, 0)
		sig.ViewedAt = &t
	}
	if actionedAt.Valid {
		t := time.Unix(actionedAt.Int64, 0)
		sig.ActionedAt = &t
	}
	if dismissedAt.Valid {
		t := time.Unix(dismissedAt.Int64, 0)
		sig.DismissedAt = &t
	}
	return &sig, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
