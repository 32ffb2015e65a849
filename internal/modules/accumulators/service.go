package accumulators

import (
	"context"
	"fmt"
	"time"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
)

// PriceSource supplies the official settlement price used by the sweep.
type PriceSource interface {
	SettlementPrice(ctx context.Context, commodity domain.Commodity, date time.Time) (float64, error)
}

// Service runs the daily accumulator sweep.
type Service struct {
	repo   *Repository
	prices PriceSource
	log    zerolog.Logger
}

// NewService creates the accumulator sweep service.
func NewService(repo *Repository, prices PriceSource, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		prices: prices,
		log:    log.With().Str("component", "accumulator_service").Logger(),
	}
}

// SweepSummary reports what one sweep did.
type SweepSummary struct {
	Processed  int
	Accrued    int
	KnockedOut int
	Skipped    int
}

// RunDaily advances every contract by one settlement day. Contracts are
// isolated from each other; a contract whose price cannot be fetched is
// skipped without touching its state so the next sweep can catch up.
// Reprocessing a date is safe: entries upsert on (contract, date) and the
// totals are rebuilt from the ledger.
func (s *Service) RunDaily(ctx context.Context, date time.Time) (SweepSummary, error) {
	contracts, err := s.repo.All()
	if err != nil {
		return SweepSummary{}, fmt.Errorf("failed to load contracts: %w", err)
	}

	var summary SweepSummary
	for _, c := range contracts {
		outcome, err := s.processContract(ctx, c, date)
		if err != nil {
			s.log.Warn().Err(err).
				Str("contract_id", c.ID).
				Str("date", date.Format(DateLayout)).
				Msg("Contract skipped this sweep")
			summary.Skipped++
			continue
		}
		summary.Processed++
		switch outcome {
		case OutcomeAccrued:
			summary.Accrued++
		case OutcomeKnockedOut:
			summary.KnockedOut++
		}
	}

	s.log.Info().
		Str("date", date.Format(DateLayout)).
		Int("processed", summary.Processed).
		Int("accrued", summary.Accrued).
		Int("knocked_out", summary.KnockedOut).
		Int("skipped", summary.Skipped).
		Msg("Accumulator sweep complete")
	return summary, nil
}

func (s *Service) processContract(ctx context.Context, c *Contract, date time.Time) (StepOutcome, error) {
	st, err := s.repo.GetState(c.ID)
	if err != nil {
		return "", err
	}
	if st.KnockedOut {
		return OutcomeNoAccrual, nil
	}
	if date.Before(c.StartDate) || date.After(c.EndDate) {
		return OutcomeNoAccrual, nil
	}

	price, err := s.prices.SettlementPrice(ctx, c.Commodity, date)
	if err != nil {
		// No price, no decision. last_processed stays put so the gap is
		// visible and a later sweep can rerun the date.
		return "", fmt.Errorf("settlement price unavailable: %w", err)
	}

	result := Step(c, st.BushelsMarketed, st.KnockedOut, price, date)

	knockedOut := st.KnockedOut
	knockoutDate := st.KnockoutDate
	if result.Outcome == OutcomeKnockedOut {
		knockedOut = true
		d := date
		knockoutDate = &d
		s.log.Info().
			Str("contract_id", c.ID).
			Float64("price", price).
			Float64("knockout", c.KnockoutPrice).
			Str("date", date.Format(DateLayout)).
			Msg("Accumulator knocked out")
	}

	if result.Outcome == OutcomeAccrued {
		entry := &DailyEntry{
			ContractID:  c.ID,
			EntryDate:   date,
			Bushels:     result.Bushels,
			MarketPrice: price,
			Doubled:     result.Doubled,
		}
		if err := s.repo.UpsertEntry(entry); err != nil {
			return "", err
		}
	}

	processed := date
	if _, err := s.repo.RecomputeState(c.ID, knockedOut, knockoutDate, &processed); err != nil {
		return "", err
	}
	return result.Outcome, nil
}
