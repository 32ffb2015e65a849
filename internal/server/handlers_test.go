package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grainflow/grainflow/internal/database"
	"github.com/grainflow/grainflow/internal/domain"
	"github.com/grainflow/grainflow/internal/modules/accumulators"
	"github.com/grainflow/grainflow/internal/modules/signals"
)

type fakeSignalStore struct {
	active   []*domain.MarketingSignal
	viewed   []string
	actioned []string
	err      error
}

func (f *fakeSignalStore) ActiveForBusiness(string) ([]*domain.MarketingSignal, error) {
	return f.active, nil
}

func (f *fakeSignalStore) MarkViewed(uuid string) error {
	f.viewed = append(f.viewed, uuid)
	return nil
}

func (f *fakeSignalStore) MarkActioned(uuid string) error {
	f.actioned = append(f.actioned, uuid)
	return f.err
}

func (f *fakeSignalStore) Dismiss(string) error {
	return f.err
}

type fakeAccumulatorStore struct {
	contracts []*accumulators.Contract
	states    map[string]*accumulators.State
}

func (f *fakeAccumulatorStore) ForBusiness(string) ([]*accumulators.Contract, map[string]*accumulators.State, error) {
	return f.contracts, f.states, nil
}

type fakeJobRunner struct {
	ran []string
}

func (f *fakeJobRunner) RunNow(name string) error {
	if name == "unknown" {
		return fmt.Errorf("unknown job %q", name)
	}
	f.ran = append(f.ran, name)
	return nil
}

func (f *fakeJobRunner) JobNames() []string { return []string{"generate_signals", "backup"} }

func testServerWith(sigs SignalStore, accs AccumulatorStore, jobs JobRunner, dbs []*database.DB) *Server {
	return New(Config{
		Log:          zerolog.Nop(),
		Port:         0,
		Databases:    dbs,
		Signals:      sigs,
		Accumulators: accs,
		Jobs:         jobs,
	})
}

func activeSignal(uuid string) *domain.MarketingSignal {
	return &domain.MarketingSignal{
		UUID:         uuid,
		BusinessID:   "biz-1",
		Instrument:   domain.InstrumentCashSale,
		Commodity:    domain.CommodityCorn,
		CropYear:     2026,
		IsNewCrop:    true,
		Strength:     domain.StrengthStrongBuy,
		Status:       domain.StatusActive,
		CurrentPrice: 5.75,
		TargetPrice:  5.75,
		BreakEven:    5.00,
		Title:        "Strong corn sale opportunity",
		ContextType:  domain.ContextCashSale,
		Context:      `{"cash_price":5.75}`,
		ExpiresAt:    time.Now().Add(48 * time.Hour),
	}
}

func TestHandleHealth_AllDatabasesOK(t *testing.T) {
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "signals.db"),
		Profile: database.ProfileLedger,
		Name:    "signals",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := testServerWith(&fakeSignalStore{}, &fakeAccumulatorStore{}, &fakeJobRunner{}, []*database.DB{db})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	databases := body["databases"].(map[string]interface{})
	assert.Equal(t, "ok", databases["signals"])
}

func TestHandleListSignals_ReturnsAndMarksViewed(t *testing.T) {
	store := &fakeSignalStore{active: []*domain.MarketingSignal{activeSignal("sig-1"), activeSignal("sig-2")}}
	s := testServerWith(store, &fakeAccumulatorStore{}, &fakeJobRunner{}, nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/signals?business_id=biz-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Signals []signalResponse `json:"signals"`
		Count   int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "CASH_SALE", body.Signals[0].Instrument)
	assert.Equal(t, "STRONG_BUY", body.Signals[0].Strength)
	assert.Equal(t, []string{"sig-1", "sig-2"}, store.viewed)
}

func TestHandleListSignals_RequiresBusinessID(t *testing.T) {
	s := testServerWith(&fakeSignalStore{}, &fakeAccumulatorStore{}, &fakeJobRunner{}, nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/signals", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSignalActed(t *testing.T) {
	store := &fakeSignalStore{}
	s := testServerWith(store, &fakeAccumulatorStore{}, &fakeJobRunner{}, nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/signals/sig-1/acted", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sig-1"}, store.actioned)
}

func TestHandleDismiss_NotFoundAndConflict(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "missing signal", err: signals.ErrSignalNotFound, wantStatus: http.StatusNotFound},
		{name: "already resolved", err: signals.ErrTerminalSignal, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServerWith(&fakeSignalStore{err: tt.err}, &fakeAccumulatorStore{}, &fakeJobRunner{}, nil)

			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/signals/sig-1/dismiss", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandleListAccumulators(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	lastProcessed := start.AddDate(0, 0, 3)
	store := &fakeAccumulatorStore{
		contracts: []*accumulators.Contract{{
			ID:            "acc-1",
			BusinessID:    "biz-1",
			Commodity:     domain.CommodityCorn,
			Variant:       accumulators.VariantDaily,
			BasePrice:     4.50,
			KnockoutPrice: 3.80,
			DoubleUpPrice: 4.10,
			DailyBushels:  1000,
			TotalBushels:  10000,
			StartDate:     start,
			EndDate:       start.AddDate(0, 0, 11),
		}},
		states: map[string]*accumulators.State{
			"acc-1": {
				ContractID:      "acc-1",
				BushelsMarketed: 4000,
				LastProcessed:   &lastProcessed,
			},
		},
	}
	s := testServerWith(&fakeSignalStore{}, store, &fakeJobRunner{}, nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accumulators?business_id=biz-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Contracts []contractResponse `json:"contracts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Contracts, 1)
	assert.Equal(t, "DAILY", body.Contracts[0].Variant)
	assert.InDelta(t, 4000, body.Contracts[0].MarketedBushels, 1e-9)
	require.NotNil(t, body.Contracts[0].LastProcessedDate)
	assert.Equal(t, "2026-03-05", *body.Contracts[0].LastProcessedDate)
}

func TestHandleRunJob(t *testing.T) {
	jobs := &fakeJobRunner{}
	s := testServerWith(&fakeSignalStore{}, &fakeAccumulatorStore{}, jobs, nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/backup/run", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"backup"}, jobs.ran)

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/unknown/run", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
