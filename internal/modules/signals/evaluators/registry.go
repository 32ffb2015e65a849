package evaluators

import (
	"github.com/rs/zerolog"
)

// Registry holds the active evaluators in a stable order so a generation
// pass produces deterministic output.
type Registry struct {
	evaluators []Evaluator
}

// NewRegistry builds the default evaluator set.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		evaluators: []Evaluator{
			NewCashSaleEvaluator(log),
			NewBasisContractEvaluator(log),
			NewHTAEvaluator(log),
			NewAccumulatorInquiryEvaluator(log),
			NewCallOptionEvaluator(log),
			NewTradePolicyEvaluator(log),
			NewBreakingNewsEvaluator(log),
		},
	}
}

// All returns every registered evaluator in registration order.
func (r *Registry) All() []Evaluator {
	return r.evaluators
}

// Register appends an evaluator. Used by tests to inject fakes.
func (r *Registry) Register(e Evaluator) {
	r.evaluators = append(r.evaluators, e)
}
