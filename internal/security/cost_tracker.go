package security

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

const tokensPerMillion = 1_000_000.0

// Prices are USD per million tokens.
const (
	DefaultInputPricePerMTok  = 3.0
	DefaultOutputPricePerMTok = 15.0
)

// CostTracker accumulates model token usage and estimates its cost. A nil
// tracker ignores every record.
type CostTracker struct {
	inputPrice  float64
	outputPrice float64

	mu           sync.Mutex
	inputTokens  int64
	outputTokens int64
}

func NewCostTracker(inputPricePerMTok, outputPricePerMTok float64) *CostTracker {
	return &CostTracker{inputPrice: inputPricePerMTok, outputPrice: outputPricePerMTok}
}

// Cost returns the USD estimate for the given token counts.
func (ct *CostTracker) Cost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/tokensPerMillion*ct.inputPrice +
		float64(outputTokens)/tokensPerMillion*ct.outputPrice
}

// Record adds one run's usage to the totals and logs its cost.
func (ct *CostTracker) Record(runID string, inputTokens, outputTokens int64) {
	if ct == nil {
		return
	}
	ct.mu.Lock()
	ct.inputTokens += inputTokens
	ct.outputTokens += outputTokens
	totalIn, totalOut := ct.inputTokens, ct.outputTokens
	ct.mu.Unlock()

	costUSD := ct.Cost(inputTokens, outputTokens)
	log.Info().
		Str("event", "run_cost").
		Str("run_id", runID).
		Int64("input_tokens", inputTokens).
		Int64("output_tokens", outputTokens).
		Float64("cost_usd", costUSD).
		Float64("session_cost_usd", ct.Cost(totalIn, totalOut)).
		Msgf("Run cost: %d in / %d out tokens ($%.4f)", inputTokens, outputTokens, costUSD)
}

// Totals returns the accumulated token counts.
func (ct *CostTracker) Totals() (inputTokens, outputTokens int64) {
	if ct == nil {
		return 0, 0
	}
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.inputTokens, ct.outputTokens
}

func hashStr(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
