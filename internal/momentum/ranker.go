package momentum

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"signal_engine/internal/models"
)

// MinObservations is roughly one year of daily closes.
const MinObservations = 252

// Lookback windows in observations: ~1, 3, 6 and 12 months.
var lookbacks = [4]int{21, 63, 126, 252}

// DefaultWeights weight the 1/3/6/12-month returns.
var DefaultWeights = [4]float64{0.40, 0.30, 0.20, 0.10}

// tanhScale controls how fast raw weighted returns saturate the 0-100 scale.
const tanhScale = 2.5

var ErrInsufficientData = errors.New("insufficient price history")

type Config struct {
	// Weights over the 1/3/6/12-month returns; must sum to 1.0.
	Weights [4]float64
	// FloorVolatility clamps volatility at 1.0 before the sqrt divide, so a
	// sub-unit volatility never inflates the adjusted score. Off by default to
	// match the raw transform; flip it per deployment.
	FloorVolatility bool
}

// Ranker computes momentum scores over daily close series.
type Ranker struct {
	weights  [4]float64
	floorVol bool
}

func NewRanker(cfg Config) (*Ranker, error) {
	w := cfg.Weights
	if w == ([4]float64{}) {
		w = DefaultWeights
	}
	sum := w[0] + w[1] + w[2] + w[3]
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, errors.Errorf("momentum weights must sum to 1.0, got %v", sum)
	}
	for _, v := range w {
		if v < 0 {
			return nil, errors.Errorf("momentum weights must be non-negative, got %v", v)
		}
	}
	return &Ranker{weights: w, floorVol: cfg.FloorVolatility}, nil
}

// Score computes the momentum score for one instrument. prices are daily
// closes oldest first, at least MinObservations of them. volatility is an
// annualized figure; pass 0 when unknown.
func (r *Ranker) Score(symbol string, prices []float64, volatility float64) (models.MomentumScore, error) {
	if len(prices) < MinObservations {
		return models.MomentumScore{}, errors.Wrapf(ErrInsufficientData,
			"%s: have %d observations, need %d", symbol, len(prices), MinObservations)
	}

	rets := [4]float64{}
	for i, lb := range lookbacks {
		rets[i] = lookbackReturn(prices, lb)
	}

	raw := 0.0
	for i, w := range r.weights {
		raw += w * rets[i]
	}

	// squeeze onto 0-100 centered at 50 so outsized returns saturate instead
	// of overflowing the scale
	score := 50 + 50*math.Tanh(raw*tanhScale)
	score = clamp(score, 0, 100)

	volAdj := score
	if volatility > 0 {
		v := volatility
		if r.floorVol && v < 1 {
			v = 1
		}
		volAdj = score / math.Sqrt(v)
	}

	return models.MomentumScore{
		Symbol:      symbol,
		Score:       score,
		Return1M:    rets[0],
		Return3M:    rets[1],
		Return6M:    rets[2],
		Return12M:   rets[3],
		VolAdjusted: volAdj,
	}, nil
}

// RankField selects which score column orders the universe.
type RankField int

const (
	ByVolAdjusted RankField = iota
	ByRawScore
)

// RankUniverse orders scores descending by the chosen field and assigns
// 1-based ranks. Ties break on symbol so the ordering is deterministic. The
// input is not modified.
func RankUniverse(scores []models.MomentumScore, field RankField) []models.MomentumScore {
	ranked := make([]models.MomentumScore, len(scores))
	copy(ranked, scores)

	key := func(s models.MomentumScore) float64 {
		if field == ByRawScore {
			return s.Score
		}
		return s.VolAdjusted
	}
	sort.Slice(ranked, func(i, j int) bool {
		ki, kj := key(ranked[i]), key(ranked[j])
		if ki != kj {
			return ki > kj
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// lookbackReturn is (now - then)/then over lb observations back, 0 when the
// series is too short or the base price is zero.
func lookbackReturn(prices []float64, lb int) float64 {
	if len(prices) < lb {
		return 0
	}
	base := prices[len(prices)-lb]
	if base == 0 {
		return 0
	}
	return (prices[len(prices)-1] - base) / base
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
