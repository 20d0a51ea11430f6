package models

// MomentumScore is the per-instrument output of the momentum ranker. Returns
// are fractions (0.05 == +5%). Rank is filled in by RankUniverse, 1 = strongest.
type MomentumScore struct {
	Symbol      string
	Score       float64 // combined score on the 0-100 scale
	Return1M    float64
	Return3M    float64
	Return6M    float64
	Return12M   float64
	VolAdjusted float64
	Rank        int
}
