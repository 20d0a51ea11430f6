package models

import (
	"math"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Direction of a trading signal.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionClose Direction = "CLOSE"
	DirectionHold  Direction = "HOLD"
)

// SizeUnit says how Size.Value is denominated.
type SizeUnit string

const (
	SizePercent SizeUnit = "percent" // percent of available capital
	SizeUnits   SizeUnit = "units"   // absolute instrument units
)

// Size is a suggested position size.
type Size struct {
	Value float64
	Unit  SizeUnit
}

// ErrInvalidSignal is returned by NewSignal for any validation failure.
var ErrInvalidSignal = errors.New("invalid signal")

// Signal is one trading instruction candidate. Immutable after construction;
// always build it through NewSignal so the invariants hold.
type Signal struct {
	ID               string
	Strategy         string
	Symbol           string
	Direction        Direction
	Confidence       float64
	Entry            *float64
	StopLoss         *float64
	TakeProfit       *float64
	Size             Size
	Regime           Regime
	RegimeConfidence float64
	Timeframe        string
	Rationale        string
	Indicators       map[string]float64
	Metadata         map[string]string
	CreatedAt        time.Time
	ExpiresAt        *time.Time
}

// SignalParams carries everything NewSignal needs; the ID and CreatedAt are
// assigned by the constructor.
type SignalParams struct {
	Strategy         string
	Symbol           string
	Direction        Direction
	Confidence       float64
	Entry            *float64
	StopLoss         *float64
	TakeProfit       *float64
	Size             Size
	Regime           Regime
	RegimeConfidence float64
	Timeframe        string
	Rationale        string
	Indicators       map[string]float64
	Metadata         map[string]string
	ExpiresAt        *time.Time
}

// NewSignal validates and builds a Signal.
// LONG/SHORT require entry and stop-loss; confidences must sit in [0,1].
func NewSignal(p SignalParams) (Signal, error) {
	if p.Strategy == "" || p.Symbol == "" {
		return Signal{}, errors.Wrap(ErrInvalidSignal, "strategy and symbol are required")
	}
	switch p.Direction {
	case DirectionLong, DirectionShort, DirectionClose, DirectionHold:
	default:
		return Signal{}, errors.Wrapf(ErrInvalidSignal, "unknown direction %q", p.Direction)
	}
	if p.Confidence < 0 || p.Confidence > 1 || math.IsNaN(p.Confidence) {
		return Signal{}, errors.Wrapf(ErrInvalidSignal, "confidence %v outside [0,1]", p.Confidence)
	}
	if p.RegimeConfidence < 0 || p.RegimeConfidence > 1 || math.IsNaN(p.RegimeConfidence) {
		return Signal{}, errors.Wrapf(ErrInvalidSignal, "regime confidence %v outside [0,1]", p.RegimeConfidence)
	}
	if p.Direction == DirectionLong || p.Direction == DirectionShort {
		if p.Entry == nil {
			return Signal{}, errors.Wrapf(ErrInvalidSignal, "%s signal for %s missing entry price", p.Direction, p.Symbol)
		}
		if p.StopLoss == nil {
			return Signal{}, errors.Wrapf(ErrInvalidSignal, "%s signal for %s missing stop-loss", p.Direction, p.Symbol)
		}
	}

	return Signal{
		ID:               uuid.NewString(),
		Strategy:         p.Strategy,
		Symbol:           p.Symbol,
		Direction:        p.Direction,
		Confidence:       p.Confidence,
		Entry:            p.Entry,
		StopLoss:         p.StopLoss,
		TakeProfit:       p.TakeProfit,
		Size:             p.Size,
		Regime:           p.Regime,
		RegimeConfidence: p.RegimeConfidence,
		Timeframe:        p.Timeframe,
		Rationale:        p.Rationale,
		Indicators:       p.Indicators,
		Metadata:         p.Metadata,
		CreatedAt:        time.Now().UTC(),
		ExpiresAt:        p.ExpiresAt,
	}, nil
}

// RiskReward returns |tp-entry| / |entry-sl| and true, or 0 and false when any
// of the three prices is missing or the risk distance is zero. A false result
// means "no R/R filter applies", never "R/R is zero".
func (s Signal) RiskReward() (float64, bool) {
	if s.Entry == nil || s.StopLoss == nil || s.TakeProfit == nil {
		return 0, false
	}
	risk := math.Abs(*s.Entry - *s.StopLoss)
	if risk == 0 {
		return 0, false
	}
	return math.Abs(*s.TakeProfit-*s.Entry) / risk, true
}

// IsExpired reports whether the signal has passed its expiry; signals without
// an expiry never expire.
func (s Signal) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// signalPayload is the transport representation. Timestamps travel as
// RFC3339Nano so the round trip is exact.
type signalPayload struct {
	ID               string             `json:"id"`
	Strategy         string             `json:"strategy"`
	Symbol           string             `json:"symbol"`
	Direction        string             `json:"direction"`
	Confidence       float64            `json:"confidence"`
	Entry            *float64           `json:"entry,omitempty"`
	StopLoss         *float64           `json:"stop_loss,omitempty"`
	TakeProfit       *float64           `json:"take_profit,omitempty"`
	SizeValue        float64            `json:"size_value"`
	SizeUnit         string             `json:"size_unit"`
	Regime           string             `json:"regime"`
	RegimeConfidence float64            `json:"regime_confidence"`
	Timeframe        string             `json:"timeframe"`
	Rationale        string             `json:"rationale"`
	Indicators       map[string]float64 `json:"indicators,omitempty"`
	Metadata         map[string]string  `json:"metadata,omitempty"`
	CreatedAt        string             `json:"created_at"`
	ExpiresAt        *string            `json:"expires_at,omitempty"`
}

// Encode serializes the signal for the sink.
func (s Signal) Encode() ([]byte, error) {
	p := signalPayload{
		ID:               s.ID,
		Strategy:         s.Strategy,
		Symbol:           s.Symbol,
		Direction:        string(s.Direction),
		Confidence:       s.Confidence,
		Entry:            s.Entry,
		StopLoss:         s.StopLoss,
		TakeProfit:       s.TakeProfit,
		SizeValue:        s.Size.Value,
		SizeUnit:         string(s.Size.Unit),
		Regime:           string(s.Regime),
		RegimeConfidence: s.RegimeConfidence,
		Timeframe:        s.Timeframe,
		Rationale:        s.Rationale,
		Indicators:       s.Indicators,
		Metadata:         s.Metadata,
		CreatedAt:        s.CreatedAt.Format(time.RFC3339Nano),
	}
	if s.ExpiresAt != nil {
		exp := s.ExpiresAt.Format(time.RFC3339Nano)
		p.ExpiresAt = &exp
	}
	return sonic.Marshal(p)
}

// DecodeSignal parses a transport representation produced by Encode.
func DecodeSignal(data []byte) (Signal, error) {
	var p signalPayload
	if err := sonic.Unmarshal(data, &p); err != nil {
		return Signal{}, errors.Wrap(err, "decode signal")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, p.CreatedAt)
	if err != nil {
		return Signal{}, errors.Wrap(err, "decode signal created_at")
	}
	s := Signal{
		ID:               p.ID,
		Strategy:         p.Strategy,
		Symbol:           p.Symbol,
		Direction:        Direction(p.Direction),
		Confidence:       p.Confidence,
		Entry:            p.Entry,
		StopLoss:         p.StopLoss,
		TakeProfit:       p.TakeProfit,
		Size:             Size{Value: p.SizeValue, Unit: SizeUnit(p.SizeUnit)},
		Regime:           Regime(p.Regime),
		RegimeConfidence: p.RegimeConfidence,
		Timeframe:        p.Timeframe,
		Rationale:        p.Rationale,
		Indicators:       p.Indicators,
		Metadata:         p.Metadata,
		CreatedAt:        createdAt,
	}
	if p.ExpiresAt != nil {
		exp, err := time.Parse(time.RFC3339Nano, *p.ExpiresAt)
		if err != nil {
			return Signal{}, errors.Wrap(err, "decode signal expires_at")
		}
		s.ExpiresAt = &exp
	}
	return s, nil
}

// Ptr is a convenience for the optional price fields.
func Ptr(v float64) *float64 { return &v }
