package usecase

import (
	"time"

	"github.com/mdblp/health-tracker/schema"
)

// Blood sugar range limits in mg/dL
const (
	veryLowLimit  = 54
	lowLimit      = 70
	highLimit     = 180
	veryHighLimit = 250
)

type (
	SugarCounts struct {
		VeryLow  int `json:"veryLow"`
		Low      int `json:"low"`
		Target   int `json:"target"`
		High     int `json:"high"`
		VeryHigh int `json:"veryHigh"`
	}
	SugarRates struct {
		VeryLow  float32 `json:"veryLow"`
		Low      float32 `json:"low"`
		Target   float32 `json:"target"`
		High     float32 `json:"high"`
		VeryHigh float32 `json:"veryHigh"`
	}
	// SugarRanges summarizes where the blood sugar readings fall
	SugarRanges struct {
		Total    int         `json:"total"`
		Count    SugarCounts `json:"count"`
		Rate     SugarRates  `json:"rate"`
		LastTime *time.Time  `json:"lastTime,omitempty"`
	}
)

// TimeInRange counts the readings per range, nil when there are none
func TimeInRange(sugars []schema.BloodSugar) *SugarRanges {
	if len(sugars) == 0 {
		return nil
	}
	ranges := &SugarRanges{Total: len(sugars)}
	for _, s := range sugars {
		switch {
		case s.Level < veryLowLimit:
			ranges.Count.VeryLow++
		case s.Level < lowLimit:
			ranges.Count.Low++
		case s.Level <= highLimit:
			ranges.Count.Target++
		case s.Level <= veryHighLimit:
			ranges.Count.High++
		default:
			ranges.Count.VeryHigh++
		}
		if s.Timestamp != nil && (ranges.LastTime == nil || s.Timestamp.After(*ranges.LastTime)) {
			ts := *s.Timestamp
			ranges.LastTime = &ts
		}
	}
	total := float32(ranges.Total)
	ranges.Rate = SugarRates{
		VeryLow:  float32(ranges.Count.VeryLow) / total,
		Low:      float32(ranges.Count.Low) / total,
		Target:   float32(ranges.Count.Target) / total,
		High:     float32(ranges.Count.High) / total,
		VeryHigh: float32(ranges.Count.VeryHigh) / total,
	}
	return ranges
}
