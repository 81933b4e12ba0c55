package protocol

import "math"

// SignalQuality grades the radio link between a sensor and the gateway.
type SignalQuality string

const (
	QualityUnknown   SignalQuality = "Unknown"
	QualityWeak      SignalQuality = "Weak"
	QualityFair      SignalQuality = "Fair"
	QualityGood      SignalQuality = "Good"
	QualityExcellent SignalQuality = "Excellent"
)

// GradeSignal applies the panel server signal quality matrix:
//
//	                LQI < 30   30 <= LQI < 60   LQI >= 60
//	PER > 30%         Weak         Weak           Fair
//	10% < PER <= 30%  Weak         Fair           Good
//	PER <= 10%        Fair         Good           Excellent
//
// NaN inputs grade as Unknown; callers pass ok=false for missing values.
func GradeSignal(lqi float64, lqiOK bool, per float64, perOK bool) SignalQuality {
	if !lqiOK || !perOK || math.IsNaN(lqi) || math.IsNaN(per) {
		return QualityUnknown
	}
	switch {
	case per > 30:
		if lqi < 60 {
			return QualityWeak
		}
		return QualityFair
	case per > 10:
		switch {
		case lqi < 30:
			return QualityWeak
		case lqi < 60:
			return QualityFair
		default:
			return QualityGood
		}
	default:
		switch {
		case lqi < 30:
			return QualityFair
		case lqi < 60:
			return QualityGood
		default:
			return QualityExcellent
		}
	}
}
