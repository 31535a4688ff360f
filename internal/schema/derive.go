package schema

import "math"

// DeriveRIR estimates reps in reserve from RPE (RIR = 10 - RPE).
func DeriveRIR(rpe float64) float64 {
	return math.Max(0, 10-rpe)
}

// ReadinessScore computes the 0-100 readiness score from the log inputs.
func ReadinessScore(sleepHours float64, sleepQuality, stress, pain int) int {
	sleepHoursN := clamp(sleepHours/8*100, 0, 100)
	sleepQualityN := clamp(float64(sleepQuality)/5*100, 0, 100)
	stressN := clamp(float64(6-stress)/5*100, 0, 100)
	painN := clamp(float64(6-pain)/5*100, 0, 100)

	weighted := sleepQualityN*0.3 + sleepHoursN*0.25 + stressN*0.25 + painN*0.2
	return int(math.Round(weighted))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
