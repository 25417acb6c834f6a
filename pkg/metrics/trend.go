package metrics

import "gonum.org/v1/gonum/stat"

// TrendStats holds regression statistics over windowed success rates.
// A positive slope means fixes are landing more often as the session
// progresses (the scheduler is learning).
type TrendStats struct {
	Slope       float64 `json:"slope"`
	Intercept   float64 `json:"intercept"`
	RSquared    float64 `json:"r_squared"`
	Correlation float64 `json:"correlation"`
	Windows     int     `json:"windows"`
}

// Trend groups the attempt stream into windows of the given size,
// computes each window's success rate, and regresses rate over window
// index. Returns zero stats with fewer than two complete windows.
func (s *Store) Trend(window int) TrendStats {
	if window <= 0 {
		window = 10
	}

	s.mu.Lock()
	obs := make([]float64, len(s.observations))
	copy(obs, s.observations)
	s.mu.Unlock()

	windows := len(obs) / window
	if windows < 2 {
		return TrendStats{Windows: windows}
	}

	xs := make([]float64, windows)
	ys := make([]float64, windows)
	for w := range windows {
		sum := 0.0
		for i := w * window; i < (w+1)*window; i++ {
			sum += obs[i]
		}
		xs[w] = float64(w)
		ys[w] = sum / float64(window)
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	return TrendStats{
		Slope:       slope,
		Intercept:   intercept,
		RSquared:    stat.RSquared(xs, ys, nil, intercept, slope),
		Correlation: stat.Correlation(xs, ys, nil),
		Windows:     windows,
	}
}
