package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`
	Phase           string  `csv:"phase"`
	Day             int     `csv:"day"`

	// Population at window end
	Citizens   int `csv:"citizens"`
	Mafia      int `csv:"mafia"`
	Police     int `csv:"police"`
	Doctors    int `csv:"doctors"`
	Dead       int `csv:"dead"`
	Hidden     int `csv:"hidden"`
	Excited    int `csv:"excited"`
	Working    int `csv:"working"`
	LiveNoises int `csv:"live_noises"`

	// Events during window
	Attacks    int `csv:"attacks"`
	Kills      int `csv:"kills"`
	Stuns      int `csv:"stuns"`
	Heals      int `csv:"heals"`
	Sirens     int `csv:"sirens"`
	Sabotages  int `csv:"sabotages"`
	DoorsOpen  int `csv:"doors_opened"`
	DoorsBroke int `csv:"doors_broken"`
	Lockpicks  int `csv:"lockpicks"`
	Purchases  int `csv:"purchases"`
	WorkDone   int `csv:"work_done"`
	Stuck      int `csv:"stuck"`

	// Pathfinding
	PathsFound       int     `csv:"paths_found"`
	PathsFailed      int     `csv:"paths_failed"`
	PathFailRate     float64 `csv:"path_fail_rate"`
	PathLenMean      float64 `csv:"path_len_mean"`
	PathLenStd       float64 `csv:"path_len_std"`
	PathLenP90       float64 `csv:"path_len_p90"`
	SearchLatencyUS  float64 `csv:"search_latency_us"`
	SearchLatencyP90 float64 `csv:"search_latency_p90_us"`
	ExpansionsMean   float64 `csv:"expansions_mean"`
	StaleDropped     int     `csv:"stale_dropped"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// MeanStd returns the mean and population standard deviation of values.
// Returns zeros for an empty slice.
func MeanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean = stat.Mean(values, nil)
	if len(values) > 1 {
		std = stat.PopStdDev(values, nil)
	}
	return mean, std
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.String("phase", s.Phase),
		slog.Int("day", s.Day),
		slog.Int("citizens", s.Citizens),
		slog.Int("mafia", s.Mafia),
		slog.Int("police", s.Police),
		slog.Int("doctors", s.Doctors),
		slog.Int("dead", s.Dead),
		slog.Int("kills", s.Kills),
		slog.Int("paths_found", s.PathsFound),
		slog.Int("paths_failed", s.PathsFailed),
		slog.Float64("path_len_mean", s.PathLenMean),
		slog.Float64("search_latency_us", s.SearchLatencyUS),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"phase", s.Phase,
		"day", s.Day,
		"citizens", s.Citizens,
		"mafia", s.Mafia,
		"police", s.Police,
		"doctors", s.Doctors,
		"dead", s.Dead,
		"hidden", s.Hidden,
		"excited", s.Excited,
		"attacks", s.Attacks,
		"kills", s.Kills,
		"stuns", s.Stuns,
		"heals", s.Heals,
		"sirens", s.Sirens,
		"sabotages", s.Sabotages,
		"doors_broken", s.DoorsBroke,
		"work_done", s.WorkDone,
		"stuck", s.Stuck,
		"paths_found", s.PathsFound,
		"paths_failed", s.PathsFailed,
		"path_fail_rate", s.PathFailRate,
		"path_len_mean", s.PathLenMean,
		"path_len_std", s.PathLenStd,
		"search_latency_us", s.SearchLatencyUS,
		"stale_dropped", s.StaleDropped,
	)
}
