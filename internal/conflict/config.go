package conflict

import "time"

// Config holds the detector's policy knobs.
type Config struct {
	CacheSize                int
	DetectionSensitivity     float64
	EnableSemanticDetection  bool
	EnableProactiveDetection bool
	// AnalysisTimeout bounds one DetectConflicts call. Zero disables the bound.
	AnalysisTimeout time.Duration
}

// DefaultConfig returns the defaults used when no config file is present.
func DefaultConfig() Config {
	return Config{
		CacheSize:                1000,
		DetectionSensitivity:     0.7,
		EnableSemanticDetection:  true,
		EnableProactiveDetection: true,
		AnalysisTimeout:          60 * time.Second,
	}
}
