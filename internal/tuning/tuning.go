package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning is the operator-facing knob file. Zero values fall back to the
// built-in defaults at wiring time.
type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz       int     `yaml:"tick_rate_hz"`
	BatchSize        int     `yaml:"batch_size"`
	SubmitterCap     int     `yaml:"submitter_cap"`
	ExecTimeoutMs    int     `yaml:"exec_timeout_ms"`
	ConflictRadius   float64 `yaml:"conflict_radius"`
	TunerIntervalSec int     `yaml:"tuner_interval_sec"`
	TunerThresholdMs int     `yaml:"tuner_threshold_ms"`

	PathCache PathCache `yaml:"path_cache"`

	// NamedLocations seed PreBakeCommonPaths at startup.
	NamedLocations map[string][3]float64 `yaml:"named_locations"`
}

type PathCache struct {
	MemoryCapacity    int     `yaml:"memory_capacity"`
	SectorSize        float64 `yaml:"sector_size"`
	AngleThresholdRad float64 `yaml:"angle_threshold_rad"`
	MaxWaypoints      int     `yaml:"max_waypoints"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:  "1.0",
		TickRateHz:       20,
		BatchSize:        64,
		SubmitterCap:     5,
		ExecTimeoutMs:    5000,
		ConflictRadius:   5,
		TunerIntervalSec: 30,
		TunerThresholdMs: 100,
		PathCache: PathCache{
			MemoryCapacity:    1000,
			SectorSize:        1000,
			AngleThresholdRad: 0.1,
			MaxWaypoints:      256,
		},
	}
}
