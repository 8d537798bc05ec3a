// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World       WorldConfig       `yaml:"world"`
	Town        TownConfig        `yaml:"town"`
	Sim         SimConfig         `yaml:"sim"`
	Vision      VisionConfig      `yaml:"vision"`
	Noise       NoiseConfig       `yaml:"noise"`
	Pathfinding PathfindingConfig `yaml:"pathfinding"`
	Movement    MovementConfig    `yaml:"movement"`
	AI          AIConfig          `yaml:"ai"`
	Shop        ShopConfig        `yaml:"shop"`
	Phases      PhasesConfig      `yaml:"phases"`
	Population  PopulationConfig  `yaml:"population"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Relay       RelayConfig       `yaml:"relay"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds map dimensions. Width and height are in tiles.
type WorldConfig struct {
	TileSize        float64 `yaml:"tile_size"`         // World units per tile edge
	Width           int     `yaml:"width"`             // Tiles
	Height          int     `yaml:"height"`            // Tiles
	Levels          int     `yaml:"levels"`            // Initial z-levels (grows on demand)
	SpatialCellSize float64 `yaml:"spatial_cell_size"` // Spatial index cell edge in world units
}

// TownConfig holds demo map generation parameters.
type TownConfig struct {
	LotWidth        int     `yaml:"lot_width"`        // Tiles per building lot
	LotHeight       int     `yaml:"lot_height"`       // Tiles per building lot
	LockedChance    float64 `yaml:"locked_chance"`    // Probability a house door starts locked
	WindowChance    float64 `yaml:"window_chance"`    // Probability a wall side gets a window
	BushThreshold   float64 `yaml:"bush_threshold"`   // Normalized noise level above which bushes grow
	VegetationScale float64 `yaml:"vegetation_scale"` // Noise frequency per tile
	CratesNearShop  int     `yaml:"crates_near_shop"`
}

// SimConfig holds tick cadence parameters.
type SimConfig struct {
	DT             float64 `yaml:"dt"`              // Seconds per tick
	AIInterval     int     `yaml:"ai_interval"`     // Ticks between behavior tree evaluations
	StuckTicks     int     `yaml:"stuck_ticks"`     // Blocked steps before a path is dropped
	InterpRate     float64 `yaml:"interp_rate"`     // Remote agent smoothing per second
	StunDuration   float64 `yaml:"stun_duration"`   // Seconds a non-lethal hit stuns
	FootstepPeriod float64 `yaml:"footstep_period"` // Seconds between running footsteps
}

// VisionConfig holds line-of-sight parameters.
type VisionConfig struct {
	MaxDistance     float64 `yaml:"max_distance"`     // World units
	BlackoutFactor  float64 `yaml:"blackout_factor"`  // Vision multiplier while lights are out
	FlashlightDrain float64 `yaml:"flashlight_drain"` // Battery per second used during a blackout
}

// NoiseSpec describes one kind of noise event.
type NoiseSpec struct {
	Radius   float64 `yaml:"radius"`
	Duration float64 `yaml:"duration"` // Seconds
}

// NoiseConfig holds per-kind noise parameters.
type NoiseConfig struct {
	Footstep NoiseSpec `yaml:"footstep"`
	Door     NoiseSpec `yaml:"door"`
	Break    NoiseSpec `yaml:"break"`
	Lockpick NoiseSpec `yaml:"lockpick"`
	Scream   NoiseSpec `yaml:"scream"`
	Gunshot  NoiseSpec `yaml:"gunshot"`
	Siren    NoiseSpec `yaml:"siren"`
	Work     NoiseSpec `yaml:"work"`
}

// PathfindingConfig holds A* and request throttling parameters.
type PathfindingConfig struct {
	MaxExpansions     int     `yaml:"max_expansions"`     // Nodes popped before the search gives up
	RequestCooldown   float64 `yaml:"request_cooldown"`   // Seconds between re-requests while a path is active
	WaypointTolerance float64 `yaml:"waypoint_tolerance"` // World units
	FailureBackoff    float64 `yaml:"failure_backoff"`    // Seconds before a failed destination is retried
}

// MovementConfig holds speed parameters in world units per second.
type MovementConfig struct {
	WalkSpeed         float64 `yaml:"walk_speed"`
	RunSpeed          float64 `yaml:"run_speed"`
	CrouchSpeed       float64 `yaml:"crouch_speed"`
	PoliceMultiplier  float64 `yaml:"police_multiplier"`
	ExcitedMultiplier float64 `yaml:"excited_multiplier"`
	ExcitedDuration   float64 `yaml:"excited_duration"` // Seconds
}

// AIConfig holds gameplay tuning for the decision layer.
type AIConfig struct {
	SuspicionGain      float64 `yaml:"suspicion_gain"`      // Added per witnessed suspicious act
	SuspicionDecay     float64 `yaml:"suspicion_decay"`     // Removed per second
	SuspicionThreshold float64 `yaml:"suspicion_threshold"` // Score at which a target is chased
	SirenDistance      float64 `yaml:"siren_distance"`      // Chase distance that escalates to a siren
	SirenCharges       int     `yaml:"siren_charges"`
	DangerDistance     float64 `yaml:"danger_distance"`
	KillRange          float64 `yaml:"kill_range"`
	AttackRange        float64 `yaml:"attack_range"`
	AttackDamage       float64 `yaml:"attack_damage"`
	HealRange          float64 `yaml:"heal_range"`
	HealAmount         float64 `yaml:"heal_amount"`
	InteractRange      float64 `yaml:"interact_range"`
	WorkQuota          int     `yaml:"work_quota"`
	WorkDuration       float64 `yaml:"work_duration"` // Seconds
	WorkPay            int     `yaml:"work_pay"`
	LockpickDuration   float64 `yaml:"lockpick_duration"` // Seconds
	SabotageCost       float64 `yaml:"sabotage_cost"`     // AP
	WanderRadius       int     `yaml:"wander_radius"`     // Tiles
	FleeDistance       int     `yaml:"flee_distance"`     // Tiles
}

// ShopConfig holds item prices.
type ShopConfig struct {
	KeyPrice      int `yaml:"key_price"`
	AmmoPrice     int `yaml:"ammo_price"`
	LockpickPrice int `yaml:"lockpick_price"`
}

// PhasesConfig holds the length of each day phase in seconds.
type PhasesConfig struct {
	Dawn      float64 `yaml:"dawn"`
	Morning   float64 `yaml:"morning"`
	Noon      float64 `yaml:"noon"`
	Afternoon float64 `yaml:"afternoon"`
	Evening   float64 `yaml:"evening"`
	Night     float64 `yaml:"night"`
}

// PopulationConfig holds the starting roster.
type PopulationConfig struct {
	Citizens        int     `yaml:"citizens"`
	Mafia           int     `yaml:"mafia"`
	Police          int     `yaml:"police"`
	Doctors         int     `yaml:"doctors"`
	StartingHP      float64 `yaml:"starting_hp"`
	StartingAP      float64 `yaml:"starting_ap"`
	StartingMoney   int     `yaml:"starting_money"`
	StartingBattery float64 `yaml:"starting_battery"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"` // Seconds
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// RelayConfig holds network relay parameters.
type RelayConfig struct {
	Addr            string  `yaml:"addr"`
	PhaseBroadcast  float64 `yaml:"phase_broadcast"` // Seconds between phase broadcasts
	WriteTimeout    float64 `yaml:"write_timeout"`   // Seconds
	ReadBufferSize  int     `yaml:"read_buffer_size"`
	WriteBufferSize int     `yaml:"write_buffer_size"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT               time.Duration
	DT32             float32
	TileSize32       float32
	WorldW32         float32 // World width in world units
	WorldH32         float32 // World height in world units
	RequestCooldown  time.Duration
	FailureBackoff   time.Duration
	ExcitedDuration  time.Duration
	StunDuration     time.Duration
	FootstepPeriod   time.Duration
	WorkDuration     time.Duration
	LockpickDuration time.Duration
	PhaseDurations   [6]time.Duration // Indexed by phase order, DAWN first
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.World.TileSize <= 0:
		return fmt.Errorf("world.tile_size must be positive, got %v", c.World.TileSize)
	case c.World.Width <= 0 || c.World.Height <= 0:
		return fmt.Errorf("world dimensions must be positive, got %dx%d", c.World.Width, c.World.Height)
	case c.Sim.DT <= 0:
		return fmt.Errorf("sim.dt must be positive, got %v", c.Sim.DT)
	case c.Pathfinding.MaxExpansions <= 0:
		return fmt.Errorf("pathfinding.max_expansions must be positive, got %d", c.Pathfinding.MaxExpansions)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if c.World.Levels < 1 {
		c.World.Levels = 1
	}
	if c.World.SpatialCellSize <= 0 {
		c.World.SpatialCellSize = c.World.TileSize * 4
	}
	if c.Sim.AIInterval < 1 {
		c.Sim.AIInterval = 1
	}

	c.Derived.DT = seconds(c.Sim.DT)
	c.Derived.DT32 = float32(c.Sim.DT)
	c.Derived.TileSize32 = float32(c.World.TileSize)
	c.Derived.WorldW32 = float32(float64(c.World.Width) * c.World.TileSize)
	c.Derived.WorldH32 = float32(float64(c.World.Height) * c.World.TileSize)
	c.Derived.RequestCooldown = seconds(c.Pathfinding.RequestCooldown)
	c.Derived.FailureBackoff = seconds(c.Pathfinding.FailureBackoff)
	c.Derived.ExcitedDuration = seconds(c.Movement.ExcitedDuration)
	c.Derived.StunDuration = seconds(c.Sim.StunDuration)
	c.Derived.FootstepPeriod = seconds(c.Sim.FootstepPeriod)
	c.Derived.WorkDuration = seconds(c.AI.WorkDuration)
	c.Derived.LockpickDuration = seconds(c.AI.LockpickDuration)

	p := c.Phases
	for i, s := range []float64{p.Dawn, p.Morning, p.Noon, p.Afternoon, p.Evening, p.Night} {
		c.Derived.PhaseDurations[i] = seconds(s)
	}
}

// NoiseDuration converts a noise spec's duration to a time.Duration.
func (n NoiseSpec) NoiseDuration() time.Duration {
	return seconds(n.Duration)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
