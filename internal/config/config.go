package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/spf13/viper"
)

// ConfigName is the config file base name searched for in the config dir.
const ConfigName = "driftwar"

// CombatConfig holds the battle lifecycle thresholds.
type CombatConfig struct {
	WarTrigger     float64 `json:"warTrigger" mapstructure:"warTrigger"`
	EndTimer       int     `json:"endTimer" mapstructure:"endTimer"`
	StalemateTicks int     `json:"stalemateTicks" mapstructure:"stalemateTicks"`
	MasterTicks    int     `json:"masterTicks" mapstructure:"masterTicks"`
	StalemateUnits int     `json:"stalemateUnits" mapstructure:"stalemateUnits"`
	CooldownTicks  int     `json:"cooldownTicks" mapstructure:"cooldownTicks"`
	Strict         bool    `json:"strict" mapstructure:"strict"`
}

// SpaceConfig holds the starting populations.
type SpaceConfig struct {
	Probes     float64 `json:"probes" mapstructure:"probes"`
	Drifters   float64 `json:"drifters" mapstructure:"drifters"`
	ProbeSpeed float64 `json:"probeSpeed" mapstructure:"probeSpeed"`
	SpeedBonus bool    `json:"speedBonus" mapstructure:"speedBonus"`
}

// UpgradesConfig holds the purchased combat projects.
type UpgradesConfig struct {
	NamedBattles bool `json:"namedBattles" mapstructure:"namedBattles"`
	Glory        bool `json:"glory" mapstructure:"glory"`
}

// StoreConfig holds save storage settings.
type StoreConfig struct {
	Driver string `json:"driver" mapstructure:"driver"`
	DSN    string `json:"dsn" mapstructure:"dsn"`
}

// MetricsConfig toggles the combat instruments and their exporter.
type MetricsConfig struct {
	Enabled     bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName string        `json:"serviceName" mapstructure:"serviceName"`
	Interval    time.Duration `json:"interval" mapstructure:"interval"`
	Path        string        `json:"path" mapstructure:"path"` // exporter output, stderr when empty
}

// InfluxConfig points batch runs at an InfluxDB bucket.
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	URL        string `json:"url" mapstructure:"url"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// ServerConfig holds the spectator server settings.
type ServerConfig struct {
	Addr          string        `json:"addr" mapstructure:"addr"`
	FrameInterval time.Duration `json:"frameInterval" mapstructure:"frameInterval"`
	TicksPerFrame int           `json:"ticksPerFrame" mapstructure:"ticksPerFrame"`
}

// Settings is the decoded configuration.
type Settings struct {
	LogLevel string         `json:"logLevel" mapstructure:"logLevel"`
	Graylog  string         `json:"graylog" mapstructure:"graylog"`
	Seed     int64          `json:"seed" mapstructure:"seed"`
	RNG      string         `json:"rng" mapstructure:"rng"`
	Combat   CombatConfig   `json:"combat" mapstructure:"combat"`
	Space    SpaceConfig    `json:"space" mapstructure:"space"`
	Upgrades UpgradesConfig `json:"upgrades" mapstructure:"upgrades"`
	Store    StoreConfig    `json:"store" mapstructure:"store"`
	Metrics  MetricsConfig  `json:"metrics" mapstructure:"metrics"`
	Influx   InfluxConfig   `json:"influx" mapstructure:"influx"`
	Server   ServerConfig   `json:"server" mapstructure:"server"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("graylog", "")
	viper.SetDefault("seed", 0)
	viper.SetDefault("rng", "thread")

	viper.SetDefault("combat.warTrigger", combat.DefaultWarTrigger)
	viper.SetDefault("combat.endTimer", combat.DefaultEndTimer)
	viper.SetDefault("combat.stalemateTicks", combat.DefaultStalemateTicks)
	viper.SetDefault("combat.masterTicks", combat.DefaultMasterTicks)
	viper.SetDefault("combat.stalemateUnits", combat.DefaultStalemateUnits)
	viper.SetDefault("combat.cooldownTicks", combat.DefaultCooldownTicks)
	viper.SetDefault("combat.strict", false)

	viper.SetDefault("space.probes", 50_000_000.0)
	viper.SetDefault("space.drifters", 2_000_000.0)
	viper.SetDefault("space.probeSpeed", 1.0)
	viper.SetDefault("space.speedBonus", false)

	viper.SetDefault("upgrades.namedBattles", false)
	viper.SetDefault("upgrades.glory", false)

	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.dsn", "driftwar.db")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.serviceName", "driftwar")
	viper.SetDefault("metrics.interval", 30*time.Second)
	viper.SetDefault("metrics.path", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "driftwar")
	viper.SetDefault("influx.bucket", "battles")
	viper.SetDefault("influx.backupPath", "battles.lp.gz")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.frameInterval", 50*time.Millisecond)
	viper.SetDefault("server.ticksPerFrame", 2)
}

// Load reads configuration from configDir and applies defaults. A missing
// config file is not an error; a malformed one is.
func Load(configDir string) (Settings, error) {
	setDefaults()

	viper.SetConfigName(ConfigName)
	viper.AddConfigPath(configDir)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("error decoding config: %w", err)
	}
	if s.Seed == 0 {
		s.Seed = time.Now().UnixNano()
	}
	return s, nil
}

// Timings converts the combat section into core thresholds.
func (s Settings) Timings() combat.Timings {
	return combat.Timings{
		WarTrigger:     s.Combat.WarTrigger,
		EndTimer:       s.Combat.EndTimer,
		StalemateTicks: s.Combat.StalemateTicks,
		MasterTicks:    s.Combat.MasterTicks,
		StalemateUnits: s.Combat.StalemateUnits,
		CooldownTicks:  s.Combat.CooldownTicks,
	}
}

// InitialSpace returns the starting populations.
func (s Settings) InitialSpace() combat.Space {
	return combat.Space{
		ProbeCount:   s.Space.Probes,
		DrifterCount: s.Space.Drifters,
		ProbeSpeed:   s.Space.ProbeSpeed,
		SpeedBonus:   s.Space.SpeedBonus,
	}
}

// CombatUpgrades returns the configured projects.
func (s Settings) CombatUpgrades() combat.Upgrades {
	return combat.Upgrades{
		NamedBattles: s.Upgrades.NamedBattles,
		Glory:        s.Upgrades.Glory,
	}
}

// RNGKind parses the configured randomness behaviour.
func (s Settings) RNGKind() combat.RNGKind {
	return combat.ParseRNGKind(s.RNG)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
