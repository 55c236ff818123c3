package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/GPTx-global/rofl-oracle/oracle/log"
	"github.com/GPTx-global/rofl-oracle/oracle/types"
)

const (
	FileName  = "config.toml"
	EnvPrefix = "ORACLED"

	DefaultContractAddress = "0xf4630778eF83230A0081fb45b241Ff826766ffF8"
	DefaultSignerSocket    = "/run/rofl-appd.sock"
	DefaultGasLimit        = 200000
	DefaultPort            = 3000
	DefaultQueueCapacity   = 10000
)

var (
	home     string
	settings Settings
	mu       sync.RWMutex
)

// Config is the on-disk layout of config.toml. Durations are kept as
// strings so the file stays human readable.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Signer    SignerConfig    `toml:"signer"`
	Contract  ContractConfig  `toml:"contract"`
	Gas       GasConfig       `toml:"gas"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Queue     QueueConfig     `toml:"queue"`
	Health    HealthConfig    `toml:"health"`
	Log       LogConfig       `toml:"log"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type SignerConfig struct {
	Socket  string `toml:"socket"`
	Timeout string `toml:"timeout"`
}

type ContractConfig struct {
	Address string `toml:"address"`
}

type GasConfig struct {
	Limit uint64 `toml:"limit"`
}

type SchedulerConfig struct {
	Interval   string `toml:"interval"`
	BackoffMax string `toml:"backoff_max"`
}

type QueueConfig struct {
	Capacity int `toml:"capacity"`
}

type HealthConfig struct {
	Interval string `toml:"interval"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Settings is a validated Config with parsed values.
type Settings struct {
	ListenAddress     string
	SignerSocket      string
	SignerTimeout     time.Duration
	ContractAddress   common.Address
	GasLimit          uint64
	SchedulerInterval time.Duration
	BackoffMax        time.Duration
	QueueCapacity     int
	HealthInterval    time.Duration
	LogLevel          string
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: DefaultPort,
		},
		Signer: SignerConfig{
			Socket:  DefaultSignerSocket,
			Timeout: "30s",
		},
		Contract: ContractConfig{
			Address: DefaultContractAddress,
		},
		Gas: GasConfig{
			Limit: DefaultGasLimit,
		},
		Scheduler: SchedulerConfig{
			Interval:   "30s",
			BackoffMax: "5m",
		},
		Queue: QueueConfig{
			Capacity: DefaultQueueCapacity,
		},
		Health: HealthConfig{
			Interval: "15s",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultHome is $HOME/.oracled.
func DefaultHome() string {
	osHome, err := os.UserHomeDir()
	if err != nil {
		return ".oracled"
	}
	return filepath.Join(osHome, ".oracled")
}

// Load reads <home>/config.toml, creating it with defaults on first run.
// Values from .env files and ORACLED_* variables override the file; PORT
// overrides server.port when ORACLED_SERVER_PORT is unset.
func Load(oracleHome string) error {
	if oracleHome == "" {
		oracleHome = DefaultHome()
	}

	if err := loadDotEnv(filepath.Join(oracleHome, ".env"), ".env"); err != nil {
		return err
	}

	path := filepath.Join(oracleHome, FileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefaultConfig(path); err != nil {
			return fmt.Errorf("failed to create default config: %w", err)
		}
		log.Infof("Created default config at %s", path)
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := decode(v.AllSettings(), &cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	parsed, err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	mu.Lock()
	home = oracleHome
	settings = parsed
	mu.Unlock()

	log.Infof("Loaded config from %s", path)
	return nil
}

func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// every key needs a default so AutomaticEnv sees it even when the file omits it
	var defaults map[string]any
	_ = decodeToMap(Default(), &defaults)
	for section, values := range defaults {
		for key, value := range values.(map[string]any) {
			v.SetDefault(section+"."+key, value)
		}
	}

	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")
	return v
}

func decode(input any, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           cfg,
		TagName:          "toml",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func decodeToMap(cfg Config, out *map[string]any) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return toml.Unmarshal(data, out)
}

func createDefaultConfig(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := toml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal TOML: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks every field and returns the parsed settings.
func (c Config) Validate() (Settings, error) {
	var s Settings

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return s, errorsmod.Wrapf(types.ErrInvalidConfig, "server port %d out of range", c.Server.Port)
	}
	s.ListenAddress = net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))

	if c.Signer.Socket == "" {
		return s, errorsmod.Wrap(types.ErrInvalidConfig, "signer socket is required")
	}
	s.SignerSocket = c.Signer.Socket

	if !common.IsHexAddress(c.Contract.Address) {
		return s, errorsmod.Wrapf(types.ErrInvalidConfig, "contract address %q is not a hex address", c.Contract.Address)
	}
	s.ContractAddress = common.HexToAddress(c.Contract.Address)

	if c.Gas.Limit == 0 {
		return s, errorsmod.Wrap(types.ErrInvalidConfig, "gas limit is required")
	}
	s.GasLimit = c.Gas.Limit

	if c.Queue.Capacity <= 0 {
		return s, errorsmod.Wrapf(types.ErrInvalidConfig, "queue capacity must be positive, got %d", c.Queue.Capacity)
	}
	s.QueueCapacity = c.Queue.Capacity

	var err error
	if s.SignerTimeout, err = parseDuration("signer.timeout", c.Signer.Timeout); err != nil {
		return s, err
	}
	if s.SchedulerInterval, err = parseDuration("scheduler.interval", c.Scheduler.Interval); err != nil {
		return s, err
	}
	if s.BackoffMax, err = parseDuration("scheduler.backoff_max", c.Scheduler.BackoffMax); err != nil {
		return s, err
	}
	if s.BackoffMax < s.SchedulerInterval {
		return s, errorsmod.Wrapf(types.ErrInvalidConfig, "scheduler.backoff_max %s is below scheduler.interval %s", s.BackoffMax, s.SchedulerInterval)
	}
	if s.HealthInterval, err = parseDuration("health.interval", c.Health.Interval); err != nil {
		return s, err
	}

	s.LogLevel = c.Log.Level
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}

	return s, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errorsmod.Wrapf(types.ErrInvalidConfig, "%s: %v", key, err)
	}
	if d <= 0 {
		return 0, errorsmod.Wrapf(types.ErrInvalidConfig, "%s must be positive, got %s", key, d)
	}
	return d, nil
}

func Print() {
	log.Infof("%-18s: %s", "Home", Home())
	log.Infof("%-18s: %s", "Listen Address", ListenAddress())
	log.Infof("%-18s: %s", "Signer Socket", SignerSocket())
	log.Infof("%-18s: %s", "Signer Timeout", SignerTimeout())
	log.Infof("%-18s: %s", "Contract Address", ContractAddress().Hex())
	log.Infof("%-18s: %d", "Gas Limit", GasLimit())
	log.Infof("%-18s: %s", "Scheduler Interval", SchedulerInterval())
	log.Infof("%-18s: %s", "Backoff Max", BackoffMax())
	log.Infof("%-18s: %d", "Queue Capacity", QueueCapacity())
	log.Infof("%-18s: %s", "Health Interval", HealthInterval())
	log.Infof("%-18s: %s", "Log Level", LogLevel())
}

func current() Settings {
	mu.RLock()
	defer mu.RUnlock()
	return settings
}

func Home() string {
	mu.RLock()
	defer mu.RUnlock()
	return home
}

func ListenAddress() string {
	return current().ListenAddress
}

func SignerSocket() string {
	return current().SignerSocket
}

func SignerTimeout() time.Duration {
	return current().SignerTimeout
}

func ContractAddress() common.Address {
	return current().ContractAddress
}

func GasLimit() uint64 {
	return current().GasLimit
}

func SchedulerInterval() time.Duration {
	return current().SchedulerInterval
}

func BackoffMax() time.Duration {
	return current().BackoffMax
}

func QueueCapacity() int {
	return current().QueueCapacity
}

func HealthInterval() time.Duration {
	return current().HealthInterval
}

func LogLevel() string {
	return current().LogLevel
}

// SetForTesting installs cfg without touching the filesystem.
func SetForTesting(oracleHome string, cfg Config) error {
	parsed, err := cfg.Validate()
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	home = oracleHome
	settings = parsed
	return nil
}
