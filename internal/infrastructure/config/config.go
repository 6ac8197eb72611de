package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Kernel    KernelConfig
	Exec      ExecConfig
	Programs  ProgramConfig
	Boot      BootConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// KernelConfig sizes the kernel's tables.
type KernelConfig struct {
	PidMin    int32 `envconfig:"KERNEL_PID_MIN" default:"2"`
	ProcMax   int   `envconfig:"KERNEL_PROC_MAX" default:"128"`
	ThreadMax int   `envconfig:"KERNEL_THREAD_MAX" default:"128"`
	MemPages  int   `envconfig:"KERNEL_MEM_PAGES" default:"4096"`
}

// ExecConfig holds the exec argument limits.
type ExecConfig struct {
	ArgMax   int `envconfig:"EXEC_ARG_MAX" default:"64"`
	ArgBytes int `envconfig:"EXEC_ARG_BYTES" default:"1024"`
	PathMax  int `envconfig:"EXEC_PATH_MAX" default:"1024"`
}

// ProgramConfig says where program images come from. An empty Dir means the
// built-in images.
type ProgramConfig struct {
	Dir     string `envconfig:"PROGRAM_DIR"`
	Pattern string `envconfig:"PROGRAM_PATTERN"`
}

// BootConfig chooses what runs at boot: the processes listed in Plan if
// set, otherwise InitPath with InitArgs.
type BootConfig struct {
	Plan     string   `envconfig:"BOOT_PLAN"`
	InitPath string   `envconfig:"INIT_PATH" default:"/sbin/init"`
	InitArgs []string `envconfig:"INIT_ARGS"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Kernel: KernelConfig{
			PidMin:    2,
			ProcMax:   128,
			ThreadMax: 128,
			MemPages:  4096,
		},
		Exec: ExecConfig{
			ArgMax:   64,
			ArgBytes: 1024,
			PathMax:  1024,
		},
		Boot: BootConfig{
			InitPath: "/sbin/init",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Address returns the host:port the server listens on.
func (c ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

// BootPlan lists the processes started at boot, in order.
//
//	[[spawn]]
//	path = "/sbin/init"
//	argv = ["init", "/bin/true"]
type BootPlan struct {
	Spawn []BootEntry `toml:"spawn"`
}

// BootEntry is one process of a BootPlan. An empty Argv means just the
// path.
type BootEntry struct {
	Path string   `toml:"path"`
	Argv []string `toml:"argv"`
}

// Args returns the argument vector to start the entry with.
func (e BootEntry) Args() []string {
	if len(e.Argv) == 0 {
		return []string{e.Path}
	}
	return e.Argv
}

// ParseBootPlan decodes a TOML boot plan.
func ParseBootPlan(data []byte) (*BootPlan, error) {
	var plan BootPlan
	if err := toml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse boot plan: %w", err)
	}
	for i, e := range plan.Spawn {
		if !strings.HasPrefix(e.Path, "/") {
			return nil, fmt.Errorf("boot plan entry %d: path %q is not absolute", i, e.Path)
		}
	}
	return &plan, nil
}

// LoadBootPlan reads the boot plan at path.
func LoadBootPlan(path string) (*BootPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boot plan: %w", err)
	}
	return ParseBootPlan(data)
}

// Resolve returns the boot plan the configuration asks for.
func (c BootConfig) Resolve() (*BootPlan, error) {
	if c.Plan != "" {
		return LoadBootPlan(c.Plan)
	}
	if c.InitPath == "" {
		return &BootPlan{}, nil
	}
	argv := append([]string{c.InitPath}, c.InitArgs...)
	return &BootPlan{Spawn: []BootEntry{{Path: c.InitPath, Argv: argv}}}, nil
}
