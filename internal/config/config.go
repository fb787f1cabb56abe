package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full option set shared across the coordinator, worker,
// and local launcher binaries. Any field a given binary doesn't use is
// simply ignored.
type Config struct {
	Server      bool   `yaml:"server"`
	Mapper      string `yaml:"mapper"`
	Reducer     string `yaml:"reducer"`
	Reader      string `yaml:"reader"`
	Writer      string `yaml:"writer"`
	Input       string `yaml:"input"`
	Output      string `yaml:"output"`
	Address     string `yaml:"address"`
	Port        int    `yaml:"port"`
	Password    string `yaml:"password"`
	TimeoutSec  int    `yaml:"timeout"`
	ReportPct   int    `yaml:"report_interval"`
	LogLevel    string `yaml:"loglevel"`
	NumClients  int    `yaml:"num_clients"`
	Launch      string `yaml:"launch"`
	Interactive bool   `yaml:"interactive"`
	ProtocolLog string `yaml:"protocol_log"`
}

// Timeout returns TimeoutSec as a time.Duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// defaults returns the option set's built-in defaults, used before a
// config file or flags are applied.
func defaults() Config {
	return Config{
		Mapper:     "identity",
		Reducer:    "identity",
		Reader:     "glob",
		Writer:     "stdout",
		Address:    "127.0.0.1",
		Port:       11235,
		Password:   "changeme",
		TimeoutSec: 60,
		ReportPct:  10,
		LogLevel:   "info",
		NumClients: 1,
		Launch:     "local",
	}
}

// Parse builds a Config from args: package defaults, then an optional
// "-config path.yaml" file, then flags explicitly given on the command
// line, each layer overriding the last.
func Parse(args []string) (*Config, error) {
	cfg := defaults()

	// First pass: scan for -config by hand, since the stdlib flag
	// package has no way to tolerate the rest of the flags being
	// unrecognized at this point, and the file's values need to load
	// before the real FlagSet's defaults are set up.
	configPath := scanConfigFlag(args)
	if configPath != "" {
		if err := loadFile(configPath, &cfg); err != nil {
			return nil, err
		}
	}

	fs := flag.NewFlagSet("mrd", flag.ExitOnError)
	fs.BoolVar(&cfg.Server, "server", cfg.Server, "Run as coordinator rather than worker.")
	fs.StringVar(&cfg.Mapper, "mapper", cfg.Mapper, "Worker: Mapper name.")
	fs.StringVar(&cfg.Reducer, "reducer", cfg.Reducer, "Worker: Reducer name.")
	fs.StringVar(&cfg.Reader, "reader", cfg.Reader, "Coordinator: Reader name.")
	fs.StringVar(&cfg.Writer, "writer", cfg.Writer, "Coordinator: Writer name.")
	fs.StringVar(&cfg.Input, "input", cfg.Input, "Coordinator: input spec passed to the Reader.")
	fs.StringVar(&cfg.Output, "output", cfg.Output, "Coordinator: output spec consulted by the Writer.")
	fs.StringVar(&cfg.Address, "address", cfg.Address, "Worker: coordinator address.")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "TCP port.")
	fs.StringVar(&cfg.Password, "password", cfg.Password, "Shared auth secret.")
	fs.IntVar(&cfg.TimeoutSec, "timeout", cfg.TimeoutSec, "Worker: total reconnect budget, in seconds.")
	fs.IntVar(&cfg.ReportPct, "report_interval", cfg.ReportPct, "Coordinator: log progress at each P%% of maps done.")
	fs.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "Logging verbosity: debug, info, warn, error.")
	fs.IntVar(&cfg.NumClients, "num_clients", cfg.NumClients, "Launcher: number of workers to spawn locally.")
	fs.StringVar(&cfg.Launch, "launch", cfg.Launch, "Launcher mode: local, server, client, mpi, slurm.")
	fs.BoolVar(&cfg.Interactive, "interactive", cfg.Interactive, "Coordinator: enable the interactive console.")
	fs.StringVar(&cfg.ProtocolLog, "protocol_log", cfg.ProtocolLog, "File path for protocol event logging (CBOR format).")
	fs.String("config", configPath, "Configuration file path.")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// scanConfigFlag looks for "-config=PATH", "--config=PATH", "-config
// PATH", or "--config PATH" in args without otherwise interpreting them.
func scanConfigFlag(args []string) string {
	for i, arg := range args {
		switch {
		case strings.HasPrefix(arg, "-config="):
			return strings.TrimPrefix(arg, "-config=")
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		case (arg == "-config" || arg == "--config") && i+1 < len(args):
			return args[i+1]
		}
	}
	return ""
}
