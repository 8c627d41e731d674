// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (c) 2017-2023 The Spacemesh developers

package server

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap/zapcore"

	"github.com/zkleaderboard/verifier/attestation"
	"github.com/zkleaderboard/verifier/ledger"
	"github.com/zkleaderboard/verifier/logging"
	"github.com/zkleaderboard/verifier/proofservice"
)

const (
	defaultDbDirName      = "db"
	defaultLogDirname     = "logs"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
	defaultRESTPort       = 8000

	defaultRunTimeout      = 15 * time.Minute
	defaultShutdownTimeout = 10 * time.Second
	defaultRateLimit       = 2
	defaultRateBurst       = 5
)

// Config defines the configuration options for the verifier.
//
// See ReadConfigFile and SetupConfig for further details regarding the
// configuration loading+parsing process.
//
//nolint:lll
type Config struct {
	VerifierDir     string `long:"verifierdir"    description:"The base directory that contains the verifier's data, logs, configuration file, etc."`
	ConfigFile      string `long:"configfile"     description:"Path to configuration file"                                                           short:"c"`
	DbDir           string `long:"dbdir"          description:"The directory to store the run database within"`
	LogDir          string `long:"logdir"         description:"Directory to log output."`
	DebugLog        bool   `long:"debuglog"       description:"Enable debug logs"`
	JSONLog         bool   `long:"jsonlog"        description:"Whether to log in JSON format"`
	MaxLogFiles     int    `long:"maxlogfiles"    description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize  int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	RawRESTListener string `long:"restlisten"     description:"The interface/port/socket to listen for REST connections"                             short:"w"`

	RunTimeout             time.Duration `long:"run-timeout"              description:"Upper bound on a single verification run"`
	ShutdownTimeout        time.Duration `long:"shutdown-timeout"         description:"Time allowed for in-flight requests on shutdown"`
	RateLimit              float64       `long:"rate-limit"               description:"Verification requests per second allowed per client IP (0 disables)"`
	RateBurst              int           `long:"rate-burst"               description:"Burst of verification requests allowed per client IP"`
	DisableSettlementGuard bool          `long:"disable-settlement-guard" description:"Allow settling the same address batch more than once"`

	Poll         proofservice.PollConfig `group:"Poll"`
	ProofService ProofServiceConfig      `group:"ProofService"`
	Attestation  attestation.Config      `group:"Attestation"`
	Ledger       ledger.Config           `group:"Ledger"`
}

type ProofServiceConfig struct {
	URL            string        `long:"proof-service"                 description:"Base URL of the proof generation service"`
	Retries        int           `long:"proof-service-retries"         description:"Retries of a failed proof service request"`
	RequestTimeout time.Duration `long:"proof-service-request-timeout" description:"Timeout of a single proof service request"`
	CacheSize      int           `long:"proof-service-cache-size"      description:"Number of completed proof jobs kept in memory"`
}

// implement zap.ObjectMarshaler interface.
func (c ProofServiceConfig) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("url", c.URL)
	enc.AddInt("retries", c.Retries)
	enc.AddDuration("request-timeout", c.RequestTimeout)
	enc.AddInt("cache-size", c.CacheSize)
	return nil
}

// DefaultConfig returns a config with default hardcoded values.
func DefaultConfig() *Config {
	verifierDir := "./verifier"
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		verifierDir = filepath.Join(cacheDir, "verifier")
	}

	return &Config{
		VerifierDir:     verifierDir,
		DbDir:           filepath.Join(verifierDir, defaultDbDirName),
		LogDir:          filepath.Join(verifierDir, defaultLogDirname),
		MaxLogFiles:     defaultMaxLogFiles,
		MaxLogFileSize:  defaultMaxLogFileSize,
		RawRESTListener: fmt.Sprintf("localhost:%d", defaultRESTPort),
		RunTimeout:      defaultRunTimeout,
		ShutdownTimeout: defaultShutdownTimeout,
		RateLimit:       defaultRateLimit,
		RateBurst:       defaultRateBurst,
		Poll:            proofservice.DefaultPollConfig(),
		ProofService: ProofServiceConfig{
			URL:            "http://localhost:8080",
			RequestTimeout: 30 * time.Second,
			CacheSize:      1024,
		},
		Attestation: attestation.DefaultConfig(),
		Ledger:      ledger.DefaultConfig(),
	}
}

// ParseFlags reads values from command line arguments.
func ParseFlags(preCfg *Config) (*Config, error) {
	if _, err := flags.Parse(preCfg); err != nil {
		return nil, err
	}
	return preCfg, nil
}

// ReadConfigFile reads config from an ini file.
// It uses the provided `cfg` as a base config and overrides it with the values
// from the config file.
func ReadConfigFile(cfg *Config) (*Config, error) {
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	logging.FromContext(context.Background()).Sugar().Debugf("reading config from %s", cfg.ConfigFile)
	if err := flags.IniParse(cfg.ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %v: %w", cfg.ConfigFile, err)
	}

	return cfg, nil
}

// SetupConfig expands paths and initializes filesystem.
func SetupConfig(cfg *Config) (*Config, error) {
	// If the provided verifier directory is not the default, we'll modify the
	// path to all of the files and directories that will live within it.
	defaultCfg := DefaultConfig()
	if cfg.VerifierDir != defaultCfg.VerifierDir {
		if cfg.LogDir == defaultCfg.LogDir {
			cfg.LogDir = filepath.Join(cfg.VerifierDir, defaultLogDirname)
		}
		if cfg.DbDir == defaultCfg.DbDir {
			cfg.DbDir = filepath.Join(cfg.VerifierDir, defaultDbDirName)
		}
	}

	if err := os.MkdirAll(cfg.VerifierDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %v: %w", cfg.VerifierDir, err)
	}

	cfg.DbDir = cleanAndExpandPath(cfg.DbDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	return cfg, nil
}

// Validate reports every invalid option at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if _, err := url.ParseRequestURI(c.ProofService.URL); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid proof service url: %w", err))
	}
	if c.Poll.MaxAttempts == 0 {
		result = multierror.Append(result, errors.New("poll-max-attempts must be positive"))
	}
	if c.Poll.Interval <= 0 {
		result = multierror.Append(result, errors.New("poll-interval must be positive"))
	}
	if gateway, err := url.Parse(c.Attestation.GatewayURL); err != nil || (gateway.Scheme != "ws" && gateway.Scheme != "wss") {
		// confirmations arrive as subscription notifications, which need a websocket
		result = multierror.Append(result, fmt.Errorf("attestation gateway %q must be a ws:// or wss:// url", c.Attestation.GatewayURL))
	}
	if c.Attestation.ConfirmationTimeout <= 0 {
		result = multierror.Append(result, errors.New("attestation-confirmation-timeout must be positive"))
	}
	if c.Ledger.SettlementContract == "" {
		result = multierror.Append(result, errors.New("ledger-settlement-contract is required"))
	}
	if c.Ledger.ReceiptInterval <= 0 || c.Ledger.ReceiptTimeout <= 0 {
		result = multierror.Append(result, errors.New("ledger receipt interval and timeout must be positive"))
	}
	if c.RunTimeout < c.Attestation.Ceiling() {
		result = multierror.Append(result, fmt.Errorf(
			"run-timeout %v is shorter than the attestation ceiling %v", c.RunTimeout, c.Attestation.Ceiling()))
	}
	if c.RateLimit < 0 || (c.RateLimit > 0 && c.RateBurst < 1) {
		result = multierror.Append(result, errors.New("rate-burst must be positive when rate limiting"))
	}
	return result.ErrorOrNil()
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		user, err := user.Current()
		if err == nil {
			homeDir = user.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
