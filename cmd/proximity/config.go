package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/23skdu/proximity/internal/coerce"
	"github.com/23skdu/proximity/internal/core"
	"github.com/23skdu/proximity/internal/limiter"
	"github.com/23skdu/proximity/internal/table"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable read by the binary.
const EnvPrefix = "PROXIMITY"

// Modes
const (
	ModeMatrix  = "matrix"
	ModeBaskets = "baskets"
	ModeServe   = "serve"
)

// Output formats
const (
	OutputText    = "text"
	OutputCSV     = "csv"
	OutputParquet = "parquet"
	OutputPairs   = "pairs"
)

// Config validation errors
var (
	ErrInvalidMode           = errors.New("mode must be matrix, baskets or serve")
	ErrInvalidInput          = errors.New("input cannot be empty")
	ErrInvalidLabelColumn    = errors.New("label_column cannot be empty")
	ErrInvalidFeatures       = errors.New("features must list at least one column")
	ErrUnknownDecoration     = errors.New("decorations name a column that is not a feature")
	ErrInvalidPolicy         = errors.New("degenerate_policy must be 'error' or 'zero'")
	ErrInvalidOutputFormat   = errors.New("output_format must be text, csv, parquet or pairs")
	ErrParquetNeedsOutput    = errors.New("parquet output requires an output path")
	ErrInvalidPrecision      = errors.New("precision must be between 0 and 17")
	ErrInvalidLogFormat      = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel       = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidListenAddr     = errors.New("listen_addr cannot be empty")
	ErrInvalidMetricsAddr    = errors.New("metrics_addr cannot be empty")
	ErrInvalidDataset        = errors.New("dataset cannot be empty")
	ErrInvalidBasketInput    = errors.New("basket_input cannot be empty")
	ErrInvalidBasketColumns  = errors.New("basket_number_column and basket_item_column must be set")
	ErrInvalidKeepAliveTime  = errors.New("keepalive_time must be positive")
	ErrInvalidMaxRecvMsgSize = errors.New("grpc_max_recv_msg_size must be positive")
)

// Config is read from PROXIMITY_* environment variables. The defaults
// describe the marketing segmentation table.
type Config struct {
	Mode string `envconfig:"MODE" default:"matrix"`

	Input            string            `envconfig:"INPUT" default:"MARKETING_SEGMENTATION_SIMPLE.CSV"`
	InputFormat      string            `envconfig:"INPUT_FORMAT" default:""`
	LabelColumn      string            `envconfig:"LABEL_COLUMN" default:"Segment Name"`
	Features         []string          `envconfig:"FEATURES" default:"Average Revenues ($),Risk Score,Age (Years),Length of Residence (Months),Number of Children,Income ($000),Percent Male"`
	Decorations      map[string]string `envconfig:"DECORATIONS" default:"Age (Years):suffix= years,Length of Residence (Months):suffix= months,Average Revenues ($):prefix=$,Income ($000):prefix=$,Percent Male:percent"`
	DegeneratePolicy string            `envconfig:"DEGENERATE_POLICY" default:"error"`
	Workers          int               `envconfig:"WORKERS" default:"0"`

	Output       string `envconfig:"OUTPUT" default:""`
	OutputFormat string `envconfig:"OUTPUT_FORMAT" default:"text"`
	Precision    int    `envconfig:"PRECISION" default:"6"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	Dataset                  string        `envconfig:"DATASET" default:"segments"`
	ListenAddr               string        `envconfig:"LISTEN_ADDR" default:"0.0.0.0:3000"`
	MetricsAddr              string        `envconfig:"METRICS_ADDR" default:"0.0.0.0:9090"`
	KeepAliveTime            time.Duration `envconfig:"KEEPALIVE_TIME" default:"2h"`
	KeepAliveTimeout         time.Duration `envconfig:"KEEPALIVE_TIMEOUT" default:"20s"`
	GRPCMaxRecvMsgSize       int           `envconfig:"GRPC_MAX_RECV_MSG_SIZE" default:"16777216"`
	GRPCMaxSendMsgSize       int           `envconfig:"GRPC_MAX_SEND_MSG_SIZE" default:"104857600"`
	GRPCMaxConcurrentStreams uint32        `envconfig:"GRPC_MAX_CONCURRENT_STREAMS" default:"64"`
	ChunkMinRows             int           `envconfig:"CHUNK_MIN_ROWS" default:"64"`
	ChunkMaxRows             int           `envconfig:"CHUNK_MAX_ROWS" default:"4096"`
	CacheCapacity            int           `envconfig:"CACHE_CAPACITY" default:"16"`
	CacheTTL                 time.Duration `envconfig:"CACHE_TTL" default:"0s"`
	BreakerFailures          uint32        `envconfig:"BREAKER_FAILURES" default:"5"`
	BreakerCooldown          time.Duration `envconfig:"BREAKER_COOLDOWN" default:"30s"`
	limiter.Config

	BasketInput        string `envconfig:"BASKET_INPUT" default:"data/transactions.csv"`
	BasketOutput       string `envconfig:"BASKET_OUTPUT" default:"transactions.txt"`
	BasketNumberColumn string `envconfig:"BASKET_NUMBER_COLUMN" default:"number"`
	BasketItemColumn   string `envconfig:"BASKET_ITEM_COLUMN" default:"item"`
}

// DefaultConfig returns the configuration used when no variable is set.
func DefaultConfig() Config {
	return Config{
		Mode:        ModeMatrix,
		Input:       "MARKETING_SEGMENTATION_SIMPLE.CSV",
		LabelColumn: "Segment Name",
		Features: []string{
			"Average Revenues ($)",
			"Risk Score",
			"Age (Years)",
			"Length of Residence (Months)",
			"Number of Children",
			"Income ($000)",
			"Percent Male",
		},
		Decorations: map[string]string{
			"Age (Years)":                  "suffix= years",
			"Length of Residence (Months)": "suffix= months",
			"Average Revenues ($)":         "prefix=$",
			"Income ($000)":                "prefix=$",
			"Percent Male":                 "percent",
		},
		DegeneratePolicy:         string(core.PolicyError),
		OutputFormat:             OutputText,
		Precision:                6,
		LogFormat:                "json",
		LogLevel:                 "info",
		Dataset:                  "segments",
		ListenAddr:               "0.0.0.0:3000",
		MetricsAddr:              "0.0.0.0:9090",
		KeepAliveTime:            2 * time.Hour,
		KeepAliveTimeout:         20 * time.Second,
		GRPCMaxRecvMsgSize:       16777216,  // 16MB
		GRPCMaxSendMsgSize:       104857600, // 100MB
		GRPCMaxConcurrentStreams: 64,
		ChunkMinRows:             64,
		ChunkMaxRows:             4096,
		CacheCapacity:            16,
		BreakerFailures:          5,
		BreakerCooldown:          30 * time.Second,
		BasketInput:              "data/transactions.csv",
		BasketOutput:             "transactions.txt",
		BasketNumberColumn:       "number",
		BasketItemColumn:         "item",
	}
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	switch cfg.Mode {
	case ModeMatrix, ModeServe:
		if err := validatePipeline(cfg); err != nil {
			return err
		}
	case ModeBaskets:
		if cfg.BasketInput == "" {
			return ErrInvalidBasketInput
		}
		if cfg.BasketNumberColumn == "" || cfg.BasketItemColumn == "" {
			return ErrInvalidBasketColumns
		}
	default:
		return ErrInvalidMode
	}

	if cfg.Mode == ModeServe {
		if cfg.ListenAddr == "" {
			return ErrInvalidListenAddr
		}
		if cfg.MetricsAddr == "" {
			return ErrInvalidMetricsAddr
		}
		if cfg.Dataset == "" {
			return ErrInvalidDataset
		}
		if err := cfg.ValidateGRPCConfig(); err != nil {
			return err
		}
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	return nil
}

func validatePipeline(cfg *Config) error {
	if cfg.Input == "" {
		return ErrInvalidInput
	}
	if _, err := table.ParseFormat(cfg.InputFormat); err != nil {
		return err
	}
	if cfg.LabelColumn == "" {
		return ErrInvalidLabelColumn
	}
	if len(cfg.Features) == 0 {
		return ErrInvalidFeatures
	}
	if !core.DegeneratePolicy(cfg.DegeneratePolicy).Valid() {
		return ErrInvalidPolicy
	}
	if _, err := cfg.Schema(); err != nil {
		return err
	}
	switch cfg.OutputFormat {
	case OutputText, OutputCSV, OutputPairs:
	case OutputParquet:
		if cfg.Output == "" && cfg.Mode == ModeMatrix {
			return ErrParquetNeedsOutput
		}
	default:
		return ErrInvalidOutputFormat
	}
	if cfg.Precision < 0 || cfg.Precision > 17 {
		return ErrInvalidPrecision
	}
	return nil
}

// Schema builds the coercion schema from the feature list and the
// per-column decoration rules.
func (c *Config) Schema() (coerce.Schema, error) {
	features := make(map[string]struct{}, len(c.Features))
	for _, f := range c.Features {
		features[f] = struct{}{}
	}
	for col := range c.Decorations {
		if _, ok := features[col]; !ok {
			return coerce.Schema{}, fmt.Errorf("%w: %q", ErrUnknownDecoration, col)
		}
	}

	schema := coerce.Schema{Label: c.LabelColumn, Columns: make([]coerce.Column, len(c.Features))}
	for i, name := range c.Features {
		rule := coerce.Plain()
		if raw, ok := c.Decorations[name]; ok {
			r, err := coerce.ParseRule(raw)
			if err != nil {
				return coerce.Schema{}, fmt.Errorf("column %q: %w", name, err)
			}
			rule = r
		}
		schema.Columns[i] = coerce.Column{Name: name, Rule: rule}
	}
	return schema, schema.Validate()
}
