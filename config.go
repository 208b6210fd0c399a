package mastermind

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"crosswarped.com/mastermind/internal"
	"crosswarped.com/mastermind/internal/respcache"
	"crosswarped.com/mastermind/internal/strategy"
	"crosswarped.com/mastermind/pkg/primitives"
)

// Config describes one kind of game and how to solve it.
type Config struct {
	// Alphabet is the number of symbols K.
	Alphabet int `yaml:"alphabet" validate:"gte=1,lte=26"`

	// Columns is the code length N.
	Columns    int    `yaml:"columns" validate:"gte=1"`
	Repetition bool   `yaml:"repetition"`
	Symbols    string `yaml:"symbols" validate:"oneof=digits letters"`

	// Limit is the number of rounds after which a game is exhausted.
	Limit    int    `yaml:"limit" validate:"gte=1,lte=1000"`
	Strategy string `yaml:"strategy" validate:"strategy"`

	Opening OpeningConfig `yaml:"opening"`

	// MaxUniverse rejects spaces with more codes. Zero means internal.DefaultMaxCodes.
	MaxUniverse int `yaml:"max_universe" validate:"gte=0"`

	// Workers splits each strategy scan. Zero means GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0"`

	// Seed makes Random and the secret draws reproducible. Nil seeds from the clock.
	Seed *uint64 `yaml:"seed"`

	Cache CacheConfig `yaml:"cache"`
	Stats StatsConfig `yaml:"stats"`
}

// OpeningConfig picks the first guess of each strategy.
type OpeningConfig struct {
	Minimax      string   `yaml:"minimax" validate:"scheme"`
	MostParts    string   `yaml:"most_parts" validate:"scheme"`
	ExpectedSize string   `yaml:"expected_size" validate:"scheme"`
	Random       []string `yaml:"random" validate:"dive,scheme"`
}

type CacheConfig struct {
	Policy           string `yaml:"policy" validate:"oneof=auto unbounded bounded none"`
	MaxEntries       int    `yaml:"max_entries" validate:"gte=0"`
	UnboundedCeiling int    `yaml:"unbounded_ceiling" validate:"gte=0"`
	Backend          string `yaml:"backend" validate:"oneof=none file badger"`
	Path             string `yaml:"path" validate:"required_unless=Backend none"`
}

type StatsConfig struct {
	Runs       int      `yaml:"runs" validate:"gte=1"`
	Strategies []string `yaml:"strategies" validate:"dive,strategy"`

	// Parallelism bounds the number of games played at once. Zero means GOMAXPROCS.
	Parallelism int `yaml:"parallelism" validate:"gte=0"`

	BigQuery BigQueryConfig `yaml:"bigquery"`
}

// BigQueryConfig is where batch summaries are exported. An empty project disables the export.
type BigQueryConfig struct {
	Project         string `yaml:"project"`
	Dataset         string `yaml:"dataset" validate:"required_with=Project"`
	Table           string `yaml:"table" validate:"required_with=Project"`
	Location        string `yaml:"location"`
	CredentialsFile string `yaml:"credentials_file"`
}

// DefaultConfig is the classic game: four columns, six digits, repetition, ten rounds.
func DefaultConfig() Config {
	return Config{
		Alphabet:   6,
		Columns:    4,
		Repetition: true,
		Symbols:    string(SymbolsDigits),
		Limit:      10,
		Strategy:   strategy.KindRandom.String(),
		Opening: OpeningConfig{
			Minimax:      string(SchemeAABB),
			MostParts:    string(SchemeAABC),
			ExpectedSize: string(SchemeAABC),
			Random:       []string{string(SchemeAABB), string(SchemeAABC), string(SchemeABCD)},
		},
		MaxUniverse: internal.DefaultMaxCodes,
		Cache: CacheConfig{
			Policy:           string(respcache.PolicyAuto),
			UnboundedCeiling: respcache.DefaultUnboundedCeiling,
			Backend:          string(respcache.BackendNone),
		},
		Stats: StatsConfig{
			Runs:       100,
			Strategies: []string{"random", "minimax", "most-parts", "expected-size"},
			BigQuery: BigQueryConfig{
				Location: "US",
			},
		},
	}
}

// LoadConfig reads defaults, then the YAML file at path if it exists, then MAMI_* environment
// variables, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := loadConfigFromEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &ConfigError{Field: path, Reason: err.Error()}
	}
	return nil
}

func loadConfigFromEnv(cfg *Config) error {
	intVar := func(name string, dst *int) error {
		v := os.Getenv(name)
		if v == "" {
			return nil
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return configErrorf(name, "not an integer: %q", v)
		}
		*dst = i
		return nil
	}

	if err := intVar("MAMI_ALPHABET", &cfg.Alphabet); err != nil {
		return err
	}
	if err := intVar("MAMI_COLUMNS", &cfg.Columns); err != nil {
		return err
	}
	if err := intVar("MAMI_LIMIT", &cfg.Limit); err != nil {
		return err
	}
	if err := intVar("MAMI_WORKERS", &cfg.Workers); err != nil {
		return err
	}
	if v := os.Getenv("MAMI_REPETITION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return configErrorf("MAMI_REPETITION", "not a boolean: %q", v)
		}
		cfg.Repetition = b
	}
	if v := os.Getenv("MAMI_SYMBOLS"); v != "" {
		cfg.Symbols = strings.ToLower(v)
	}
	if v := os.Getenv("MAMI_STRATEGY"); v != "" {
		cfg.Strategy = strings.ToLower(v)
	}
	if v := os.Getenv("MAMI_CACHE_POLICY"); v != "" {
		cfg.Cache.Policy = strings.ToLower(v)
	}
	if v := os.Getenv("MAMI_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
		if cfg.Cache.Backend == string(respcache.BackendNone) {
			cfg.Cache.Backend = string(respcache.BackendFile)
		}
	}
	return nil
}

var configValidate = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("strategy", func(fl validator.FieldLevel) bool {
		_, err := strategy.ParseKind(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("scheme", func(fl validator.FieldLevel) bool {
		_, err := ParseScheme(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate reports the first problem as a *ConfigError.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			field, _ := strings.CutPrefix(fe.Namespace(), "Config.")
			return configErrorf(field, "failed %q check on %v", fe.Tag(), fe.Value())
		}
		return &ConfigError{Field: "config", Reason: err.Error()}
	}

	if _, err := c.Space(); err != nil {
		return err
	}
	return nil
}

// Space builds the code space the config describes.
func (c Config) Space() (*Space, error) {
	return NewSpace(c.Alphabet, c.Columns, c.Repetition, Symbols(c.Symbols), c.MaxUniverse)
}

// Kind returns the configured strategy.
func (c Config) Kind() (strategy.Kind, error) {
	k, err := strategy.ParseKind(c.Strategy)
	if err != nil {
		return 0, configErrorf("strategy", "%v", err)
	}
	return k, nil
}

// Openings returns the first guesses the given strategy may play in space.
func (c Config) Openings(space *Space, kind strategy.Kind) []primitives.Code {
	names := c.Opening.Random
	switch kind {
	case strategy.KindMinimax:
		names = []string{c.Opening.Minimax}
	case strategy.KindMostParts:
		names = []string{c.Opening.MostParts}
	case strategy.KindExpectedSize:
		names = []string{c.Opening.ExpectedSize}
	}

	schemes := make([]Scheme, 0, len(names))
	for _, name := range names {
		sc, err := ParseScheme(name)
		if err != nil {
			continue
		}
		schemes = append(schemes, sc)
	}
	if len(schemes) == 0 {
		schemes = []Scheme{SchemeABCD}
	}
	return space.Openings(schemes...)
}
