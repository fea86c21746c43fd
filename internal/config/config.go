package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the per-run configuration for the deduplication engine.
//
// A Config is immutable for the duration of a run: it is validated once
// before INGESTING starts and then passed by value into every phase.
// Changing any field between runs changes candidate generation, so runs
// are only comparable under identical configs.
type Config struct {
	// GraphemeNGram is the character n-gram size for the tokenizer.
	// Default: 3 (trigrams over the normalized rune stream)
	GraphemeNGram int `yaml:"grapheme_ngram" json:"grapheme_ngram"`

	// WordNGram is the word n-gram (shingle) size for the tokenizer.
	// Default: 5
	WordNGram int `yaml:"word_ngram" json:"word_ngram"`

	// SignatureSize is the number of MinHash functions (k).
	// Must equal Bands * Rows. Default: 128
	SignatureSize int `yaml:"signature_size" json:"signature_size"`

	// Bands is the number of LSH bands (b). Default: 16
	Bands int `yaml:"bands" json:"bands"`

	// Rows is the number of rows per band (r). Default: 8
	//
	// (b, r) shape the probability of catching a pair at a given true
	// similarity: the step function's midpoint is (1/b)^(1/r). The
	// defaults put the midpoint near 0.71, below the default threshold,
	// trading extra candidate pairs (pruned by the verifier) for recall.
	Rows int `yaml:"rows" json:"rows"`

	// SimilarityThreshold is τ: the minimum estimated similarity for a
	// confirmed near-duplicate edge, compared inclusively. Must be in
	// (0, 1]. Default: 0.8
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`

	// BucketCap bounds the number of documents compared within a single
	// LSH bucket. Documents landing in a bucket beyond the cap are
	// excluded from that bucket's comparisons and counted as overflow
	// skips. Guards against pathological buckets (e.g. thousands of
	// identical documents) blowing up pairwise comparison.
	// Default: 1000
	BucketCap int `yaml:"bucket_cap" json:"bucket_cap"`

	// Seed fixes the universal hash family for the run. Identical seeds
	// yield identical signatures for identical inputs. Default: 1
	Seed int64 `yaml:"seed" json:"seed"`

	// Workers is the tokenization/verification worker pool size.
	// 0 means runtime.NumCPU(). Worker count never affects decisions,
	// only throughput.
	Workers int `yaml:"workers" json:"workers"`

	// QueueSize bounds the ingest queue between the document reader and
	// the signature workers, providing back-pressure. Default: 256
	QueueSize int `yaml:"queue_size" json:"queue_size"`

	// SampleLimit bounds the confirmed-pair sample in the report.
	// Default: 50
	SampleLimit int `yaml:"sample_limit" json:"sample_limit"`
}

// DefaultConfig returns the default engine configuration.
//
// The defaults mirror the reference pipeline: 128 permutations,
// threshold 0.8, word 5-grams plus character trigrams. Bands/rows are
// chosen recall-biased for that threshold (see Rows).
func DefaultConfig() Config {
	return Config{
		GraphemeNGram:       3,
		WordNGram:           5,
		SignatureSize:       128,
		Bands:               16,
		Rows:                8,
		SimilarityThreshold: 0.8,
		BucketCap:           1000,
		Seed:                1,
		Workers:             0,
		QueueSize:           256,
		SampleLimit:         50,
	}
}

// Validate checks if the configuration has valid values.
// A failed validation aborts the run before INGESTING begins.
func (c Config) Validate() error {
	if c.GraphemeNGram <= 0 {
		return fmt.Errorf("grapheme_ngram must be positive (got %d)", c.GraphemeNGram)
	}
	if c.WordNGram <= 0 {
		return fmt.Errorf("word_ngram must be positive (got %d)", c.WordNGram)
	}
	if c.SignatureSize <= 0 {
		return fmt.Errorf("signature_size must be positive (got %d)", c.SignatureSize)
	}
	if c.Bands <= 0 {
		return fmt.Errorf("bands must be positive (got %d)", c.Bands)
	}
	if c.Rows <= 0 {
		return fmt.Errorf("rows must be positive (got %d)", c.Rows)
	}
	if c.Bands*c.Rows != c.SignatureSize {
		return fmt.Errorf("bands * rows must equal signature_size (got %d * %d = %d, want %d)",
			c.Bands, c.Rows, c.Bands*c.Rows, c.SignatureSize)
	}
	if c.SimilarityThreshold <= 0.0 || c.SimilarityThreshold > 1.0 {
		return fmt.Errorf("similarity_threshold must be in (0.0, 1.0] (got %.4f)",
			c.SimilarityThreshold)
	}
	if c.BucketCap <= 0 {
		return fmt.Errorf("bucket_cap must be positive (got %d)", c.BucketCap)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative (got %d)", c.Workers)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive (got %d)", c.QueueSize)
	}
	if c.SampleLimit < 0 {
		return fmt.Errorf("sample_limit cannot be negative (got %d)", c.SampleLimit)
	}
	return nil
}

// EffectiveWorkers resolves Workers, substituting NumCPU for zero.
func (c Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Grapheme: %d, Word: %d, K: %d, Bands: %d, Rows: %d, "+
			"Threshold: %.2f, BucketCap: %d, Seed: %d, Workers: %d, Queue: %d, Sample: %d}",
		c.GraphemeNGram, c.WordNGram, c.SignatureSize, c.Bands, c.Rows,
		c.SimilarityThreshold, c.BucketCap, c.Seed, c.Workers, c.QueueSize, c.SampleLimit,
	)
}

// LoadFile reads a YAML config file, layering it over the defaults.
// Fields absent from the file keep their default values.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv creates a Config from environment variables, falling back to defaults.
//
// Environment variables:
//   - DEDUPE_GRAPHEME_NGRAM: character n-gram size (default: 3)
//   - DEDUPE_WORD_NGRAM: word n-gram size (default: 5)
//   - DEDUPE_SIGNATURE_SIZE: number of MinHash functions (default: 128)
//   - DEDUPE_BANDS: number of LSH bands (default: 16)
//   - DEDUPE_ROWS: rows per band (default: 8)
//   - DEDUPE_SIMILARITY_THRESHOLD: confirmation threshold τ (default: 0.8)
//   - DEDUPE_BUCKET_CAP: per-bucket comparison cap (default: 1000)
//   - DEDUPE_SEED: hash family seed (default: 1)
//   - DEDUPE_WORKERS: worker pool size, 0 = NumCPU (default: 0)
//   - DEDUPE_QUEUE_SIZE: ingest queue bound (default: 256)
//   - DEDUPE_SAMPLE_LIMIT: report pair sample bound (default: 50)
//
// Returns an error if any environment variable has an invalid value.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvInt("DEDUPE_GRAPHEME_NGRAM", &cfg.GraphemeNGram); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DEDUPE_WORD_NGRAM", &cfg.WordNGram); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DEDUPE_SIGNATURE_SIZE", &cfg.SignatureSize); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DEDUPE_BANDS", &cfg.Bands); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DEDUPE_ROWS", &cfg.Rows); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("DEDUPE_SIMILARITY_THRESHOLD", &cfg.SimilarityThreshold); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DEDUPE_BUCKET_CAP", &cfg.BucketCap); err != nil {
		return cfg, err
	}
	if err := parseEnvInt64("DEDUPE_SEED", &cfg.Seed); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DEDUPE_WORKERS", &cfg.Workers); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DEDUPE_QUEUE_SIZE", &cfg.QueueSize); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DEDUPE_SAMPLE_LIMIT", &cfg.SampleLimit); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt64 parses an int64 from an environment variable
func parseEnvInt64(key string, dest *int64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
