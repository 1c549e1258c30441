// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration for the explorer.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Data       DataConfig       `mapstructure:"data"`
	RatingLog  RatingLogConfig  `mapstructure:"rating_log"`
	Recommend  RecommendConfig  `mapstructure:"recommend"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
}

// ServerConfig is the configuration for the REST server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// DataConfig locates the catalog and the persisted ratings.
type DataConfig struct {
	CatalogPath string `mapstructure:"catalog_path"`
	RatingsPath string `mapstructure:"ratings_path"`
	Separator   string `mapstructure:"separator" validate:"len=1"`
}

// RatingLogConfig is the configuration for the durable log of simulated ratings.
type RatingLogConfig struct {
	Path          string        `mapstructure:"path"`
	TablePrefix   string        `mapstructure:"table_prefix"`
	Restore       bool          `mapstructure:"restore"`
	FlushInterval time.Duration `mapstructure:"flush_interval" validate:"gt=0"`
	MaxRetries    uint          `mapstructure:"max_retries"`
}

// RecommendConfig is the configuration for live recommendation.
type RecommendConfig struct {
	NumNeighbors int `mapstructure:"num_neighbors" validate:"gt=0"`
	DefaultN     int `mapstructure:"default_n" validate:"gt=0"`
}

// EvaluationConfig is the configuration for offline evaluation.
type EvaluationConfig struct {
	MinRatings         int     `mapstructure:"min_ratings" validate:"gte=0"`
	HoldoutFraction    float64 `mapstructure:"holdout_fraction" validate:"gt=0,lte=1"`
	MinTestSize        int     `mapstructure:"min_test_size" validate:"gte=1"`
	BaseSeed           int64   `mapstructure:"base_seed"`
	TopK               int     `mapstructure:"top_k" validate:"gt=0"`
	NumNeighbors       int     `mapstructure:"num_neighbors" validate:"gt=0"`
	RelevanceThreshold float64 `mapstructure:"relevance_threshold"`
	NumJobs            int     `mapstructure:"num_jobs" validate:"gte=1"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
		},
		Data: DataConfig{
			CatalogPath: "itens.csv",
			RatingsPath: "avaliacoes.csv",
			Separator:   ",",
		},
		RatingLog: RatingLogConfig{
			Restore:       true,
			FlushInterval: time.Second,
			MaxRetries:    5,
		},
		Recommend: RecommendConfig{
			NumNeighbors: 3,
			DefaultN:     5,
		},
		Evaluation: EvaluationConfig{
			MinRatings:         3,
			HoldoutFraction:    0.4,
			MinTestSize:        1,
			BaseSeed:           42,
			TopK:               5,
			NumNeighbors:       3,
			RelevanceThreshold: 3.0,
			NumJobs:            1,
		},
	}
}

func (config *Config) Validate() error {
	validate := validator.New()
	return validate.Struct(config)
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [server]
	v.SetDefault("server.host", defaultConfig.Server.Host)
	v.SetDefault("server.port", defaultConfig.Server.Port)
	v.SetDefault("server.shutdown_timeout", defaultConfig.Server.ShutdownTimeout)
	// [data]
	v.SetDefault("data.catalog_path", defaultConfig.Data.CatalogPath)
	v.SetDefault("data.ratings_path", defaultConfig.Data.RatingsPath)
	v.SetDefault("data.separator", defaultConfig.Data.Separator)
	// [rating_log]
	v.SetDefault("rating_log.path", defaultConfig.RatingLog.Path)
	v.SetDefault("rating_log.table_prefix", defaultConfig.RatingLog.TablePrefix)
	v.SetDefault("rating_log.restore", defaultConfig.RatingLog.Restore)
	v.SetDefault("rating_log.flush_interval", defaultConfig.RatingLog.FlushInterval)
	v.SetDefault("rating_log.max_retries", defaultConfig.RatingLog.MaxRetries)
	// [recommend]
	v.SetDefault("recommend.num_neighbors", defaultConfig.Recommend.NumNeighbors)
	v.SetDefault("recommend.default_n", defaultConfig.Recommend.DefaultN)
	// [evaluation]
	v.SetDefault("evaluation.min_ratings", defaultConfig.Evaluation.MinRatings)
	v.SetDefault("evaluation.holdout_fraction", defaultConfig.Evaluation.HoldoutFraction)
	v.SetDefault("evaluation.min_test_size", defaultConfig.Evaluation.MinTestSize)
	v.SetDefault("evaluation.base_seed", defaultConfig.Evaluation.BaseSeed)
	v.SetDefault("evaluation.top_k", defaultConfig.Evaluation.TopK)
	v.SetDefault("evaluation.num_neighbors", defaultConfig.Evaluation.NumNeighbors)
	v.SetDefault("evaluation.relevance_threshold", defaultConfig.Evaluation.RelevanceThreshold)
	v.SetDefault("evaluation.num_jobs", defaultConfig.Evaluation.NumJobs)
}

type configBinding struct {
	key string
	env string
}

// Short aliases. Every key is also bound to EXPLORER_<SECTION>_<KEY>. An alias
// must not equal the variable of a section, which would shadow the section.
var bindings = []configBinding{
	{"data.catalog_path", "EXPLORER_CATALOG_PATH"},
	{"data.ratings_path", "EXPLORER_RATINGS_PATH"},
}

// LoadConfig loads configuration from a TOML file. Missing keys take default
// values and EXPLORER_* environment variables override the file. An empty path
// loads defaults and environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("explorer")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	conf.RatingLog.Path = strings.TrimSpace(conf.RatingLog.Path)
	return &conf, nil
}
