package config

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "GPUSELECT"

type Config struct {
	Count     int    `mapstructure:"count"`
	Name      string `mapstructure:"name"`
	Util      int    `mapstructure:"util"`
	MemUtil   int    `mapstructure:"mem_util"`
	Processes int    `mapstructure:"processes"`
	Devices   []int  `mapstructure:"devices"`
	Silent    bool   `mapstructure:"silent"`
	Provider  string `mapstructure:"provider"`
	Snapshot  string `mapstructure:"snapshot"` // replay a saved snapshot instead of querying hardware
	Debug     bool   `mapstructure:"debug"`
}

func getViper(configFile string) *viper.Viper {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("gpuselect")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")                       // working directory first
		v.AddConfigPath("$HOME/.config/gpuselect") // then the user's config dir
		v.AddConfigPath("/etc/gpuselect")          // finally host-wide
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("count", 1)
	v.SetDefault("name", "")
	v.SetDefault("util", 0)
	v.SetDefault("mem_util", 0)
	v.SetDefault("processes", 0)
	v.SetDefault("devices", []int{})
	v.SetDefault("silent", false)
	v.SetDefault("provider", "auto")
	v.SetDefault("snapshot", "")
	v.SetDefault("debug", false)
}

// Load resolves settings with precedence flag > GPUSELECT_* env > config
// file > defaults. Flags are matched to keys by name, so the flag set must
// use the mapstructure names above. A missing config file is only an error
// when configFile names it explicitly.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := getViper(configFile)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
