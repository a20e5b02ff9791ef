package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type profile struct {
	Iterations int      `mapstructure:"iterations"`
	Widths     []int    `mapstructure:"widths"`
	Heights    []int    `mapstructure:"heights"`
	Scenarios  []string `mapstructure:"scenarios"`
	Trace      string   `mapstructure:"trace"`
}

// loadProfile reads the optional profile file. Env var overrides use prefix
// BINDPARTY_.
func loadProfile(path string) (profile, error) {
	v := viper.New()

	v.SetDefault("iterations", 100)
	v.SetDefault("widths", []int{1, 10, 100})
	v.SetDefault("heights", []int{1, 10, 100})
	v.SetDefault("scenarios", []string{"chain", "derived", "command"})
	v.SetDefault("trace", "")

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return profile{}, fmt.Errorf("read profile: %w", err)
		}
	}

	v.SetEnvPrefix("BINDPARTY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var p profile
	if err := v.Unmarshal(&p); err != nil {
		return profile{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	return p, nil
}

func (p profile) validate() error {
	var errs []error
	if p.Iterations <= 0 {
		errs = append(errs, errors.New("iterations must be positive"))
	}
	if len(p.Widths) == 0 || len(p.Heights) == 0 {
		errs = append(errs, errors.New("widths and heights must not be empty"))
	}
	for _, n := range append(append([]int(nil), p.Widths...), p.Heights...) {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("size %d must be positive", n))
		}
	}
	if len(p.Scenarios) == 0 {
		errs = append(errs, errors.New("no scenarios selected"))
	}
	return errors.Join(errs...)
}
