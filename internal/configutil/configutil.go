// Package configutil resolves settings from cobra flags with viper fallback.
package configutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// FlagOrViperString returns the flag value when it was set on the command
// line, else the viper key when set, else the flag default.
func FlagOrViperString(cmd *cobra.Command, flagName, viperKey string) string {
	v, _ := cmd.Flags().GetString(flagName)
	if cmd.Flags().Changed(flagName) {
		return v
	}
	if viperKey != "" && viper.IsSet(viperKey) {
		return viper.GetString(viperKey)
	}
	return v
}

func FlagOrViperBool(cmd *cobra.Command, flagName, viperKey string) bool {
	v, _ := cmd.Flags().GetBool(flagName)
	if cmd.Flags().Changed(flagName) {
		return v
	}
	if viperKey != "" && viper.IsSet(viperKey) {
		return viper.GetBool(viperKey)
	}
	return v
}

func FlagOrViperInt(cmd *cobra.Command, flagName, viperKey string) int {
	v, _ := cmd.Flags().GetInt(flagName)
	if cmd.Flags().Changed(flagName) {
		return v
	}
	if viperKey != "" && viper.IsSet(viperKey) {
		return viper.GetInt(viperKey)
	}
	return v
}

func FlagOrViperDuration(cmd *cobra.Command, flagName, viperKey string) time.Duration {
	v, _ := cmd.Flags().GetDuration(flagName)
	if cmd.Flags().Changed(flagName) {
		return v
	}
	if viperKey != "" && viper.IsSet(viperKey) {
		return viper.GetDuration(viperKey)
	}
	return v
}

func FlagOrViperFloat64(cmd *cobra.Command, flagName, viperKey string) float64 {
	v, _ := cmd.Flags().GetFloat64(flagName)
	if cmd.Flags().Changed(flagName) {
		return v
	}
	if viperKey != "" && viper.IsSet(viperKey) {
		return viper.GetFloat64(viperKey)
	}
	return v
}

// FlagOrViperInt64s reads a repeatable int64 flag, falling back to a viper
// list. Env values may separate ids with commas or spaces.
func FlagOrViperInt64s(cmd *cobra.Command, flagName, viperKey string) ([]int64, error) {
	v, _ := cmd.Flags().GetInt64Slice(flagName)
	if cmd.Flags().Changed(flagName) {
		return v, nil
	}
	if viperKey != "" && viper.IsSet(viperKey) {
		return Int64s(viperKey)
	}
	return v, nil
}

// Int64s reads key as a list of int64 values.
func Int64s(key string) ([]int64, error) {
	return ParseInt64s(viper.GetStringSlice(key))
}

func ParseInt64s(raw []string) ([]int64, error) {
	var out []int64
	for _, item := range raw {
		for _, field := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' }) {
			id, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid id %q: %w", field, err)
			}
			out = append(out, id)
		}
	}
	return out, nil
}
