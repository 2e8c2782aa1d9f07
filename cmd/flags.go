package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Output formats shared by every command that prints results.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var outputFormats = []string{formatText, formatJSON, formatYAML}

type flagBinding struct {
	key  string
	flag *pflag.Flag
}

var flagBindings []flagBinding

// bindFlags binds flags to viper configuration keys.
func bindFlags(cmd *cobra.Command, bindings map[string]string, persistent bool) {
	set := cmd.Flags()
	if persistent {
		set = cmd.PersistentFlags()
	}
	for flagName, configKey := range bindings {
		if flag := set.Lookup(flagName); flag != nil {
			flagBindings = append(flagBindings, flagBinding{key: configKey, flag: flag})
			_ = viper.BindPFlag(configKey, flag)
		}
	}
}

// rebindFlags restores the bindings that viper.Reset drops.
func rebindFlags() {
	for _, b := range flagBindings {
		_ = viper.BindPFlag(b.key, b.flag)
	}
}

// addOutputFlag registers -o/--output with format validation.
func addOutputFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", formatText, "Output format (text|json|yaml)")
	AddFlagValidation(cmd, "output", func(format string) error {
		return ValidateFormat(format, outputFormats)
	})
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort accepts 0, which lets the system pick a port.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}
	return nil
}

// ValidateFormat rejects formats outside allowed.
func ValidateFormat(format string, allowed []string) error {
	for _, a := range allowed {
		if strings.EqualFold(format, a) {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q (supported: %s)", format, strings.Join(allowed, ", "))
}

// render writes v in the structured formats and defers to text otherwise.
func render(w io.Writer, format string, v interface{}, text func(io.Writer) error) error {
	switch strings.ToLower(format) {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case formatText, "":
		return text(w)
	default:
		return ValidateFormat(format, outputFormats)
	}
}
