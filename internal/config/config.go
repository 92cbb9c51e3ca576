// Package config provides layered configuration loading for the Firecat
// client and reference node.
//
// Sources are merged in order of precedence (lowest to highest):
// struct defaults, an optional JSON file (--config), FIRECAT_* environment
// variables, then command-line flags. The merged result is validated.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	EnvPrefix  = "FIRECAT_"
	ConfigFlag = "config"
	delim      = "."
)

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Loader hooks. Tests swap them to exercise failure paths.
var (
	defaultLoader = func(k *koanf.Koanf, defaults any) error {
		return k.Load(structs.Provider(defaults, "koanf"), nil)
	}
	fileLoader = func(k *koanf.Koanf, path string) error {
		return k.Load(file.Provider(path), json.Parser())
	}
	envLoader = func(k *koanf.Koanf) error {
		return k.Load(env.Provider(EnvPrefix, delim, envKeyMapper(k.Keys())), nil)
	}
	registerValidators = func(v *validator.Validate) error {
		return v.RegisterValidation("host_port", validHostPort)
	}
)

// EnvName returns the environment variable that sets key, e.g.
// "app.public_key" -> FIRECAT_APP_PUBLIC_KEY.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, delim, "_"))
}

// envKeyMapper maps FIRECAT_* variables back to known keys. Because both
// "." and "_" become "_", only keys present in the defaults are accepted;
// anything else is ignored.
func envKeyMapper(keys []string) func(string) string {
	known := make(map[string]string, len(keys))
	for _, k := range keys {
		known[EnvName(k)] = k
	}
	return func(name string) string {
		return known[name]
	}
}

// flagKey maps a flag name to its config key: dashes become underscores,
// dots keep their nesting meaning.
func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// load merges every source into out. fs must already be parsed.
func load(fs *pflag.FlagSet, defaults any, out any) error {
	k := koanf.New(delim)

	if err := defaultLoader(k, defaults); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}

	if fs != nil {
		if f := fs.Lookup(ConfigFlag); f != nil && f.Value.String() != "" {
			if err := fileLoader(k, f.Value.String()); err != nil {
				return fmt.Errorf("load config file %s: %w", f.Value.String(), err)
			}
		}
	}

	if err := envLoader(k); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}

	if fs != nil {
		p := posflag.ProviderWithFlag(fs, delim, k, func(f *pflag.Flag) (string, any) {
			if f.Name == ConfigFlag {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(fs, f)
		})
		if err := k.Load(p, nil); err != nil {
			return fmt.Errorf("load flags: %w", err)
		}
	}

	if err := k.Unmarshal("", out); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// validate runs struct tags and returns every violation joined.
func validate(cfg any) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidators(v); err != nil {
		return fmt.Errorf("register validators: %w", err)
	}

	err := v.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, fmt.Errorf("%s: failed %q validation (value %v)", fe.Namespace(), fe.Tag(), redact(fe)))
	}
	return errors.Join(errs...)
}

func redact(fe validator.FieldError) any {
	name := strings.ToLower(fe.StructField())
	if strings.Contains(name, "key") || strings.Contains(name, "secret") {
		return "<redacted>"
	}
	return fe.Value()
}

// validHostPort accepts host:port or :port with a port in 1..65535.
func validHostPort(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.TrimSpace(s) != s {
		return false
	}
	_, port, err := net.SplitHostPort(s)
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n > 0 && n <= 65535
}
