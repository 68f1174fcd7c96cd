package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envVarPrefix = "MEMSYNC"

// Flags registered by RegisterFlags and the keys they override.
var flagKeys = map[string]string{
	"process": "process.name",
	"debug":   "debug",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config-dir", "", "directory holding "+FileName+" and the symbol cache")
	fs.String("process", "", "name of the target process")
	fs.Bool("debug", false, "log every tick")
}

// ConfigDir returns the --config-dir flag, if registered.
func ConfigDir(fs *pflag.FlagSet) string {
	if fs == nil {
		return ""
	}
	dir, _ := fs.GetString("config-dir")
	return dir
}

// Load reads the config file of ctx over the defaults. A missing file
// yields the defaults. Environment variables and, when fs is not nil,
// flags that were set take precedence over the file.
func Load(ctx *Context, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(ctx.ConfigFile())
	v.SetConfigType("toml")

	defaults, err := toMap(Default())
	if err != nil {
		return nil, err
	}
	for key, value := range flatten("", defaults) {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil && !notExist(err) {
		return nil, fmt.Errorf("error reading %s: %w", ctx.ConfigFile(), err)
	}

	// Nested options can be set through the environment, e.g.
	// engine.tick_interval as MEMSYNC_ENGINE_TICK_INTERVAL
	for _, k := range v.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", k, envVarPrefix+"_"+envVar, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling %s: %w", ctx.ConfigFile(), err)
	}
	return cfg, nil
}

func notExist(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || os.IsNotExist(err) || errors.Is(err, os.ErrNotExist)
}

// Write stores cfg as the config file of ctx.
func Write(ctx *Context, cfg *Config) error {
	m, err := toMap(cfg)
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigType("toml")
	if err := v.MergeConfigMap(m); err != nil {
		return err
	}
	if err := v.WriteConfigAs(ctx.ConfigFile()); err != nil {
		return fmt.Errorf("error writing %s: %w", ctx.ConfigFile(), err)
	}
	return nil
}

// toMap converts a struct into nested maps keyed by mapstructure tags, in
// the shape viper reads back from a file. Durations become strings.
func toMap(v interface{}) (map[string]interface{}, error) {
	enc, err := encode(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	out, ok := enc.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("cannot encode %T", v)
	}
	return out, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// encode lets mapstructure split structs into maps and normalizes what
// comes out so the TOML writer and viper's decoder agree on it.
func encode(v reflect.Value) (interface{}, error) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}

	if v.Type() == durationType {
		return time.Duration(v.Int()).String(), nil
	}

	switch v.Kind() {
	case reflect.Struct:
		m := make(map[string]interface{})
		if err := mapstructure.Decode(v.Interface(), &m); err != nil {
			return nil, fmt.Errorf("cannot encode %s: %w", v.Type(), err)
		}
		return encode(reflect.ValueOf(m))
	case reflect.Map:
		m := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			x, err := encode(iter.Value())
			if err != nil {
				return nil, err
			}
			m[fmt.Sprint(iter.Key().Interface())] = x
		}
		return m, nil
	case reflect.Slice, reflect.Array:
		// Tables need a typed list to be written as an array of tables
		if v.Type().Elem().Kind() == reflect.Struct {
			out := make([]map[string]interface{}, v.Len())
			for i := range out {
				x, err := encode(v.Index(i))
				if err != nil {
					return nil, err
				}
				out[i], _ = x.(map[string]interface{})
			}
			return out, nil
		}
		out := make([]interface{}, v.Len())
		for i := range out {
			x, err := encode(v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	default:
		return v.Interface(), nil
	}
}

// flatten turns nested maps into dotted keys. Lists stay whole.
func flatten(prefix string, m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]interface{}); ok && len(sub) > 0 {
			for fk, fv := range flatten(key, sub) {
				out[fk] = fv
			}
			continue
		}
		out[key] = v
	}
	return out
}
