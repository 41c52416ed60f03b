package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Source provides raw values for connection fields.
// Lookup reports false when the source has nothing for the field;
// an empty string counts as nothing.
type Source interface {
	Name() string
	Lookup(f Field) (string, bool)
}

// EnvSource reads fields from environment variables
type EnvSource struct {
	names  EnvNames
	lookup func(string) (string, bool)
}

// NewEnvSource creates a source reading the given variable names from the process environment
func NewEnvSource(names EnvNames) *EnvSource {
	return &EnvSource{
		names:  names,
		lookup: os.LookupEnv,
	}
}

func (s *EnvSource) Name() string {
	return "env"
}

func (s *EnvSource) Lookup(f Field) (string, bool) {
	name := s.names.For(f)
	if name == "" {
		return "", false
	}
	v, ok := s.lookup(name)
	return v, ok && v != ""
}

// FlagSource reads fields from a parsed flag set.
// Only flags the user actually passed are considered present.
type FlagSource struct {
	flags *pflag.FlagSet
}

// NewFlagSource wraps a flag set that RegisterFlags was called on
func NewFlagSource(flags *pflag.FlagSet) *FlagSource {
	return &FlagSource{flags: flags}
}

func (s *FlagSource) Name() string {
	return "flag"
}

func (s *FlagSource) Lookup(f Field) (string, bool) {
	if s.flags == nil {
		return "", false
	}
	fl := s.flags.Lookup(f.Flag())
	if fl == nil || !fl.Changed {
		return "", false
	}
	v := fl.Value.String()
	return v, v != ""
}

// RegisterFlags adds --host/-H, --port/-p, --username/-U, --password/-P,
// --queue/-q and --vhost to fs. Port is a string flag so that malformed
// values are reported by the resolver with the field name attached.
func RegisterFlags(fs *pflag.FlagSet) {
	names := DefaultEnvNames()
	for _, f := range Fields() {
		spec := fieldSpecs[f]
		usage := fmt.Sprintf("%s (overridden by $%s)", spec.usage, names.For(f))
		fs.StringP(spec.flag, spec.shorthand, "", usage)
	}
}

// FileSource reads fields from a YAML, JSON or TOML file.
// Keys may live at the top level or under a "rabbitmq" section.
type FileSource struct {
	path string
	v    *viper.Viper
}

// NewFileSource reads the file at path; the format follows its extension
func NewFileSource(path string) (*FileSource, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return &FileSource{path: path, v: v}, nil
}

func (s *FileSource) Name() string {
	return "file:" + s.path
}

func (s *FileSource) Lookup(f Field) (string, bool) {
	for _, key := range []string{"rabbitmq." + f.String(), f.String()} {
		if !s.v.IsSet(key) {
			continue
		}
		if v := s.v.GetString(key); v != "" {
			return v, true
		}
	}
	return "", false
}

// LoadDotEnv loads KEY=VALUE files into the process environment.
// Variables that are already set keep their value.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}
