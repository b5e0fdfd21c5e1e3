// Package config loads and validates the two configuration structs this
// core consumes as an opaque collaborator: NameserverConfig for
// cmd/rr-nsd and ResolverConfig for cmd/rr-resolverd. Loading is layered:
// defaults via the structs provider, a YAML file via the file provider,
// then environment overrides via env/v2 — validated with
// go-playground/validator struct tags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// NameserverConfig is the authoritative server's configuration (§6).
type NameserverConfig struct {
	UDPAddr  string   `koanf:"udp_addr" validate:"required"`
	TCPAddr  string   `koanf:"tcp_addr" validate:"required"`
	Zones    []string `koanf:"zones" validate:"required,min=1,dive,required"`
	LogLevel string   `koanf:"log_level" validate:"required,oneof=debug info warn error"`
	Env      string   `koanf:"env" validate:"required,oneof=dev prod"`
	Threads  int      `koanf:"threads" validate:"required,gte=1"`
}

var defaultNameserverConfig = NameserverConfig{
	UDPAddr:  ":53",
	TCPAddr:  ":53",
	LogLevel: "info",
	Env:      "prod",
	Threads:  16,
}

// RootHint is one configured root server address (§6 resolver.root_hints).
type RootHint struct {
	Name string `koanf:"name" validate:"required"`
	Addr string `koanf:"addr" validate:"required,ip"`
}

// CacheSettings bounds the resolver cache (§6 resolver.cache).
type CacheSettings struct {
	MaxEntries    int           `koanf:"max_entries" validate:"required,gte=1"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"required"`
}

// TraceSettings controls per-resolution tracing (§4.7, §6 resolver.trace).
type TraceSettings struct {
	Enabled     bool   `koanf:"enabled"`
	Destination string `koanf:"destination"`
}

// ResolverConfig is the recursive resolver's configuration (§6).
type ResolverConfig struct {
	UDPAddr        string        `koanf:"udp_addr" validate:"required"`
	TCPAddr        string        `koanf:"tcp_addr" validate:"required"`
	RootHints      []RootHint    `koanf:"root_hints" validate:"required,min=1,dive"`
	Cache          CacheSettings `koanf:"cache"`
	QueryTimeoutMS int           `koanf:"query_timeout_ms" validate:"required,gte=1"`
	TotalTimeoutMS int           `koanf:"total_timeout_ms" validate:"required,gte=1"`
	MaxAttempts    int           `koanf:"max_attempts" validate:"required,gte=1"`
	Trace          TraceSettings `koanf:"trace"`
	LogLevel       string        `koanf:"log_level" validate:"required,oneof=debug info warn error"`
	Env            string        `koanf:"env" validate:"required,oneof=dev prod"`
}

var defaultResolverConfig = ResolverConfig{
	UDPAddr: ":53",
	TCPAddr: ":53",
	Cache: CacheSettings{
		MaxEntries:    10000,
		SweepInterval: 30 * time.Second,
	},
	QueryTimeoutMS: 3000,
	TotalTimeoutMS: 20000,
	MaxAttempts:    16,
	LogLevel:       "info",
	Env:            "prod",
}

// envOpt builds the env/v2 provider options shared by both loaders:
// variables are matched by prefix, lowercased, and comma/space-separated
// values are split into slices.
func envOpt(prefix string) env.Opt {
	return env.Opt{
		Prefix: prefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, prefix))
			value = strings.TrimSpace(value)
			if value == "" {
				return key, value
			}
			if strings.ContainsAny(value, ", ") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}
			return key, value
		},
	}
}

// LoadNameserver reads the nameserver configuration from the YAML file at
// path, applying defaults first and RRNS_-prefixed environment overrides
// last, then validates the result.
func LoadNameserver(path string) (*NameserverConfig, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultNameserverConfig, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading default nameserver config: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading nameserver config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(".", envOpt("RRNS_")), nil); err != nil {
		return nil, fmt.Errorf("loading nameserver env overrides: %w", err)
	}

	var cfg NameserverConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling nameserver config: %w", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("nameserver config validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadResolver reads the resolver configuration from the YAML file at
// path, applying defaults first and RRRES_-prefixed environment overrides
// last, then validates the result.
func LoadResolver(path string) (*ResolverConfig, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultResolverConfig, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading default resolver config: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading resolver config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(".", envOpt("RRRES_")), nil); err != nil {
		return nil, fmt.Errorf("loading resolver env overrides: %w", err)
	}

	var cfg ResolverConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling resolver config: %w", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("resolver config validation failed: %w", err)
	}
	return &cfg, nil
}
