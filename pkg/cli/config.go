package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/diarize/pkg/diarize"
	"github.com/haivivi/diarize/pkg/storage"
)

const (
	// DefaultBaseDir is the base configuration directory name.
	DefaultBaseDir = ".giztoy"
	// DefaultConfigFile is the configuration filename.
	DefaultConfigFile = "config.yaml"
	// DefaultContextName is used when no context is configured.
	DefaultContextName = "default"
)

// Store kinds.
const (
	StoreFile   = "file"
	StoreBadger = "badger"
	StoreNone   = "none"
)

// Config is the CLI configuration file.
type Config struct {
	AppName string `yaml:"-"`

	CurrentContext string              `yaml:"current_context,omitempty"`
	Contexts       map[string]*Context `yaml:"contexts,omitempty"`

	configPath string
}

// Context is one named configuration.
type Context struct {
	Name string `yaml:"name" json:"name"`

	// Engine tunes the diarization engine. Zero fields use defaults.
	Engine diarize.Config `yaml:"engine,omitempty" json:"engine,omitempty"`

	Store StoreConfig `yaml:"store,omitempty" json:"store,omitempty"`

	// Listen is the serve address. Default: ":8790".
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`
}

// StoreConfig selects where speaker profiles are kept.
type StoreConfig struct {
	// Kind is "file", "badger" or "none". Default: "file".
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Location is a directory or "s3://bucket/prefix" for file stores and
	// a directory for badger. Default: the app data directory.
	Location string `yaml:"location,omitempty" json:"location,omitempty"`

	// Codec is "msgpack" or "json" for file stores.
	Codec string `yaml:"codec,omitempty" json:"codec,omitempty"`

	// Session names the profile set. Default: the context name.
	Session string `yaml:"session,omitempty" json:"session,omitempty"`

	S3 storage.S3Options `yaml:"s3,omitempty" json:"s3,omitempty"`
}

// LoadConfig loads or creates the configuration for appName.
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from customPath, or from the
// default location when customPath is empty. A missing file is created.
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		paths, err := NewPaths(appName)
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = paths.ConfigFile()
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, ctx := range cfg.Contexts {
		ctx.Name = name
	}
	cfg.AppName = appName
	cfg.configPath = configPath
	return cfg, nil
}

// Save writes the configuration to disk.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string { return c.configPath }

// Dir returns the config directory.
func (c *Config) Dir() string { return filepath.Dir(c.configPath) }

// AddContext adds or replaces a context and saves.
func (c *Config) AddContext(name string, ctx *Context) error {
	ctx.Name = name
	c.Contexts[name] = ctx
	return c.Save()
}

// DeleteContext removes a context and saves.
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context and saves.
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns a named context.
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// ResolveContext returns the named context, else the current one, else a
// built-in default context that is not saved.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name != "" {
		return c.GetContext(name)
	}
	if c.CurrentContext != "" {
		return c.GetContext(c.CurrentContext)
	}
	return &Context{Name: DefaultContextName}, nil
}

// ListContexts returns context names in sorted order.
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SessionName returns the profile session for the context.
func (ctx *Context) SessionName() string {
	if ctx.Store.Session != "" {
		return ctx.Store.Session
	}
	if ctx.Name != "" {
		return ctx.Name
	}
	return DefaultContextName
}

// StoreKind returns the configured store kind, defaulting to file.
func (ctx *Context) StoreKind() string {
	if ctx.Store.Kind == "" {
		return StoreFile
	}
	return ctx.Store.Kind
}

// ListenAddr returns the serve address.
func (ctx *Context) ListenAddr() string {
	if ctx.Listen == "" {
		return ":8790"
	}
	return ctx.Listen
}

// setters maps dotted keys accepted by Set to their field.
var setters = map[string]func(*Context, string) error{
	"engine.sample_rate":         intField(func(c *Context) *int { return &c.Engine.SampleRate }),
	"engine.frame_ms":            intField(func(c *Context) *int { return &c.Engine.FrameMs }),
	"engine.hop_ms":              intField(func(c *Context) *int { return &c.Engine.HopMs }),
	"engine.num_ceps":            intField(func(c *Context) *int { return &c.Engine.NumCeps }),
	"engine.vad_threshold":       floatField(func(c *Context) *float64 { return &c.Engine.VADThreshold }),
	"engine.sensitivity":         floatField(func(c *Context) *float64 { return &c.Engine.Sensitivity }),
	"engine.history_size":        intField(func(c *Context) *int { return &c.Engine.HistorySize }),
	"engine.speaker_capacity":    intField(func(c *Context) *int { return &c.Engine.SpeakerCapacity }),
	"engine.cluster_window":      intField(func(c *Context) *int { return &c.Engine.ClusterWindow }),
	"engine.cluster_eps":         floatField(func(c *Context) *float64 { return &c.Engine.ClusterEps }),
	"engine.cluster_min_samples": intField(func(c *Context) *int { return &c.Engine.ClusterMinSamples }),
	"engine.min_cluster_history": intField(func(c *Context) *int { return &c.Engine.MinClusterHistory }),
	"engine.stability_window":    intField(func(c *Context) *int { return &c.Engine.StabilityWindow }),
	"engine.stability_votes":     intField(func(c *Context) *int { return &c.Engine.StabilityVotes }),
	"store.kind": func(c *Context, v string) error {
		switch v {
		case StoreFile, StoreBadger, StoreNone:
			c.Store.Kind = v
			return nil
		}
		return fmt.Errorf("store.kind must be %s, %s or %s", StoreFile, StoreBadger, StoreNone)
	},
	"store.location":     stringField(func(c *Context) *string { return &c.Store.Location }),
	"store.codec":        stringField(func(c *Context) *string { return &c.Store.Codec }),
	"store.session":      stringField(func(c *Context) *string { return &c.Store.Session }),
	"store.s3.region":    stringField(func(c *Context) *string { return &c.Store.S3.Region }),
	"store.s3.endpoint":  stringField(func(c *Context) *string { return &c.Store.S3.Endpoint }),
	"store.s3.access_key": stringField(func(c *Context) *string { return &c.Store.S3.AccessKey }),
	"store.s3.secret_key": stringField(func(c *Context) *string { return &c.Store.S3.SecretKey }),
	"store.s3.path_style": func(c *Context, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("store.s3.path_style: %w", err)
		}
		c.Store.S3.PathStyle = b
		return nil
	},
	"listen": stringField(func(c *Context) *string { return &c.Listen }),
}

// SettableKeys lists the keys accepted by Set, sorted.
func SettableKeys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Set assigns a dotted key such as "engine.sensitivity".
func (ctx *Context) Set(key, value string) error {
	set, ok := setters[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("unknown key %q", key)
	}
	return set(ctx, value)
}

func intField(field func(*Context) *int) func(*Context, string) error {
	return func(c *Context, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer %q", v)
		}
		*field(c) = n
		return nil
	}
}

func floatField(field func(*Context) *float64) func(*Context, string) error {
	return func(c *Context, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", v)
		}
		*field(c) = f
		return nil
	}
}

func stringField(field func(*Context) *string) func(*Context, string) error {
	return func(c *Context, v string) error {
		*field(c) = v
		return nil
	}
}

// MaskSecret masks a credential for display.
func MaskSecret(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
