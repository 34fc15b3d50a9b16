// Package config loads medchat settings.
//
// Sources, later ones winning:
//   - built-in defaults
//   - a TOML file ($XDG_CONFIG_HOME/medchat/config.toml, --config or MEDCHAT_CONFIG)
//   - a .env file in the working directory
//   - MEDCHAT_* environment variables
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIBaseURL     = "http://localhost:8000"
	DefaultAPIVariant     = "query"
	DefaultUserID         = 1
	DefaultRequestTimeout = 30 * time.Second

	DefaultCaptureBackend     = "command"
	DefaultCaptureCommand     = "arecord -q -f cd -t wav -"
	DefaultCaptureDeviceURL   = "ws://localhost:8000/ws/mic"
	DefaultCaptureChunkSize   = 4096
	DefaultCaptureFilename    = "voice.webm"
	DefaultCaptureContentType = "audio/webm"

	DefaultLogLevel = "info"
	DefaultLogFile  = "medchat.log"

	DefaultDevServerAddr   = ":8000"
	DefaultGraphTTL        = 2 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
	DefaultNoticeTTL       = 6 * time.Second
	DefaultNoticeMax       = 20
	envPrefix              = "MEDCHAT_"
	envConfigPath          = envPrefix + "CONFIG"
	configDirName          = "medchat"
	configFileName         = "config.toml"
)

// Dev server backends
const (
	BackendCanned = "canned"
	BackendGemini = "gemini"
	BackendGoogle = "google"
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
)

// Capture backends
const (
	CaptureCommand   = "command"
	CaptureWebSocket = "websocket"
	CaptureFile      = "file"
	CaptureNone      = "none"
)

// Config is the complete medchat configuration
type Config struct {
	APIBaseURL     string          `toml:"api_base_url"`
	APIVariant     string          `toml:"api_variant"`
	APIToken       string          `toml:"api_token"`
	UserID         int             `toml:"user_id"`
	RequestTimeout time.Duration   `toml:"request_timeout"`
	Capture        CaptureConfig   `toml:"capture"`
	Log            LogConfig       `toml:"log"`
	DevServer      DevServerConfig `toml:"devserver"`
	Notices        NoticesConfig   `toml:"notices"`
}

// CaptureConfig selects and tunes the microphone
type CaptureConfig struct {
	Backend     string `toml:"backend"`
	Command     string `toml:"command"`
	DeviceURL   string `toml:"device_url"`
	File        string `toml:"file"`
	ChunkSize   int    `toml:"chunk_size"`
	Filename    string `toml:"filename"`
	ContentType string `toml:"content_type"`
}

// LogConfig tunes the zap logger
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DevServerConfig tunes the local development backend
type DevServerConfig struct {
	Addr            string        `toml:"addr"`
	JWTSecret       string        `toml:"jwt_secret"`
	GraphTTL        time.Duration `toml:"graph_ttl"`
	CleanupInterval time.Duration `toml:"cleanup_interval"`

	// Answers is canned or gemini
	Answers      string `toml:"answers"`
	GeminiAPIKey string `toml:"gemini_api_key"`
	GeminiModel  string `toml:"gemini_model"`

	// Speech is canned or google
	Speech         string `toml:"speech"`
	SpeechLanguage string `toml:"speech_language"`

	// GraphStore is memory or mongo
	GraphStore    string `toml:"graph_store"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// NoticesConfig tunes transient user notices
type NoticesConfig struct {
	TTL time.Duration `toml:"ttl"`
	Max int           `toml:"max"`
}

// Default returns the built-in configuration. UserID stays 0 so a user id
// carried by the API token can be used; see ResolveUserID.
func Default() *Config {
	return &Config{
		APIBaseURL:     DefaultAPIBaseURL,
		APIVariant:     DefaultAPIVariant,
		RequestTimeout: DefaultRequestTimeout,
		Capture: CaptureConfig{
			Backend:     DefaultCaptureBackend,
			Command:     DefaultCaptureCommand,
			DeviceURL:   DefaultCaptureDeviceURL,
			ChunkSize:   DefaultCaptureChunkSize,
			Filename:    DefaultCaptureFilename,
			ContentType: DefaultCaptureContentType,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		DevServer: DevServerConfig{
			Addr:            DefaultDevServerAddr,
			GraphTTL:        DefaultGraphTTL,
			CleanupInterval: DefaultCleanupInterval,
			Answers:         BackendCanned,
			Speech:          BackendCanned,
			GraphStore:      StoreMemory,
		},
		Notices: NoticesConfig{
			TTL: DefaultNoticeTTL,
			Max: DefaultNoticeMax,
		},
	}
}

// Dir returns the medchat configuration directory
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(base, configDirName), nil
}

// DefaultPath returns the default TOML file location
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load builds the configuration. An explicit path (argument or
// MEDCHAT_CONFIG) must exist; the default file is optional.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := true
	if path == "" {
		path = os.Getenv(envConfigPath)
	}
	if path == "" {
		explicit = false
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		if err := LoadTOML(cfg, path); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes the TOML file at path over cfg
func LoadTOML(cfg *Config, path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored; variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies MEDCHAT_* environment variables
func (c *Config) ApplyEnvOverrides() error {
	strVars := map[string]*string{
		"API_BASE_URL":         &c.APIBaseURL,
		"API_VARIANT":          &c.APIVariant,
		"API_TOKEN":            &c.APIToken,
		"CAPTURE_BACKEND":      &c.Capture.Backend,
		"CAPTURE_COMMAND":      &c.Capture.Command,
		"CAPTURE_DEVICE_URL":   &c.Capture.DeviceURL,
		"CAPTURE_FILE":         &c.Capture.File,
		"CAPTURE_FILENAME":     &c.Capture.Filename,
		"CAPTURE_CONTENT_TYPE": &c.Capture.ContentType,
		"LOG_LEVEL":            &c.Log.Level,
		"LOG_FILE":             &c.Log.File,
		"DEVSERVER_ADDR":       &c.DevServer.Addr,
		"DEVSERVER_JWT_SECRET": &c.DevServer.JWTSecret,

		"DEVSERVER_ANSWERS":         &c.DevServer.Answers,
		"DEVSERVER_GEMINI_API_KEY":  &c.DevServer.GeminiAPIKey,
		"DEVSERVER_GEMINI_MODEL":    &c.DevServer.GeminiModel,
		"DEVSERVER_SPEECH":          &c.DevServer.Speech,
		"DEVSERVER_SPEECH_LANGUAGE": &c.DevServer.SpeechLanguage,
		"DEVSERVER_GRAPH_STORE":     &c.DevServer.GraphStore,
		"DEVSERVER_MONGO_URI":       &c.DevServer.MongoURI,
		"DEVSERVER_MONGO_DATABASE":  &c.DevServer.MongoDatabase,
	}
	for name, dst := range strVars {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}

	// Unprefixed names used by the Google and MongoDB tooling
	if c.DevServer.GeminiAPIKey == "" {
		c.DevServer.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.DevServer.MongoURI == "" {
		c.DevServer.MongoURI = os.Getenv("MONGODB_URI")
	}

	intVars := map[string]*int{
		"USER_ID":            &c.UserID,
		"CAPTURE_CHUNK_SIZE": &c.Capture.ChunkSize,
		"NOTICES_MAX":        &c.Notices.Max,
	}
	for name, dst := range intVars {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = n
	}

	durVars := map[string]*time.Duration{
		"REQUEST_TIMEOUT":            &c.RequestTimeout,
		"DEVSERVER_GRAPH_TTL":        &c.DevServer.GraphTTL,
		"DEVSERVER_CLEANUP_INTERVAL": &c.DevServer.CleanupInterval,
		"NOTICES_TTL":                &c.Notices.TTL,
	}
	for name, dst := range durVars {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	return nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_base_url must be an http(s) URL, got %q", c.APIBaseURL)
	}

	switch c.APIVariant {
	case "query", "legacy":
	default:
		return fmt.Errorf("api_variant must be query or legacy, got %q", c.APIVariant)
	}

	if c.UserID < 0 {
		return fmt.Errorf("user_id must not be negative, got %d", c.UserID)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}

	switch c.Capture.Backend {
	case CaptureCommand:
		if strings.TrimSpace(c.Capture.Command) == "" {
			return errors.New("capture.command is required for the command backend")
		}
	case CaptureWebSocket:
		du, err := url.Parse(c.Capture.DeviceURL)
		if err != nil || (du.Scheme != "ws" && du.Scheme != "wss") {
			return fmt.Errorf("capture.device_url must be a ws(s) URL, got %q", c.Capture.DeviceURL)
		}
	case CaptureFile:
		if strings.TrimSpace(c.Capture.File) == "" {
			return errors.New("capture.file is required for the file backend")
		}
	case CaptureNone:
	default:
		return fmt.Errorf("capture.backend must be command, websocket, file or none, got %q", c.Capture.Backend)
	}
	if c.Capture.ChunkSize <= 0 {
		return fmt.Errorf("capture.chunk_size must be positive, got %d", c.Capture.ChunkSize)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}

	if c.DevServer.GraphTTL <= 0 || c.DevServer.CleanupInterval <= 0 {
		return errors.New("devserver.graph_ttl and devserver.cleanup_interval must be positive")
	}
	if err := c.DevServer.validateBackends(); err != nil {
		return err
	}
	if c.Notices.TTL <= 0 || c.Notices.Max <= 0 {
		return errors.New("notices.ttl and notices.max must be positive")
	}

	return nil
}

// ResolveUserID picks the user id: explicit configuration first, then the
// id carried by the API token, then DefaultUserID
func (c *Config) ResolveUserID(fromToken func(token string) (int, error)) int {
	if c.UserID > 0 {
		return c.UserID
	}
	if c.APIToken != "" && fromToken != nil {
		if id, err := fromToken(c.APIToken); err == nil && id > 0 {
			return id
		}
	}
	return DefaultUserID
}

// LogFilePath returns where the interactive client writes its log
func (c *Config) LogFilePath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	if dir, err := Dir(); err == nil {
		return filepath.Join(dir, DefaultLogFile)
	}
	return DefaultLogFile
}

func (d DevServerConfig) validateBackends() error {
	switch d.Answers {
	case BackendCanned:
	case BackendGemini:
		if d.GeminiAPIKey == "" {
			return errors.New("devserver.gemini_api_key (or GEMINI_API_KEY) is required for gemini answers")
		}
	default:
		return fmt.Errorf("devserver.answers must be canned or gemini, got %q", d.Answers)
	}

	switch d.Speech {
	case BackendCanned, BackendGoogle:
	default:
		return fmt.Errorf("devserver.speech must be canned or google, got %q", d.Speech)
	}

	switch d.GraphStore {
	case StoreMemory:
	case StoreMongo:
		if d.MongoURI != "" {
			u, err := url.Parse(d.MongoURI)
			if err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
				return fmt.Errorf("devserver.mongo_uri must be a mongodb URI, got %q", d.MongoURI)
			}
		}
	default:
		return fmt.Errorf("devserver.graph_store must be memory or mongo, got %q", d.GraphStore)
	}
	return nil
}
