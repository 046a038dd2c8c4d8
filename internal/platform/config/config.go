package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the sample bot server's configuration.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Log    LogConfig    `koanf:"log"`
	Direqt DireqtConfig `koanf:"direqt"`
	Bot    BotConfig    `koanf:"bot"`
}

type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	WebhookPath  string `koanf:"webhook_path"`
	StaticDir    string `koanf:"static_dir"`
	MaxBodyBytes int64  `koanf:"max_body_bytes"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type DireqtConfig struct {
	AccessToken      string `koanf:"access_token"`
	SigningSecret    string `koanf:"signing_secret"`
	MessagingAPIRoot string `koanf:"messaging_apiroot"`
	StrictVersion    bool   `koanf:"strict_version"`
}

type BotConfig struct {
	Mode         string `koanf:"mode"`
	MediaBaseURL string `koanf:"media_base_url"`
}

// botEnvKeys maps variables whose koanf keys contain underscores. Anything
// else under DIREQT_ falls back to replacing "_" with ".".
var botEnvKeys = map[string]string{
	"DIREQT_ACCESS_TOKEN":          "direqt.access_token",
	"DIREQT_SIGNING_SECRET":        "direqt.signing_secret",
	"DIREQT_MESSAGING_APIROOT":     "direqt.messaging_apiroot",
	"DIREQT_STRICT_VERSION":        "direqt.strict_version",
	"DIREQT_SERVER_WEBHOOK_PATH":   "server.webhook_path",
	"DIREQT_SERVER_STATIC_DIR":     "server.static_dir",
	"DIREQT_SERVER_MAX_BODY_BYTES": "server.max_body_bytes",
	"DIREQT_BOT_MEDIA_BASE_URL":    "bot.media_base_url",
}

func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.host":           "0.0.0.0",
		"server.port":           3000,
		"server.webhook_path":   "/webhook",
		"server.max_body_bytes": 1 << 20,
		"log.level":             "info",
		"log.format":            "json",
		"bot.mode":              "echo",
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			continue
		}
	}

	// Environment variables override everything
	// DIREQT_SERVER_PORT -> server.port
	_ = k.Load(env.Provider("DIREQT_", ".", func(s string) string {
		if key, ok := botEnvKeys[s]; ok {
			return key
		}
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "DIREQT_")),
			"_", ".",
		)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
