package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/session"
)

// Config is the configuration of the server. Every field can be set from a
// CARDSTAGE_ prefixed environment variable.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	APIPort  int    `env:"API_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`

	// DatabaseURL selects the match store by scheme: sqlite:// or
	// postgres(ql)://.
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"sqlite://cardstage.db"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"./migrations"`
	// RedisURL enables the shared session directory. Sessions are tracked in
	// memory when empty.
	RedisURL   string        `env:"REDIS_URL"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"10m"`
	// AMQPURL enables publishing of match events.
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"cardstage"`

	FirebaseProjectID       string `env:"FIREBASE_PROJECT_ID"`
	FirebaseAPIKey          string `env:"FIREBASE_API_KEY"`
	FirebaseCredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`
	// APITokens protect the status API when Firebase is not configured. The
	// format is token:name pairs separated by commas.
	APITokens map[string]string `env:"API_TOKENS"`

	Participants     uint32        `env:"PARTICIPANTS" envDefault:"2"`
	TurnLimit        uint32        `env:"TURN_LIMIT" envDefault:"20"`
	WaitingTimeout   time.Duration `env:"WAITING_TIMEOUT" envDefault:"2m"`
	SetupTimeout     time.Duration `env:"SETUP_TIMEOUT" envDefault:"1m"`
	GameStartTimeout time.Duration `env:"GAME_START_TIMEOUT" envDefault:"0s"`
	PlayDuration     time.Duration `env:"PLAY_DURATION" envDefault:"60s"`
	StartingLife     int           `env:"STARTING_LIFE" envDefault:"20"`
	OpeningHandSize  int           `env:"OPENING_HAND_SIZE" envDefault:"5"`

	PingInterval time.Duration `env:"PING_INTERVAL" envDefault:"15s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"45s"`
	RelaySize    int           `env:"RELAY_SIZE" envDefault:"256"`
	OutboxSize   int           `env:"OUTBOX_SIZE" envDefault:"64"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "CARDSTAGE_"}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %v", err)
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if _, err := log.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid api port %d", c.APIPort)
	}
	if c.APIPort == c.Port {
		return fmt.Errorf("the api port must differ from the websocket port")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("both a TLS certificate and key are required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("a database url is required")
	}
	if c.PlayDuration <= 0 {
		return fmt.Errorf("play duration must be positive")
	}
	if c.PingInterval <= 0 || c.IdleTimeout <= c.PingInterval {
		return fmt.Errorf("idle timeout must be longer than the ping interval")
	}
	if c.RelaySize <= 0 || c.OutboxSize <= 0 {
		return fmt.Errorf("relay and outbox sizes must be positive")
	}
	if c.WaitingTimeout < 0 || c.SetupTimeout < 0 || c.GameStartTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	return c.Session().Validate()
}

// Session returns the rules every session is created with.
func (c *Config) Session() session.Config {
	return session.Config{
		Participants:     c.Participants,
		TurnLimit:        c.TurnLimit,
		WaitingTimeout:   c.WaitingTimeout,
		SetupTimeout:     c.SetupTimeout,
		GameStartTimeout: c.GameStartTimeout,
		PlayDuration:     c.PlayDuration,
		StartingLife:     c.StartingLife,
		OpeningHandSize:  c.OpeningHandSize,
	}
}
