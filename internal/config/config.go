package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080"`
	Redis      Redis  `yaml:"redis"`
	NATS       NATS   `yaml:"nats"`
	Game       Game   `yaml:"game"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// NATS - an empty URL disables the summary publisher.
type NATS struct {
	URL     string `yaml:"url" env:"NATS_URL" env-default:""`
	Subject string `yaml:"subject" env:"NATS_SUBJECT" env-default:"games.finished"`
}

type Game struct {
	StartCountdown time.Duration `yaml:"start-countdown" env-default:"3s"`
	ReconnectGrace time.Duration `yaml:"reconnect-grace" env-default:"20s"`
	FinishedGrace  time.Duration `yaml:"finished-grace" env-default:"10s"`
	BackfillWait   time.Duration `yaml:"backfill-wait" env-default:"10s"`
	BotBackfill    bool          `yaml:"bot-backfill" env-default:"true"`
	BotDelay       time.Duration `yaml:"bot-delay" env-default:"600ms"`
	RPSMaxRounds   int           `yaml:"rps-max-rounds" env-default:"3"`
	LudoBonusCap   int           `yaml:"ludo-bonus-cap" env-default:"3"`
	SendBuffer     int           `yaml:"send-buffer" env-default:"64"`
	Points         Points        `yaml:"points"`
}

type Points struct {
	Win  int `yaml:"win" env-default:"10"`
	Draw int `yaml:"draw" env-default:"5"`
	Loss int `yaml:"loss" env-default:"0"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
