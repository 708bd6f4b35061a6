package env

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds connection settings sourced from the environment,
// falling back to the defaults below when a variable is unset.
type Config struct {
	Host      string `env:"EVENTSOCKET_HOST,default=127.0.0.1"`
	Port      int    `env:"EVENTSOCKET_PORT,default=8021"`
	Password  string `env:"EVENTSOCKET_PASSWORD,default=ClueCon"`
	DebugHTTP bool   `env:"EVENTSOCKET_DEBUG"`
	HTTPPort  string `env:"EVENTSOCKET_HTTP_PORT,default=8022"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			panic(err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
