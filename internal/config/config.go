package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env holds all runtime configuration, read from CHOREQUEST_* variables.
type Env struct {
	Port            string `envconfig:"PORT" default:"8080"`
	DBPath          string `envconfig:"DB_PATH" default:"chorequest.db"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
}

const namespace = "CHOREQUEST"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}
