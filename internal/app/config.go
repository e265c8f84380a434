package app

import (
	"os"

	"courier/internal/config"
)

// LoadConfig loads configuration, resolving *_SSM_PARAM pointers through
// SSM Parameter Store outside local.
func LoadConfig() (*config.Config, error) {
	var secrets config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		secrets = config.NewSSMProvider(os.Getenv("AWS_REGION"))
	}
	return config.Load(secrets)
}
