package config

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const dotEnvFile = ".env"

// parseEnv overlays variables from the process environment and, with lower
// precedence, from an optional dotenv file. A missing file is not an error.
func parseEnv(ctx context.Context, config *Config, dotEnvPath string) error {
	lookupers := []envconfig.Lookuper{envconfig.OsLookuper()}

	if dotEnvPath != "" {
		vars, err := godotenv.Read(dotEnvPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return err
		default:
			lookupers = append(lookupers, envconfig.MapLookuper(vars))
		}
	}

	return envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   config,
		Lookuper: envconfig.MultiLookuper(lookupers...),
	})
}
