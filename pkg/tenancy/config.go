package tenancy

import (
	"errors"
	"io"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable read by LoadOptions.
const EnvPrefix = "MONGO_TENANT_"

var dotenvLoaded sync.Once

// LoadOptions reads options from MONGO_TENANT_* environment variables.
// A .env file in the working directory is loaded once, if present.
//
//	MONGO_TENANT_ENABLED=true
//	MONGO_TENANT_ID_KEY=tenant
//	MONGO_TENANT_ID_TYPE=objectid
//	MONGO_TENANT_ACCESSOR_METHOD=byTenant
//	MONGO_TENANT_REQUIRE_ID=false
func LoadOptions() (Options, error) {
	dotenvLoaded.Do(func() {
		// Missing .env is fine.
		_ = godotenv.Load()
	})
	opts, err := env.ParseAsWithOptions[Options](env.Options{Prefix: EnvPrefix})
	if err != nil {
		return Options{}, errors.Join(ErrInvalidConfig, err)
	}
	return opts.normalize(), nil
}

// ParseOptionsYAML decodes a partial YAML document on top of the defaults.
// Unknown keys are ignored and an empty document yields the defaults.
func ParseOptionsYAML(r io.Reader) (Options, error) {
	opts := DefaultOptions()
	if err := yaml.NewDecoder(r).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, errors.Join(ErrInvalidConfig, err)
	}
	return opts.normalize(), nil
}
