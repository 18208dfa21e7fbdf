package catalog

import (
	"io/ioutil"
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// RegistryConfig is the optional per-user config file (registry.toml) that
// seeds a freshly created catalog with a set of default remotes, so a new
// machine doesn't need a `repo add` for every well-known catalog source.
type RegistryConfig struct {
	Remotes []ConfiguredRemote `toml:"remotes"`
}

// ConfiguredRemote is one [[remotes]] entry in registry.toml.
type ConfiguredRemote struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// LoadRegistryConfig reads and parses a registry.toml file. A missing file
// is not an error: it returns a zero-value RegistryConfig.
func LoadRegistryConfig(path string) (RegistryConfig, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RegistryConfig{}, nil
		}
		return RegistryConfig{}, errors.Wrapf(err, "reading registry config %q", path)
	}

	var cfg RegistryConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return RegistryConfig{}, errors.Wrapf(err, "parsing registry config %q", path)
	}
	return cfg, nil
}

// SeedRemotes registers every remote named in cfg that the catalog doesn't
// already track. It never overwrites or removes an existing remote, so a
// user's own `repo add`/`repo remove` calls always win over the config file.
func (db *DB) SeedRemotes(cfg RegistryConfig) error {
	existing, err := db.ListRemotes()
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, r := range existing {
		known[r.Name] = true
	}

	for _, r := range cfg.Remotes {
		if known[r.Name] {
			continue
		}
		if err := db.AddRemote(r.Name, r.URL); err != nil {
			return errors.Wrapf(err, "seeding remote %q from registry config", r.Name)
		}
	}
	return nil
}
