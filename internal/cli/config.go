package cli

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"planboard-backend/pkg/plannerclient"
)

const credentialsfile = ".planboard"

// A Config holds the CLI session.
type Config struct {
	Endpoint    string `json:"endpoint"`
	Username    string `json:"username"`
	BearerToken string `json:"bearer_token"`
}

// Overrides come from flags or the environment and win over the stored file.
type Overrides struct {
	Endpoint string
	Token    string
}

func credentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not find home directory")
	}
	return filepath.Join(home, credentialsfile), nil
}

// Load reads the stored session. A missing file yields an empty Config.
func Load() (Config, error) {
	var cfg Config

	filename, err := credentialsPath()
	if err != nil {
		return cfg, err
	}

	payload, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrap(err, "could not read credentials file")
	}

	err = json.Unmarshal(payload, &cfg)
	return cfg, errors.Wrap(err, "could not parse credentials file")
}

// Save stores the session in the user's home directory.
func Save(cfg Config) error {
	payload, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not serialize config")
	}

	filename, err := credentialsPath()
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(filename, payload, 0o600), "could not write %s", filename)
}

// Remove deletes the stored session.
func Remove() error {
	filename, err := credentialsPath()
	if err != nil {
		return err
	}
	if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "could not remove credentials file")
	}
	return nil
}

func (o Overrides) apply(cfg Config) Config {
	if o.Endpoint != "" {
		cfg.Endpoint = o.Endpoint
	}
	if o.Token != "" {
		cfg.BearerToken = o.Token
	}
	return cfg
}

// connect builds an API client from the stored session and overrides.
func connect(o Overrides) (*plannerclient.Client, Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, cfg, err
	}
	cfg = o.apply(cfg)
	if cfg.Endpoint == "" {
		return nil, cfg, errors.New("no endpoint configured: run login or pass --endpoint")
	}

	client, err := plannerclient.NewDefaultClient(cfg.Endpoint)
	if err != nil {
		return nil, cfg, errors.Wrap(err, "could not reach given endpoint")
	}
	client.SetBearerToken(cfg.BearerToken)
	return client, cfg, nil
}
