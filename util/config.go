package util

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const Name = "copse"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

// PeerConf is one federation partner as written in the config file. The
// inbound password is stored as a bcrypt hash, the outbound one in clear
// because it has to be presented to the peer.
type PeerConf struct {
	Id       string `yaml:"id"`
	Name     string `yaml:"name"`
	BaseUrl  string `yaml:"baseUrl"`
	Enabled  *bool  `yaml:"enabled"`
	Outbound struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"outbound"`
	Inbound struct {
		Username     string `yaml:"username"`
		PasswordHash string `yaml:"passwordHash"`
	} `yaml:"inbound"`
}

type AppConfig struct {
	Conf struct {
		Host            string
		HttpPort        int           `yaml:"httpPort"`
		SrvUrl          string        `yaml:"srvUrl"`
		Database        string        `yaml:"database"`
		LogLevel        string        `yaml:"logLevel"`
		LogJson         bool          `yaml:"logJson"`
		DeliveryTimeout time.Duration `yaml:"deliveryTimeout"`
		ProfileCacheTtl time.Duration `yaml:"profileCacheTtl"`
		AutoApprove     bool          `yaml:"autoApprove"`
		MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
		RateLimit       float64       `yaml:"rateLimit"`
		RateBurst       int           `yaml:"rateBurst"`
	}
	Peers []PeerConf `yaml:"peers"`
}

// ApiBaseURL is the URL every local identity reference starts with,
// e.g. http://localhost:8080/api/.
func (c *AppConfig) ApiBaseURL() string {
	return NormalizeBaseURL(c.Conf.SrvUrl) + "api/"
}

func ReadConf() (*AppConfig, error) {
	configPath := ResolveFilePath(ConfigFileName)

	buf, err := os.ReadFile(configPath)
	if err != nil {
		log.Info().Str("path", configPath).Msg("Config file not found, using embedded defaults")
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			if writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0600); writeErr != nil {
				log.Warn().Err(writeErr).Str("path", userConfigPath).Msg("Could not write default config")
			} else {
				log.Info().Str("path", userConfigPath).Msg("Created default config file")
			}
		}
	}

	return ParseConf(buf)
}

// ParseConf decodes buf on top of the embedded defaults and applies the
// COPSE_* environment overrides.
func ParseConf(buf []byte) (*AppConfig, error) {
	c := &AppConfig{}
	if err := yaml.Unmarshal(embeddedConfig, c); err != nil {
		return nil, errors.Wrap(err, "in embedded config")
	}
	c.Peers = nil
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, errors.Wrap(err, "in config file")
	}

	applyEnv(c)

	if c.Conf.SrvUrl == "" {
		c.Conf.SrvUrl = "http://" + c.Conf.Host + ":" + strconv.Itoa(c.Conf.HttpPort) + "/"
	}
	if c.Conf.DeliveryTimeout <= 0 {
		c.Conf.DeliveryTimeout = 5 * time.Second
	}
	return c, nil
}

func applyEnv(c *AppConfig) {
	if v := os.Getenv("COPSE_HOST"); v != "" {
		c.Conf.Host = v
	}
	if v := os.Getenv("COPSE_HTTPPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			log.Warn().Str("value", v).Msg("Ignoring invalid COPSE_HTTPPORT")
		} else {
			c.Conf.HttpPort = port
		}
	}
	if v := os.Getenv("COPSE_SRVURL"); v != "" {
		c.Conf.SrvUrl = v
	}
	if v := os.Getenv("COPSE_DB"); v != "" {
		c.Conf.Database = v
	}
	if v := os.Getenv("COPSE_LOGLEVEL"); v != "" {
		c.Conf.LogLevel = v
	}
	if v := os.Getenv("COPSE_DELIVERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Warn().Str("value", v).Msg("Ignoring invalid COPSE_DELIVERY_TIMEOUT")
		} else {
			c.Conf.DeliveryTimeout = d
		}
	}
	if v := os.Getenv("COPSE_AUTO_APPROVE"); v != "" {
		c.Conf.AutoApprove = strings.EqualFold(v, "true")
	}
}
