package configs

import (
	"context"
	"encoding/json"
	"log"
	"os"

	custerror "github.com/polycast/relay/internal/error"

	"gopkg.in/yaml.v3"
)

const ENV_CONFIG_FILE_PATH = "CONFIG_FILE_PATH"

var globalConfigs *Configs

type Configs struct {
	Public       HttpConfigs         `json:"public,omitempty" yaml:"public,omitempty"`
	Control      HttpConfigs         `json:"control,omitempty" yaml:"control,omitempty"`
	Logger       LoggerConfigs       `json:"logger,omitempty" yaml:"logger,omitempty"`
	TokenService TokenServiceConfigs `json:"tokenService,omitempty" yaml:"tokenService,omitempty"`
	Sqlite       SqliteConfigs       `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	EventStore   EventStoreConfigs   `json:"eventStore,omitempty" yaml:"eventStore,omitempty"`
	Ffmpeg       FfmpegConfigs       `json:"ffmpeg,omitempty" yaml:"ffmpeg,omitempty"`
	Relay        RelayConfigs        `json:"relay,omitempty" yaml:"relay,omitempty"`
	Templates    TemplateConfigs     `json:"templates,omitempty" yaml:"templates,omitempty"`
}

func (c Configs) String() string {
	configBytes, _ := json.Marshal(c)
	return string(configBytes)
}

func Init(ctx context.Context) {
	configs, err := readConfig()
	if err != nil {
		log.Fatal(err)
		return
	}
	globalConfigs = configs
}

func Get() *Configs {
	return globalConfigs
}

type HttpConfigs struct {
	Name string    `json:"name,omitempty" yaml:"name,omitempty"`
	Port int       `json:"port,omitempty" yaml:"port,omitempty"`
	Tls  TlsConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
}

type TlsConfig struct {
	Cert    string `json:"cert,omitempty" yaml:"cert,omitempty"`
	Key     string `json:"key,omitempty" yaml:"key,omitempty"`
	Enabled bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

func (c TlsConfig) IsEnabled() bool {
	if len(c.Cert) > 0 && len(c.Key) > 0 {
		return true
	}
	if c.Enabled {
		return true
	}
	return false
}

type LoggerConfigs struct {
	Level    string `json:"level,omitempty" yaml:"level,omitempty"`
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
}

type TokenServiceConfigs struct {
	BaseUrl         string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Username        string `json:"username,omitempty" yaml:"username,omitempty"`
	Token           string `json:"token,omitempty" yaml:"token,omitempty"`
	CacheTtlSeconds int    `json:"cacheTtlSeconds,omitempty" yaml:"cacheTtlSeconds,omitempty"`
}

func (c *TokenServiceConfigs) HasAuth() bool {
	return len(c.Username) > 0 && len(c.Token) > 0
}

type SqliteConfigs struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

type EventStoreConfigs struct {
	Tls      TlsConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
	Host     string    `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int       `json:"port,omitempty" yaml:"port,omitempty"`
	Name     string    `json:"name,omitempty" yaml:"name,omitempty"`
	Enabled  bool      `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Username string    `json:"username,omitempty" yaml:"username,omitempty"`
	Password string    `json:"password,omitempty" yaml:"password,omitempty"`
}

func (c *EventStoreConfigs) HasAuth() bool {
	return len(c.Username) > 0 && len(c.Password) > 0
}

type FfmpegConfigs struct {
	BinaryPath string `json:"binaryPath,omitempty" yaml:"binaryPath,omitempty"`
}

type RelayConfigs struct {
	ChunkQueueSize int `json:"chunkQueueSize,omitempty" yaml:"chunkQueueSize,omitempty"`
	LiveAfterMs    int `json:"liveAfterMs,omitempty" yaml:"liveAfterMs,omitempty"`
	StopGraceMs    int `json:"stopGraceMs,omitempty" yaml:"stopGraceMs,omitempty"`
}

type TemplateConfigs struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

func readConfig() (*Configs, error) {
	path, err := getConfigFilePath()
	if err != nil {
		return nil, err
	}
	configFile, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	configs, err := parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	return configs, nil
}

func getConfigFilePath() (string, error) {
	path := os.Getenv(ENV_CONFIG_FILE_PATH)
	if len(path) == 0 {
		return "", custerror.FormatNotFound("CONFIG_FILE_PATH not found, unable to read configurations")
	}
	return path, nil
}

func readConfigFile(path string) ([]byte, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, custerror.FormatNotFound("readConfigFile: file not found")
		}
		return nil, custerror.FormatInternalError("readConfigFile: err = %s", err)
	}
	return contents, nil
}

func parseConfig(contents []byte) (*Configs, error) {
	configs := &Configs{}
	if jsonErr := json.Unmarshal(contents, configs); jsonErr != nil {
		if yamlErr := yaml.Unmarshal(contents, configs); yamlErr != nil {
			return nil, custerror.FormatInvalidArgument("parseConfig: config parse JSON err = %s YAML err = %s", jsonErr, yamlErr)
		}
	}
	return configs, nil
}
