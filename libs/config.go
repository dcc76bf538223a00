package libs

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultListen       = "tcp://127.0.0.1:26659"
	defaultMaxFrameSize = 1024
	defaultTimeoutMs    = 3000
	defaultPingMs       = 10000
)

type Config struct {
	// Listen is where the signer accepts node connections,
	// tcp://host:port or unix:///path/to/socket.
	Listen string `mapstructure:"listen"`
	// P2PAddress enables the libp2p listener when set, e.g. /ip4/0.0.0.0/tcp/30001.
	P2PAddress string `mapstructure:"p2p_address"`
	Keypath    string `mapstructure:"keypath"`
	Netpath    string `mapstructure:"netpath"`
	StateFile  string `mapstructure:"statefile"`

	MaxFrameSize   int    `mapstructure:"max_frame_size"`
	Metrics        string `mapstructure:"metrics"`
	TimeoutMs      int    `mapstructure:"timeout_ms"`
	PingIntervalMs int    `mapstructure:"ping_interval_ms"`
}

func GetConfig(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		return defaultConfig(), nil
	}
	return loadConfig(cfgFile)
}

func defaultConfig() *Config {
	return &Config{
		Listen:         defaultListen,
		Keypath:        "keys",
		Netpath:        "netkeys",
		StateFile:      "data/sign_state.json",
		MaxFrameSize:   defaultMaxFrameSize,
		TimeoutMs:      defaultTimeoutMs,
		PingIntervalMs: defaultPingMs,
	}
}

func loadConfig(cfgFile string) (*Config, error) {
	if cfgFile == "" || !FileIsExist(cfgFile) {
		return nil, fmt.Errorf("config file set error.path:%s", cfgFile)
	}

	viperObj := viper.New()
	viperObj.SetConfigFile(cfgFile)
	err := viperObj.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("read config failed.path:%s,err:%v", cfgFile, err)
	}

	// unset keys keep their defaults
	config := defaultConfig()
	if err = viperObj.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unmatshal config failed.path:%s,err:%v", cfgFile, err)
	}
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = defaultMaxFrameSize
	}

	return config, nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMs) * time.Millisecond
}

func FileIsExist(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}

	return true
}
