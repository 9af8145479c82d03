package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "console"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	expandSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandSecrets 把账户凭证里 ${NAME} 形式的值替换为同名环境变量。
// 未定义的环境变量保持原样，由交易所侧的认证失败暴露问题。
func expandSecrets(cfg *Config) {
	for name, client := range cfg.Clients {
		client.APIKey = expandValue(client.APIKey)
		client.APISecret = expandValue(client.APISecret)
		client.APIPassword = expandValue(client.APIPassword)
		cfg.Clients[name] = client
	}
}

func expandValue(value string) string {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	envName := value[2 : len(value)-1]
	if envValue, ok := os.LookupEnv(envName); ok {
		return envValue
	}
	return value
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.min_delay", "500ms")
	v.SetDefault("retry.max_delay", "5s")

	v.SetDefault("console.default_instrument", "BTCUSDT")
	v.SetDefault("console.alias_file", "aliases.txt")

	v.SetDefault("keepalive.interval", "60s")
	v.SetDefault("keepalive.log_file", "login.log")

	v.SetDefault("database.path", "data/trade_console.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
