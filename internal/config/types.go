package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了控制台运行所需的全部配置项。
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Clients   map[string]ClientConfig `mapstructure:"clients"`
	Groups    map[string][]string     `mapstructure:"groups"`
	Retry     RetryConfig             `mapstructure:"retry"`
	Console   ConsoleConfig           `mapstructure:"console"`
	Keepalive KeepaliveConfig         `mapstructure:"keepalive"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Logging   LoggingConfig           `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ClientConfig 描述单个账户的接入信息。
// 值为 ${NAME} 形式时在加载阶段替换为同名环境变量。
type ClientConfig struct {
	Exchange    string `mapstructure:"exchange"`
	APIKey      string `mapstructure:"api_key"`
	APISecret   string `mapstructure:"api_secret"`
	APIPassword string `mapstructure:"api_password"`
	UseSandbox  bool   `mapstructure:"use_sandbox"`
}

// RetryConfig 统一控制交易所调用的重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// ConsoleConfig 控制前台命令行为。
type ConsoleConfig struct {
	DefaultInstrument string `mapstructure:"default_instrument"`
	AliasFile         string `mapstructure:"alias_file"`
}

// KeepaliveConfig 控制后台保活任务。
type KeepaliveConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	LogFile  string        `mapstructure:"log_file"`
}

// DatabaseConfig 管理事件日志数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

var supportedExchanges = map[string]bool{
	"binanceusdm": true,
	"okx":         true,
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if len(c.Clients) == 0 {
		err = multierr.Append(err, errors.New("clients 至少需要配置一个账户"))
	}
	for name, client := range c.Clients {
		if client.Exchange == "" {
			err = multierr.Append(err, fmt.Errorf("clients.%s.exchange 不能为空", name))
			continue
		}
		if !supportedExchanges[client.Exchange] {
			err = multierr.Append(err, fmt.Errorf("clients.%s.exchange 不支持 %q", name, client.Exchange))
		}
	}
	for name, members := range c.Groups {
		if len(members) == 0 {
			err = multierr.Append(err, fmt.Errorf("groups.%s 不能为空", name))
		}
		for _, member := range members {
			if _, ok := c.Clients[member]; !ok {
				err = multierr.Append(err, fmt.Errorf("groups.%s 引用了未知账户 %q", name, member))
			}
		}
		if _, ok := c.Clients[name]; ok {
			err = multierr.Append(err, fmt.Errorf("分组名 %q 与账户名冲突", name))
		}
	}
	if c.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("retry.max_attempts 必须大于0"))
	}
	if c.Retry.MinDelay <= 0 || c.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("retry.delay 必须为正"))
	}
	if c.Retry.MinDelay > c.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("retry.min_delay 不能大于 max_delay"))
	}
	if c.Console.DefaultInstrument == "" {
		err = multierr.Append(err, errors.New("console.default_instrument 不能为空"))
	}
	if c.Keepalive.Interval <= 0 {
		err = multierr.Append(err, errors.New("keepalive.interval 必须大于0"))
	}
	if c.Keepalive.LogFile == "" {
		err = multierr.Append(err, errors.New("keepalive.log_file 不能为空"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
