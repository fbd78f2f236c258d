// Package config 负责加载和验证 YAML 配置文件。
// 提供流水线、执行引擎与实时哨兵所需的所有配置项。
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// 周期性确认模式取值
const (
	// PeriodicityOff 跳过周期性确认
	PeriodicityOff = "off"
	// PeriodicityAnnotate 仅标注结果，不作为过滤门
	PeriodicityAnnotate = "annotate"
	// PeriodicityStrict 作为额外的硬过滤门
	PeriodicityStrict = "strict"
)

// Config 应用配置根结构
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Data K 线数据配置
	Data DataConfig `yaml:"data"`
	// Screener 协整筛选配置
	Screener ScreenerConfig `yaml:"screener"`
	// Signal 均值回归信号配置
	Signal SignalConfig `yaml:"signal"`
	// Trade 执行引擎配置
	Trade TradeConfig `yaml:"trade"`
	// Exchange 交易所接入配置
	Exchange ExchangeConfig `yaml:"exchange"`
	// Monitor 实时哨兵配置
	Monitor MonitorConfig `yaml:"monitor"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// DataConfig K 线数据配置
type DataConfig struct {
	// CandleDir K 线 CSV 目录，每个合约一个 <SYMBOL>.csv
	CandleDir string `yaml:"candle_dir"`
	// MinRows 参与筛选所需的最少行数，不足则排除该合约
	MinRows int `yaml:"min_rows"`
}

// ScreenerConfig 协整筛选配置
type ScreenerConfig struct {
	// PValueThreshold 显著性阈值，p 值低于该值的配对才保留
	PValueThreshold float64 `yaml:"p_value_threshold"`
	// Workers 并行工作协程数（固定大小的 worker pool）
	Workers int `yaml:"workers"`
}

// SignalConfig 均值回归信号配置
type SignalConfig struct {
	// ZScoreEntry z-score 入场阈值，|z_latest| 不低于该值才继续
	ZScoreEntry float64 `yaml:"zscore_entry"`
	// HalfLifeMaxHours 半衰期上限（小时），超过则丢弃
	HalfLifeMaxHours float64 `yaml:"half_life_max_hours"`
	// PeriodicityMode 周期性确认模式: off, annotate, strict
	PeriodicityMode string `yaml:"periodicity_mode"`
	// AutocorrThreshold 自相关绝对值阈值
	AutocorrThreshold float64 `yaml:"autocorr_threshold"`
	// FrequencyThreshold 主频幅值阈值
	FrequencyThreshold float64 `yaml:"frequency_threshold"`
	// LagInterval 周期间隔（小时线上 24 近似日周期）
	LagInterval int `yaml:"lag_interval"`
}

// TradeConfig 执行引擎配置
type TradeConfig struct {
	// RiskPct 动用账户权益的百分比（0-100]
	RiskPct float64 `yaml:"risk_pct"`
	// Leverage 杠杆倍数
	Leverage int `yaml:"leverage"`
	// OrderRetries 单腿下单最大尝试次数
	OrderRetries int `yaml:"order_retries"`
	// OrderRetryDelayMs 下单重试间隔（毫秒）
	OrderRetryDelayMs int `yaml:"order_retry_delay_ms"`
}

// ExchangeConfig 交易所接入配置
type ExchangeConfig struct {
	// RestURL REST API 地址
	RestURL string `yaml:"rest_url"`
	// WsURL WebSocket 行情地址
	WsURL string `yaml:"ws_url"`
	// APIKey API Key
	APIKey string `yaml:"api_key"`
	// APISecret API Secret
	APISecret string `yaml:"api_secret"`
	// Passphrase API 口令
	Passphrase string `yaml:"passphrase"`
	// TimeoutMs HTTP 请求超时时间（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
	// PingIntervalMs WebSocket 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
}

// MonitorConfig 实时哨兵配置
type MonitorConfig struct {
	// ReconnectDelayMs 断线重连前的固定等待（毫秒）
	ReconnectDelayMs int `yaml:"reconnect_delay_ms"`
	// RecloseCooldownMs 平仓失败后同一腿再次尝试前的冷却（毫秒）
	RecloseCooldownMs int `yaml:"reclose_cooldown_ms"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出根目录（交易清单、台账、诊断文件）
	Dir string `yaml:"dir"`
	// ChartsEnabled 是否输出 z-score 诊断序列
	ChartsEnabled bool `yaml:"charts_enabled"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "reversion-sentinel"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.Data.MinRows == 0 {
		c.Data.MinRows = 100
	}

	if c.Screener.PValueThreshold == 0 {
		c.Screener.PValueThreshold = 0.05
	}
	if c.Screener.Workers == 0 {
		c.Screener.Workers = 8
	}

	if c.Signal.ZScoreEntry == 0 {
		c.Signal.ZScoreEntry = 2.0
	}
	if c.Signal.HalfLifeMaxHours == 0 {
		c.Signal.HalfLifeMaxHours = 24.0
	}
	if c.Signal.PeriodicityMode == "" {
		c.Signal.PeriodicityMode = PeriodicityAnnotate
	}
	if c.Signal.AutocorrThreshold == 0 {
		c.Signal.AutocorrThreshold = 0.3
	}
	if c.Signal.FrequencyThreshold == 0 {
		c.Signal.FrequencyThreshold = 0.3
	}
	if c.Signal.LagInterval == 0 {
		c.Signal.LagInterval = 24 // 小时线上近似日周期
	}

	if c.Trade.Leverage == 0 {
		c.Trade.Leverage = 10
	}
	if c.Trade.OrderRetries == 0 {
		c.Trade.OrderRetries = 3
	}
	if c.Trade.OrderRetryDelayMs == 0 {
		c.Trade.OrderRetryDelayMs = 1000 // 1 秒
	}

	if c.Exchange.TimeoutMs == 0 {
		c.Exchange.TimeoutMs = 10000 // 10 秒
	}
	if c.Exchange.PingIntervalMs == 0 {
		c.Exchange.PingIntervalMs = 25000 // 25 秒
	}

	if c.Monitor.ReconnectDelayMs == 0 {
		c.Monitor.ReconnectDelayMs = 5000 // 5 秒
	}
	if c.Monitor.RecloseCooldownMs == 0 {
		c.Monitor.RecloseCooldownMs = 60000 // 1 分钟
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	if c.Data.CandleDir == "" {
		errs = append(errs, "data.candle_dir: K 线目录不能为空")
	}
	if c.Data.MinRows < 2 {
		errs = append(errs, "data.min_rows: 最少行数不能小于 2")
	}

	if c.Screener.PValueThreshold <= 0 || c.Screener.PValueThreshold >= 1 {
		errs = append(errs, fmt.Sprintf("screener.p_value_threshold: 必须在 (0, 1) 之间，当前值: %f", c.Screener.PValueThreshold))
	}
	if c.Screener.Workers <= 0 {
		errs = append(errs, "screener.workers: 工作协程数必须为正数")
	}

	if c.Signal.ZScoreEntry <= 0 {
		errs = append(errs, "signal.zscore_entry: z-score 阈值必须为正数")
	}
	if c.Signal.HalfLifeMaxHours <= 0 {
		errs = append(errs, "signal.half_life_max_hours: 半衰期上限必须为正数")
	}
	switch c.Signal.PeriodicityMode {
	case PeriodicityOff, PeriodicityAnnotate, PeriodicityStrict:
	default:
		errs = append(errs, fmt.Sprintf("signal.periodicity_mode: 无效取值 '%s'，有效值: off, annotate, strict", c.Signal.PeriodicityMode))
	}
	if c.Signal.AutocorrThreshold <= 0 || c.Signal.AutocorrThreshold >= 1 {
		errs = append(errs, "signal.autocorr_threshold: 必须在 (0, 1) 之间")
	}
	if c.Signal.FrequencyThreshold <= 0 {
		errs = append(errs, "signal.frequency_threshold: 主频阈值必须为正数")
	}
	if c.Signal.LagInterval <= 0 {
		errs = append(errs, "signal.lag_interval: 周期间隔必须为正数")
	}

	if c.Trade.RiskPct < 0 || c.Trade.RiskPct > 100 {
		errs = append(errs, fmt.Sprintf("trade.risk_pct: 必须在 [0, 100] 之间，当前值: %f", c.Trade.RiskPct))
	}
	if c.Trade.Leverage < 1 {
		errs = append(errs, "trade.leverage: 杠杆倍数不能小于 1")
	}
	if c.Trade.OrderRetries < 1 {
		errs = append(errs, "trade.order_retries: 尝试次数不能小于 1")
	}
	if c.Trade.OrderRetryDelayMs < 0 {
		errs = append(errs, "trade.order_retry_delay_ms: 重试间隔不能为负数")
	}

	if c.Monitor.ReconnectDelayMs <= 0 {
		errs = append(errs, "monitor.reconnect_delay_ms: 重连等待必须为正数")
	}
	if c.Monitor.RecloseCooldownMs < 0 {
		errs = append(errs, "monitor.reclose_cooldown_ms: 平仓冷却不能为负数")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ValidateExchange 验证交易所接入配置
// 仅执行引擎与哨兵需要，筛选流水线不强制
// 参数 needWs: 是否要求 WebSocket 地址（哨兵为 true）
func (c *Config) ValidateExchange(needWs bool) error {
	var errs []string

	if c.Exchange.RestURL == "" {
		errs = append(errs, "exchange.rest_url: REST 地址不能为空")
	}
	if c.Exchange.APIKey == "" {
		errs = append(errs, "exchange.api_key: API Key 不能为空")
	}
	if c.Exchange.APISecret == "" {
		errs = append(errs, "exchange.api_secret: API Secret 不能为空")
	}
	if needWs && c.Exchange.WsURL == "" {
		errs = append(errs, "exchange.ws_url: WebSocket 地址不能为空")
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
