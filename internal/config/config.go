package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// Config 与配置中心中的配置结构对应
// 注意：时间字段统一使用毫秒时间戳，金额统一为最小货币单位（整数）
// 万分比（basis points）取值范围 0..10000

type Config struct {
	Server struct {
		Port     int    `yaml:"port" json:"port"`
		LogLevel string `yaml:"log_level" json:"log_level"`
	} `yaml:"server" json:"server"`

	Database struct {
		DSN                string `yaml:"dsn" json:"dsn"`
		MaxOpenConns       int    `yaml:"max_open_conns" json:"max_open_conns"`
		MaxIdleConns       int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec" json:"conn_max_lifetime_sec"`
	} `yaml:"database" json:"database"`

	Redis struct {
		Addr     string `yaml:"addr" json:"addr"`
		Password string `yaml:"password" json:"password"`
		DB       int    `yaml:"db" json:"db"`
	} `yaml:"redis" json:"redis"`

	RocketMQ struct {
		Endpoint      string `yaml:"endpoint" json:"endpoint"`
		ProducerGroup string `yaml:"producer_group" json:"producer_group"`
		ConsumerGroup string `yaml:"consumer_group" json:"consumer_group"`
		AccessKey     string `yaml:"access_key" json:"access_key"`
		SecretKey     string `yaml:"secret_key" json:"secret_key"`
	} `yaml:"rocketmq" json:"rocketmq"`

	Observability struct {
		EnableProm bool   `yaml:"enable_prom" json:"enable_prom"`
		PromAddr   string `yaml:"prom_addr" json:"prom_addr"`
	} `yaml:"observability" json:"observability"`

	// Oracle 随机数预言机外呼配置（notify_url 为空则仅依赖 MQ 投递）
	Oracle struct {
		NotifyURL string `yaml:"notify_url" json:"notify_url"`
		TimeoutMs int    `yaml:"timeout_ms" json:"timeout_ms"`
	} `yaml:"oracle" json:"oracle"`

	// Lottery 彩票核心参数（可被一次性锁定，见 state.go Lock）
	Lottery LotteryConfig `yaml:"lottery" json:"lottery"`

	Auth struct {
		DemoMode bool `yaml:"demo_mode" json:"demo_mode"` // 演示模式开关
		JWT      struct {
			Secret         string `yaml:"secret" json:"secret"`
			AccessTokenTTL int    `yaml:"access_token_ttl" json:"access_token_ttl"` // 秒
			Issuer         string `yaml:"issuer" json:"issuer"`
		} `yaml:"jwt" json:"jwt"`
		// Scheduler 调度方身份：performAction 仅接受持此 Token 的调用者（为空则不限制）
		Scheduler struct {
			Enabled bool   `yaml:"enabled" json:"enabled"`
			Token   string `yaml:"token" json:"token"`
		} `yaml:"scheduler" json:"scheduler"`
		// Oracle 随机数预言机回调方身份
		Oracle struct {
			Enabled    bool     `yaml:"enabled" json:"enabled"`
			Token      string   `yaml:"token" json:"token"`
			AllowedIPs []string `yaml:"allowed_ips" json:"allowed_ips"`
		} `yaml:"oracle" json:"oracle"`
		DemoPlatform struct {
			PlatformID int8   `yaml:"platform_id" json:"platform_id"`
			AppKey     string `yaml:"app_key" json:"app_key"`
			AppSecret  string `yaml:"app_secret" json:"app_secret"`
			Name       string `yaml:"name" json:"name"`
		} `yaml:"demo_platform" json:"demo_platform"`
		Platforms []PlatformConfig `yaml:"platforms" json:"platforms"`
	} `yaml:"auth" json:"auth"`

	RateLimit struct {
		Enabled bool `yaml:"enabled" json:"enabled"`
		Global  struct {
			RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`
			Burst             int `yaml:"burst" json:"burst"`
		} `yaml:"global" json:"global"`
		ByIP struct {
			RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`
			WindowSeconds     int `yaml:"window_seconds" json:"window_seconds"`
		} `yaml:"by_ip" json:"by_ip"`
		ByPlatform struct {
			RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`
			WindowSeconds     int `yaml:"window_seconds" json:"window_seconds"`
		} `yaml:"by_platform" json:"by_platform"`
	} `yaml:"rate_limit" json:"rate_limit"`

	CORS struct {
		Enabled          bool     `yaml:"enabled" json:"enabled"`
		AllowedOrigins   []string `yaml:"allowed_origins" json:"allowed_origins"`
		AllowedMethods   []string `yaml:"allowed_methods" json:"allowed_methods"`
		AllowedHeaders   []string `yaml:"allowed_headers" json:"allowed_headers"`
		AllowCredentials bool     `yaml:"allow_credentials" json:"allow_credentials"`
		MaxAge           int      `yaml:"max_age" json:"max_age"`
	} `yaml:"cors" json:"cors"`

	// 动态配置：功能开关与业务阈值
	FeatureFlags map[string]bool  `yaml:"feature_flags" json:"feature_flags"`
	Thresholds   map[string]int64 `yaml:"thresholds" json:"thresholds"`
}

// LotteryConfig 回合与奖金分配参数
// 分配不变量（Validate 校验）：
//   - winner_bps + 2*runner_up_bps + house_winner_bps == 10000
//   - 2*no_winner_runner_up_bps + house_no_winner_bps == 10000
type LotteryConfig struct {
	RoundDurationSec  int64 `yaml:"round_duration_sec" json:"round_duration_sec"`   // 回合时长
	RestPeriodSec     int64 `yaml:"rest_period_sec" json:"rest_period_sec"`         // 休整期时长
	ClosingWindowSec  int64 `yaml:"closing_window_sec" json:"closing_window_sec"`   // 截止前封盘窗口
	SelectionCost     int64 `yaml:"selection_cost" json:"selection_cost"`           // 单号费用（最小货币单位）
	MaxPerPlayer      int   `yaml:"max_per_player" json:"max_per_player"`           // 每人每回合选号上限
	TotalNumbers      int   `yaml:"total_numbers" json:"total_numbers"`             // 号码范围 [1, total_numbers]
	WinnerBps         int64 `yaml:"winner_bps" json:"winner_bps"`                   // 有中奖者：中奖者份额
	RunnerUpBps       int64 `yaml:"runner_up_bps" json:"runner_up_bps"`             // 有中奖者：单个亚军份额
	HouseWinnerBps    int64 `yaml:"house_winner_bps" json:"house_winner_bps"`       // 有中奖者：庄家份额
	NoWinnerRunnerBps int64 `yaml:"no_winner_runner_bps" json:"no_winner_runner_bps"` // 无中奖者：单个亚军份额
	HouseNoWinnerBps  int64 `yaml:"house_no_winner_bps" json:"house_no_winner_bps"` // 无中奖者：庄家份额
	HouseFeeBps       int64 `yaml:"house_fee_bps" json:"house_fee_bps"`             // 庄家份额中留存金库的比例
	// Admin 庄家收款账户（平台用户定位）
	AdminPlatformID     int8   `yaml:"admin_platform_id" json:"admin_platform_id"`
	AdminPlatformUserID string `yaml:"admin_platform_user_id" json:"admin_platform_user_id"`
}

const bpsDenominator = 10000

// Validate 校验彩票参数：范围、正值与两条分配不变量
func (lc *LotteryConfig) Validate() error {
	if lc.RoundDurationSec <= 0 {
		return errors.New("lottery: round_duration_sec must be positive")
	}
	if lc.RestPeriodSec <= 0 {
		return errors.New("lottery: rest_period_sec must be positive")
	}
	if lc.ClosingWindowSec < 0 || lc.ClosingWindowSec >= lc.RoundDurationSec {
		return errors.New("lottery: closing_window_sec must be in [0, round_duration_sec)")
	}
	if lc.SelectionCost <= 0 {
		return errors.New("lottery: selection_cost must be positive")
	}
	if lc.MaxPerPlayer <= 0 {
		return errors.New("lottery: max_per_player must be positive")
	}
	if lc.TotalNumbers < 2 {
		return errors.New("lottery: total_numbers must be at least 2")
	}
	for _, v := range []int64{lc.WinnerBps, lc.RunnerUpBps, lc.HouseWinnerBps, lc.NoWinnerRunnerBps, lc.HouseNoWinnerBps, lc.HouseFeeBps} {
		if v < 0 || v > bpsDenominator {
			return errors.New("lottery: bps values must be in [0, 10000]")
		}
	}
	if lc.WinnerBps+2*lc.RunnerUpBps+lc.HouseWinnerBps != bpsDenominator {
		return errors.New("lottery: winner_bps + 2*runner_up_bps + house_winner_bps must equal 10000")
	}
	if 2*lc.NoWinnerRunnerBps+lc.HouseNoWinnerBps != bpsDenominator {
		return errors.New("lottery: 2*no_winner_runner_bps + house_no_winner_bps must equal 10000")
	}
	return nil
}

// PlatformConfig 平台配置
type PlatformConfig struct {
	PlatformID int8     `yaml:"platform_id" json:"platform_id"`
	AppKey     string   `yaml:"app_key" json:"app_key"`
	AppSecret  string   `yaml:"app_secret" json:"app_secret"`
	Name       string   `yaml:"name" json:"name"`
	Status     int8     `yaml:"status" json:"status"`
	AllowedIPs []string `yaml:"allowed_ips" json:"allowed_ips"`
}

// Load 依次尝试 Nacos 配置中心、Etcd、本地文件（兜底）
// 支持以下环境变量：
//   - NACOS_SERVER_ADDR / NACOS_DATA_ID / NACOS_NAMESPACE / NACOS_GROUP
//   - ETCD_ENDPOINTS / ETCD_CONFIG_KEY
//   - CONFIG_FILE: 配置文件路径（兜底，默认 config/dev.json）
func Load(ctx context.Context) (*Config, error) {
	if strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR")) != "" {
		cfg, err := loadFromNacos(ctx)
		if err == nil {
			fmt.Printf("[Config] 配置已从 Nacos 加载: dataId=%s\n", os.Getenv("NACOS_DATA_ID"))
			return cfg, validateLoaded(cfg)
		}
		fmt.Printf("[Config] 从 Nacos 加载配置失败，继续尝试其他来源: error=%v\n", err)
	}

	if strings.TrimSpace(os.Getenv("ETCD_ENDPOINTS")) != "" {
		cfg, err := loadFromEtcd(ctx)
		if err == nil {
			fmt.Printf("[Config] 配置已从 Etcd 加载: key=%s\n", os.Getenv("ETCD_CONFIG_KEY"))
			return cfg, validateLoaded(cfg)
		}
		fmt.Printf("[Config] 从 Etcd 加载配置失败，降级使用本地文件: error=%v\n", err)
	}

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config/dev.json"
	}
	cfg, err := loadFromFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from nacos/etcd and local file (%s): %w", configFile, err)
	}
	fmt.Printf("[Config] 配置已从本地文件加载: file=%s\n", configFile)
	return cfg, validateLoaded(cfg)
}

// validateLoaded 启动期强校验：彩票参数非法直接拒绝启动
func validateLoaded(cfg *Config) error {
	if err := cfg.Lottery.Validate(); err != nil {
		return err
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

// loadFromFile 从本地 JSON 或 YAML 文件加载配置
func loadFromFile(filePath string) (*Config, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch ext := filepath.Ext(filePath); ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .json, .yaml, .yml)", ext)
	}
	return &cfg, nil
}

// loadFromEtcd 从 Etcd 读取 YAML 配置
func loadFromEtcd(ctx context.Context) (*Config, error) {
	endpoints := strings.Split(os.Getenv("ETCD_ENDPOINTS"), ",")
	for i := range endpoints {
		endpoints[i] = strings.TrimSpace(endpoints[i])
	}
	if len(endpoints) == 0 || endpoints[0] == "" {
		return nil, errors.New("empty ETCD_ENDPOINTS")
	}
	dialTimeout := 5 * time.Second
	if v := os.Getenv("ETCD_DIAL_TIMEOUT_SEC"); strings.TrimSpace(v) != "" {
		if sec, err := time.ParseDuration(v + "s"); err == nil {
			dialTimeout = sec
		}
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		Username:    os.Getenv("ETCD_USERNAME"),
		Password:    os.Getenv("ETCD_PASSWORD"),
	})
	if err != nil {
		return nil, fmt.Errorf("etcd connect failed: %w", err)
	}
	defer cli.Close()

	key := os.Getenv("ETCD_CONFIG_KEY")
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("ETCD_CONFIG_KEY not set")
	}
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := cli.Get(ctx2, key)
	if err != nil {
		return nil, fmt.Errorf("etcd get failed: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("etcd key not found: %s", key)
	}
	var cfg Config
	if err := yaml.Unmarshal(resp.Kvs[0].Value, &cfg); err != nil {
		return nil, fmt.Errorf("yaml unmarshal from etcd failed: %w", err)
	}
	return &cfg, nil
}

// loadFromNacos 从 Nacos 配置中心加载配置
// 环境变量同 Load；NACOS_DATA_ID 的扩展名决定解析格式，缺省先 YAML 后 JSON
func loadFromNacos(ctx context.Context) (*Config, error) {
	configClient, dataID, group, err := newNacosClient()
	if err != nil {
		return nil, err
	}

	content, err := configClient.GetConfig(vo.ConfigParam{
		DataId: dataID,
		Group:  group,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get config from nacos: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("nacos config is empty: dataId=%s, group=%s", dataID, group)
	}

	var cfg Config
	if err := parseByDataID(dataID, []byte(content), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseByDataID 按 Data ID 的扩展名解析配置内容
func parseByDataID(dataID string, data []byte, cfg *Config) error {
	switch ext := filepath.Ext(dataID); ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config from nacos: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config from nacos: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			if err2 := json.Unmarshal(data, cfg); err2 != nil {
				return fmt.Errorf("failed to parse config from nacos (tried YAML and JSON): yaml_err=%v, json_err=%v", err, err2)
			}
		}
	}
	return nil
}

// newNacosClient 构造 Nacos 配置客户端（Load 与 StartWatch 共用）
func newNacosClient() (config_client.IConfigClient, string, string, error) {
	serverAddr := strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR"))
	if serverAddr == "" {
		return nil, "", "", errors.New("NACOS_SERVER_ADDR not set")
	}
	dataID := strings.TrimSpace(os.Getenv("NACOS_DATA_ID"))
	if dataID == "" {
		return nil, "", "", errors.New("NACOS_DATA_ID not set")
	}
	namespace := getEnvOrDefault("NACOS_NAMESPACE", "public")
	group := getEnvOrDefault("NACOS_GROUP", "DEFAULT_GROUP")
	username := strings.TrimSpace(os.Getenv("NACOS_USERNAME"))
	password := strings.TrimSpace(os.Getenv("NACOS_PASSWORD"))

	timeoutMS := 5000
	if timeoutStr := strings.TrimSpace(os.Getenv("NACOS_TIMEOUT_MS")); timeoutStr != "" {
		if t, err := strconv.Atoi(timeoutStr); err == nil && t > 0 {
			timeoutMS = t
		}
	}

	var serverConfigs []constant.ServerConfig
	for _, addr := range strings.Split(serverAddr, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		parts := strings.Split(addr, ":")
		if len(parts) != 2 {
			return nil, "", "", fmt.Errorf("invalid NACOS_SERVER_ADDR format: %s (expected host:port)", addr)
		}
		port, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, "", "", fmt.Errorf("invalid port in NACOS_SERVER_ADDR: %s", parts[1])
		}
		serverConfigs = append(serverConfigs, constant.ServerConfig{IpAddr: parts[0], Port: port})
	}
	if len(serverConfigs) == 0 {
		return nil, "", "", errors.New("no valid server address in NACOS_SERVER_ADDR")
	}

	clientConfig := constant.ClientConfig{
		NamespaceId:         namespace,
		TimeoutMs:           uint64(timeoutMS),
		NotLoadCacheAtStart: true,
		LogDir:              "/tmp/nacos/log",
		CacheDir:            "/tmp/nacos/cache",
		LogLevel:            "warn",
	}
	if username != "" && password != "" {
		clientConfig.Username = username
		clientConfig.Password = password
	}

	cc, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to create nacos config client: %w", err)
	}
	return cc, dataID, group, nil
}

// nacosConfigClient 全局 Nacos 配置客户端，用于配置监听
var nacosConfigClient config_client.IConfigClient
