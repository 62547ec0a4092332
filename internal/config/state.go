package config

import (
	"sync/atomic"
)

// 原子存储当前生效的配置，供各业务读取
var current atomic.Value // *Config

// lotteryLocked 彩票参数锁定标记，置位后不可回退
var lotteryLocked atomic.Bool

func SetCurrent(c *Config) {
	current.Store(c)
}

func GetCurrent() *Config {
	v := current.Load()
	if v == nil {
		return nil
	}
	return v.(*Config)
}

// LockLottery 一次性锁定彩票参数：首笔选号成功后调用，此后配置热更新不再覆盖 Lottery 段
func LockLottery() {
	lotteryLocked.Store(true)
}

// LotteryLocked 返回彩票参数是否已锁定
func LotteryLocked() bool {
	return lotteryLocked.Load()
}

// GetLottery 返回当前生效的彩票参数
func GetLottery() *LotteryConfig {
	cfg := GetCurrent()
	if cfg == nil {
		return nil
	}
	return &cfg.Lottery
}

// GetFeatureFlag 返回功能开关（默认 false）
func GetFeatureFlag(name string) bool {
	cfg := GetCurrent()
	if cfg == nil || cfg.FeatureFlags == nil {
		return false
	}
	return cfg.FeatureFlags[name]
}

// GetThreshold 返回业务阈值（支持默认值）
func GetThreshold(name string, def int64) int64 {
	cfg := GetCurrent()
	if cfg == nil || cfg.Thresholds == nil {
		return def
	}
	if v, ok := cfg.Thresholds[name]; ok {
		return v
	}
	return def
}
