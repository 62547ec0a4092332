package helper

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	xrand "golang.org/x/exp/rand"
)

// GenerateRequestID 生成不可预测的随机数请求 ID（32 位 hex）
// 必须用 crypto/rand：请求 ID 可被外部观测，不能由时间种子推导
func GenerateRequestID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// GenerateRandNum 非安全随机整数 [min, max)，用于调度抖动等
func GenerateRandNum(min, max int) int {
	xrand.Seed(uint64(time.Now().UnixNano()))

	return min + xrand.Intn(max-min)
}

// Jitter 返回 [0, max) 的随机时长，worker 轮询错峰用
func Jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(GenerateRandNum(0, int(max)))
}
