package helper

import (
	"log"
	"strings"
	"time"
)

// Unix 时间戳转为日期格式
func TimeUnixToStr(t int64) string {

	return time.Unix(t, 0).Format("2006-01-02 15:04:05")
}

func ParseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}

	layout := "2006-01-02 15:04:05"
	if len(value) == 10 { // 只有日期
		value += " 00:00:00"
	}
	t, err := time.ParseInLocation(layout, value, time.Local)
	if err != nil {
		log.Printf("[WARN] time parse failed: %s, err: %v", value, err)
		return time.Time{}
	}
	return t
}

// ParseTimeRange 统一时间范围解析（秒），历史回合查询用
func ParseTimeRange(startStr, endStr string) (int64, int64) {
	now := time.Now()
	var startTime, endTime time.Time

	if startStr != "" {
		startTime = ParseTime(startStr)
	} else {
		startTime = now.Add(-72 * time.Hour) // 默认 3 天前
	}

	if endStr != "" {
		endTime = ParseTime(endStr)
		// 若只传日期（10位），自动补 23:59:59
		if len(strings.TrimSpace(endStr)) == 10 {
			endTime = endTime.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		}
	} else {
		endTime = now // 默认当前时间
	}

	return startTime.Unix(), endTime.Unix()
}
