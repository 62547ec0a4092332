package common

import (
	"time"
)

// NowMs 当前毫秒时间戳（回合起止时间统一用毫秒）
func NowMs() int64 {
	return time.Now().UnixMilli()
}

// FormatMs 毫秒时间戳格式化为 yyyy-MM-dd HH:mm:ss（0 返回空串）
func FormatMs(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}

// GetTodayRange 获取当天 00:00:00 和 第二天 00:00:00（秒）
func GetTodayRange(t time.Time) (start, end int64) {
	year, month, day := t.Local().Date()

	startTime := time.Date(year, month, day, 0, 0, 0, 0, time.Local)
	endTime := startTime.AddDate(0, 0, 1) // +1 天

	return startTime.Unix(), endTime.Unix()
}

// GetWeekRange 获取当周周一 00:00:00 和 周日 00:00:00（秒）
func GetWeekRange(t time.Time) (start, end int64) {
	t = t.Local()

	// 周日是0，周一是1 ... 周六是6；让周日变成 7 方便计算
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}

	year, month, day := t.Date()
	monday := time.Date(year, month, day, 0, 0, 0, 0, time.Local).AddDate(0, 0, -(weekday - 1))
	sunday := monday.AddDate(0, 0, 7)

	return monday.Unix(), sunday.Unix()
}
