package helper

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	centFactor = decimal.NewFromInt(100)
)

// CentsToString 最小货币单位转两位小数字符串（API 出参）
func CentsToString(cents int64) string {
	return decimal.NewFromInt(cents).Div(centFactor).StringFixed(2)
}

// StringToCents 两位小数字符串转最小货币单位（API 入参）
// 超过两位小数精度直接拒绝，避免静默截断
func StringToCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	cents := d.Mul(centFactor)
	if !cents.IsInteger() {
		return 0, errors.New("amount precision exceeds 2 decimal places")
	}
	return cents.IntPart(), nil
}
