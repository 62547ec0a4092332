package constant

// 账变类型常量定义
const (
	BalanceChangeSelection = 1 // 选号扣费
	BalanceChangePrize     = 2 // 奖金入账（领取）
	BalanceChangeHouse     = 3 // 庄家分成入账
	BalanceChangeWithdraw  = 4 // 金库提取
	BalanceChangeDeposit   = 5 // 平台上分
)

// 账变类型描述映射
var BalanceChangeTypeDesc = map[int]string{
	BalanceChangeSelection: "选号扣费",
	BalanceChangePrize:     "奖金入账",
	BalanceChangeHouse:     "庄家分成",
	BalanceChangeWithdraw:  "金库提取",
	BalanceChangeDeposit:   "平台上分",
}

// GetBalanceChangeTypeDesc 获取账变类型描述
func GetBalanceChangeTypeDesc(changeType int) string {
	if desc, exists := BalanceChangeTypeDesc[changeType]; exists {
		return desc
	}
	return "未知类型"
}

// IsValidBalanceChangeType 验证账变类型是否有效
func IsValidBalanceChangeType(changeType int) bool {
	_, exists := BalanceChangeTypeDesc[changeType]
	return exists
}

// 常用账变类型分组
var (
	// 收入类型
	IncomeTypes = []int{BalanceChangePrize, BalanceChangeHouse, BalanceChangeDeposit}

	// 支出类型
	ExpenseTypes = []int{BalanceChangeSelection, BalanceChangeWithdraw}
)

// IsIncomeType 判断是否为收入类型
func IsIncomeType(changeType int) bool {
	for _, t := range IncomeTypes {
		if t == changeType {
			return true
		}
	}
	return false
}

// IsExpenseType 判断是否为支出类型
func IsExpenseType(changeType int) bool {
	for _, t := range ExpenseTypes {
		if t == changeType {
			return true
		}
	}
	return false
}
