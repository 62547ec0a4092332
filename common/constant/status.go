package constant

// player status
const (
	StatusNormal  = 1 // 状态：正常
	StatusDeleted = 2 // 状态：已删除
)

// player 业务
const (
	PlayerBaned            = 2 // 禁止参与
	PlayerNotAllowWithdraw = 3 // 禁止领奖
)
