package api

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/domumdigital/OneHundred/common"
	"github.com/domumdigital/OneHundred/common/constant"
	chelper "github.com/domumdigital/OneHundred/common/helper"
	"github.com/domumdigital/OneHundred/internal/auth"
	helper "github.com/domumdigital/OneHundred/internal/common/helper"
	"github.com/domumdigital/OneHundred/internal/common/response"
	infmysql "github.com/domumdigital/OneHundred/internal/infra/mysql"
	"github.com/domumdigital/OneHundred/internal/model"

	beego "github.com/beego/beego/v2/server/web"
)

// UserController 玩家自助查询接口（平台认证后只能查自己的数据）
type UserController struct{ beego.Controller }

func (c *UserController) platformUser() (int8, string, bool) {
	platformID := int8(0)
	platformUserID := ""
	if v := c.Ctx.Input.GetData("platform_id"); v != nil {
		if pid, ok := v.(int8); ok {
			platformID = pid
		}
	}
	if v := c.Ctx.Input.GetData("platform_user_id"); v != nil {
		if puid, ok := v.(string); ok {
			platformUserID = puid
		}
	}
	return platformID, platformUserID, platformUserID != ""
}

// Selections 我的选号接口：GET /api/user/selections?round_no=N
func (c *UserController) Selections() {
	traceID := helper.GetTraceID(c.Ctx)

	platformID, platformUserID, ok := c.platformUser()
	if !ok {
		response.BadRequest(&c.Controller, "platform user not resolved", traceID)
		return
	}
	roundNo, err := strconv.ParseInt(c.Ctx.Input.Query("round_no"), 10, 64)
	if err != nil || roundNo <= 0 {
		response.BadRequest(&c.Controller, "round_no must be a positive integer", traceID)
		return
	}

	svc := newQueryService()
	out, err := svc.PlayerSelections(c.Ctx.Request.Context(), roundNo, platformID, platformUserID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, out, traceID)
}

// Payout 我的待领奖金接口：GET /api/user/payout
func (c *UserController) Payout() {
	traceID := helper.GetTraceID(c.Ctx)

	platformID, platformUserID, ok := c.platformUser()
	if !ok {
		response.BadRequest(&c.Controller, "platform user not resolved", traceID)
		return
	}

	svc := newQueryService()
	amount, err := svc.PendingPayout(c.Ctx.Request.Context(), platformID, platformUserID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{"pending_amount": amount}, traceID)
}

// Token 查询令牌签发接口：POST /api/user/token
// 平台认证通过后签发短期 JWT，供前端直连查询接口使用
func (c *UserController) Token() {
	traceID := helper.GetTraceID(c.Ctx)

	platformID, platformUserID, ok := c.platformUser()
	if !ok {
		response.BadRequest(&c.Controller, "platform user not resolved", traceID)
		return
	}

	playerID, err := model.EnsurePlayer(c.Ctx.Request.Context(), infmysql.SQLX(), platformID, platformUserID, "")
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	token, err := auth.GenerateAccessToken(playerID, platformID, platformUserID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"token":     token,
		"player_id": playerID,
	}, traceID)
}

// ledgerEntry 账本展示结构：数值码补充描述与收支方向，时间格式化
type ledgerEntry struct {
	ID          int64  `json:"id"`
	BizType     int    `json:"biz_type"`
	BizDesc     string `json:"biz_desc"`
	Direction   string `json:"direction"` // income | expense
	Amount      string `json:"amount"`
	AfterAmount string `json:"after_amount"`
	BillNo      string `json:"bill_no"`
	RoundNo     int64  `json:"round_no"`
	Remark      string `json:"remark"`
	CreatedAt   string `json:"created_at"`
}

func toLedgerEntry(l *model.WalletLedger) ledgerEntry {
	direction := ""
	switch {
	case constant.IsIncomeType(l.BizType):
		direction = "income"
	case constant.IsExpenseType(l.BizType):
		direction = "expense"
	}
	return ledgerEntry{
		ID:          l.ID,
		BizType:     l.BizType,
		BizDesc:     constant.GetBalanceChangeTypeDesc(l.BizType),
		Direction:   direction,
		Amount:      chelper.CentsToString(l.Amount),
		AfterAmount: chelper.CentsToString(l.AfterAmount),
		BillNo:      l.BillNo,
		RoundNo:     l.RoundNo,
		Remark:      l.Remark,
		CreatedAt:   common.FormatMs(l.CreatedAt),
	}
}

// Ledger 我的账本接口：GET /api/user/ledger?biz_type=&offset=&limit=
func (c *UserController) Ledger() {
	traceID := helper.GetTraceID(c.Ctx)

	platformID, platformUserID, ok := c.platformUser()
	if !ok {
		response.BadRequest(&c.Controller, "platform user not resolved", traceID)
		return
	}

	offset, _ := strconv.Atoi(c.Ctx.Input.Query("offset"))
	if offset < 0 {
		offset = 0
	}
	limit, _ := strconv.Atoi(c.Ctx.Input.Query("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	bizType := 0
	if s := c.Ctx.Input.Query("biz_type"); s != "" {
		bt, err := strconv.Atoi(s)
		if err != nil || !constant.IsValidBalanceChangeType(bt) {
			response.BadRequest(&c.Controller, "invalid biz_type", traceID)
			return
		}
		bizType = bt
	}

	ctx := c.Ctx.Request.Context()
	player, err := model.GetPlayerByPlatformUser(ctx, infmysql.SQLX(), platformID, platformUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// 未注册玩家：空账本
			response.Success(&c.Controller, map[string]interface{}{"ledger": []ledgerEntry{}}, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	var rows []model.WalletLedger
	if bizType > 0 {
		rows, err = model.ListLedgerByPlayerType(ctx, infmysql.SQLX(), player.ID, bizType, offset, limit)
	} else {
		rows, err = model.ListLedgerByPlayer(ctx, infmysql.SQLX(), player.ID, offset, limit)
	}
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	entries := make([]ledgerEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, toLedgerEntry(&rows[i]))
	}
	response.Success(&c.Controller, map[string]interface{}{"ledger": entries}, traceID)
}
