package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/domumdigital/OneHundred/common"
	"github.com/domumdigital/OneHundred/common/constant"
	chelper "github.com/domumdigital/OneHundred/common/helper"
	"github.com/domumdigital/OneHundred/internal/config"
	infmysql "github.com/domumdigital/OneHundred/internal/infra/mysql"
	infrds "github.com/domumdigital/OneHundred/internal/infra/redis"
	infmq "github.com/domumdigital/OneHundred/internal/infra/rocketmq"
	"github.com/domumdigital/OneHundred/internal/metrics"
	"github.com/domumdigital/OneHundred/internal/model"
	"github.com/domumdigital/OneHundred/internal/state"

	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SelectInput 输入参数
// Numbers 为本次要认购的号码；PaidAmount 为两位小数字符串，必须等于 单价*数量
type SelectInput struct {
	PlatformID       int8   // 平台ID
	PlatformUserID   string // 平台用户ID
	PlatformUserName string // 平台用户名（可选）
	Numbers          []int
	PaidAmount       string
	IdempotencyKey   string
	TraceID          string
}

type SelectOutput struct {
	RoundNo      int64
	BillNo       string
	Numbers      []int
	RemainAmount string // 钱包剩余金额
	Pot          string // 选号后回合奖池
}

type SelectionService interface {
	SelectNumbers(ctx context.Context, in SelectInput) (*SelectOutput, error)
}

type selectionService struct{}

func NewSelectionService() SelectionService { return &selectionService{} }

const (
	// Redis 进行中锁 TTL：建议小于最短回合时长，避免长时间阻塞重复请求
	idemLockTTL = 45 * time.Second
	// 结果缓存 TTL：用于重复请求直接返回第一次成功结果；应覆盖到大多数“短时重试”窗口
	idemResultTTL = 1 * time.Minute
)

// 默认事务超时时间，防止长事务占用资源影响并发（若上游已有 deadline，则沿用上游）
const defaultTxTimeout = 3 * time.Second

// Redis key 构造见 internal/infra/redis/keys.go
var (
	ErrDuplicateInFlight        = errors.New("duplicate request in flight")
	ErrRoundNotActive           = errors.New("selection not allowed in current state")
	ErrInClosingWindow          = errors.New("round is in closing window")
	ErrZeroNumbersSelected      = errors.New("no numbers selected")
	ErrTooManySelections        = errors.New("too many numbers in one request")
	ErrWouldExceedMaxSelections = errors.New("selection would exceed per-player cap")
	ErrInvalidNumber            = errors.New("number out of range")
	ErrNumberAlreadySelected    = errors.New("number already selected this round")
	ErrIncorrectPayment         = errors.New("paid amount does not match selection cost")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrPlayerDisabled           = errors.New("player disabled")
)

// SelectNumbers 处理选号主流程：
// 校验 -> 幂等 -> 锁全局状态行 -> （空闲则懒启动新回合）-> 占号 -> 扣费入池 -> 记账 -> Outbox
func (s *selectionService) SelectNumbers(ctx context.Context, in SelectInput) (*SelectOutput, error) {

	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordSelection(result, len(in.Numbers), start) }()

	lc := config.GetLottery()
	if lc == nil {
		return nil, errors.New("lottery config not loaded")
	}

	// ========== 选号与金额验证 ==========
	if len(in.Numbers) == 0 {
		fmt.Printf("[Select] 未选择任何号码: trace_id=%s\n", in.TraceID)
		return nil, ErrZeroNumbersSelected
	}
	if len(in.Numbers) > lc.MaxPerPlayer {
		fmt.Printf("[Select] 单次选号超过上限: count=%d, max=%d, trace_id=%s\n",
			len(in.Numbers), lc.MaxPerPlayer, in.TraceID)
		return nil, ErrTooManySelections
	}
	seen := make(map[int]struct{}, len(in.Numbers))
	for _, n := range in.Numbers {
		if n < 1 || n > lc.TotalNumbers {
			fmt.Printf("[Select] 号码越界: number=%d, total=%d, trace_id=%s\n",
				n, lc.TotalNumbers, in.TraceID)
			return nil, ErrInvalidNumber
		}
		// 同一请求内重复选同一号码，等同于抢已占用号码
		if _, dup := seen[n]; dup {
			return nil, ErrNumberAlreadySelected
		}
		seen[n] = struct{}{}
	}

	// 金额必须精确等于 单价 * 数量，多付少付都拒绝
	paid, err := chelper.StringToCents(strings.TrimSpace(in.PaidAmount))
	if err != nil {
		fmt.Printf("[Select] 无效的支付金额格式: paid=%s, error=%v, trace_id=%s\n",
			in.PaidAmount, err, in.TraceID)
		return nil, ErrIncorrectPayment
	}
	expected := lc.SelectionCost * int64(len(in.Numbers))
	if paid != expected {
		fmt.Printf("[Select] 支付金额不匹配: paid=%d, expected=%d, count=%d, trace_id=%s\n",
			paid, expected, len(in.Numbers), in.TraceID)
		return nil, ErrIncorrectPayment
	}

	fmt.Printf("[Select] 收到选号请求: platform_id=%d, platform_user_id=%s, numbers=%v, paid=%s, idem_key=%s, trace_id=%s\n",
		in.PlatformID, in.PlatformUserID, in.Numbers, in.PaidAmount, in.IdempotencyKey, in.TraceID)

	// Redis 快路径：若已有结果缓存，直接返回
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
			var out SelectOutput
			if common.JsonUnmarshal(bs, &out) == nil {
				fmt.Printf("[Select] Redis 缓存命中: idem_key=%s, bill_no=%s, trace_id=%s\n",
					in.IdempotencyKey, out.BillNo, in.TraceID)
				return &out, nil
			}
		}

		// 生成唯一锁值，防止误删其他请求的锁
		lockValue := uuid.New().String()
		lockKey := infrds.IdemLockKey(in.IdempotencyKey)

		// 进行中锁，吸收瞬时重复
		ok, _ := r.SetNX(ctx, lockKey, lockValue, idemLockTTL).Result()
		if !ok {
			if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
				var out SelectOutput
				if common.JsonUnmarshal(bs, &out) == nil {
					fmt.Printf("[Select] Redis 缓存命中（重复请求）: idem_key=%s, bill_no=%s, trace_id=%s\n",
						in.IdempotencyKey, out.BillNo, in.TraceID)
					return &out, nil
				}
			}
			fmt.Printf("[Select] 重复请求进行中: idem_key=%s, trace_id=%s\n",
				in.IdempotencyKey, in.TraceID)
			return nil, ErrDuplicateInFlight
		}

		// 使用 Lua 脚本原子释放锁（仅当锁值匹配时删除）
		defer func() {
			script := `
				if redis.call("get", KEYS[1]) == ARGV[1] then
					return redis.call("del", KEYS[1])
				else
					return 0
				end
			`
			res, err := r.Eval(ctx, script, []string{lockKey}, lockValue).Result()
			if err != nil {
				fmt.Printf("[Select] 释放分布式锁失败: idem_key=%s, error=%v, trace_id=%s\n",
					in.IdempotencyKey, err, in.TraceID)
			} else if res == int64(0) {
				fmt.Printf("[Select] 分布式锁已被其他请求释放或过期: idem_key=%s, trace_id=%s\n",
					in.IdempotencyKey, in.TraceID)
			}
		}()
	}

	// 资金转移入口，先取进程内互斥锁
	transferMu.Lock()
	defer transferMu.Unlock()

	// 开启 MySQL 事务（带默认超时，防止长事务影响并发）。
	// 若上游 ctx 已设置 deadline，则沿用；否则使用默认 defaultTxTimeout。
	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		fmt.Printf("[Select] 开启事务失败: error=%v, trace_id=%s\n", err, in.TraceID)
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 锁定全局状态行：这一行的行锁就是全局写序
	st, err := model.GetStateForUpdate(txCtx, tx, true)
	if err != nil {
		fmt.Printf("[Select] 锁定全局状态失败: error=%v, trace_id=%s\n", err, in.TraceID)
		return nil, err
	}

	now := common.NowMs()
	var (
		roundNo   int64
		lazyStart bool
		potBefore int64
	)

	switch st.Phase {
	case state.StateWaitingForPlayer:
		// 懒启动：首笔有效选号开启新回合
		roundNo = st.CurrentRoundNo + 1
		lazyStart = true
	case state.StateActive:
		roundNo = st.CurrentRoundNo
		round, err := model.GetRoundForUpdate(txCtx, tx, roundNo)
		if err != nil {
			fmt.Printf("[Select] 查询回合失败: error=%v, round_no=%d, trace_id=%s\n",
				err, roundNo, in.TraceID)
			return nil, fmt.Errorf("failed to get round info: %w", err)
		}
		if now >= round.EndTime {
			fmt.Printf("[Select] 回合已到截止时间: now=%d, end=%d, round_no=%d, trace_id=%s\n",
				now, round.EndTime, roundNo, in.TraceID)
			return nil, ErrRoundNotActive
		}
		if now >= round.EndTime-lc.ClosingWindowSec*1000 {
			fmt.Printf("[Select] 封盘窗口内禁止选号: now=%d, end=%d, window=%ds, round_no=%d, trace_id=%s\n",
				now, round.EndTime, lc.ClosingWindowSec, roundNo, in.TraceID)
			return nil, ErrInClosingWindow
		}
		potBefore = round.Pot
	default:
		fmt.Printf("[Select] 当前相位不允许选号: phase=%s, trace_id=%s\n", st.Phase, in.TraceID)
		return nil, ErrRoundNotActive
	}

	// 获取或创建玩家（自动注册，带行锁）
	player, err := getOrCreatePlayerInTx(txCtx, tx, in.PlatformID, in.PlatformUserID, in.PlatformUserName)
	if err != nil {
		fmt.Printf("[Select] 获取或创建玩家失败: error=%v, platform_id=%d, platform_user_id=%s, trace_id=%s\n",
			err, in.PlatformID, in.PlatformUserID, in.TraceID)
		return nil, fmt.Errorf("failed to get or create player: %w", err)
	}
	// 禁止参与的玩家拒绝选号；仅禁止领奖（PlayerNotAllowWithdraw）的仍可参与
	if player.Status == constant.PlayerBaned {
		fmt.Printf("[Select] 玩家状态异常: player_id=%d, status=%d, trace_id=%s\n",
			player.ID, player.Status, in.TraceID)
		return nil, ErrPlayerDisabled
	}
	if player.Balance < paid {
		return nil, ErrInsufficientBalance
	}

	// 每人每回合累计上限（含本次）
	sel, err := model.GetSelectionForUpdate(txCtx, tx, roundNo, player.ID)
	if err != nil {
		return nil, err
	}
	already := 0
	if sel != nil {
		already = sel.SelectionCount
	}
	if already+len(in.Numbers) > lc.MaxPerPlayer {
		fmt.Printf("[Select] 累计选号超过上限: already=%d, adding=%d, max=%d, round_no=%d, trace_id=%s\n",
			already, len(in.Numbers), lc.MaxPerPlayer, roundNo, in.TraceID)
		return nil, ErrWouldExceedMaxSelections
	}

	billNo := generateBillNo(player.ID)

	// 幂等：先占幂等键，ref 记录 bill_no
	if err := (&model.IdempotencyKey{IdempotencyKey: in.IdempotencyKey, Purpose: "select", Ref: billNo}).Insert(txCtx, tx); err != nil {
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			fmt.Printf("[Select] 幂等键冲突，尝试返回上次结果: idem_key=%s, trace_id=%s\n",
				in.IdempotencyKey, in.TraceID)
			_ = tx.Rollback()
			// Redis 先查
			if r := infrds.Client(); r != nil {
				if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
					var out SelectOutput
					if common.JsonUnmarshal(bs, &out) == nil {
						return &out, nil
					}
				}
			}
			// DB 回源：根据幂等键查 bill_no，再查玩家余额
			ref, e1 := model.SelectRefByIdemKey(ctx, infmysql.SQLX(), in.IdempotencyKey)
			if e1 == nil && ref != "" {
				p, e2 := model.GetPlayerByPlatformUser(ctx, infmysql.SQLX(), in.PlatformID, in.PlatformUserID)
				if e2 == nil {
					fmt.Printf("[Select] 从数据库返回上次结果: bill_no=%s, trace_id=%s\n", ref, in.TraceID)
					prev := &SelectOutput{RoundNo: roundNo, BillNo: ref, Numbers: in.Numbers,
						RemainAmount: chelper.CentsToString(p.Balance)}
					if rd, e3 := model.GetRound(ctx, infmysql.SQLX(), roundNo); e3 == nil {
						prev.Pot = chelper.CentsToString(rd.Pot)
					}
					return prev, nil
				}
			}
		}
		fmt.Printf("[Select] 插入幂等键失败: error=%v, idem_key=%s, trace_id=%s\n",
			err, in.IdempotencyKey, in.TraceID)
		return nil, fmt.Errorf("idempotency conflict or insert failed: %w", err)
	}

	// 懒启动回合：插入回合行并推进状态机
	if lazyStart {
		next, serr := state.NextState(st.Phase, state.EvtFirstSelection)
		if serr != nil {
			return nil, serr
		}
		round := &model.LotteryRound{
			RoundNo:   roundNo,
			StartTime: now,
			EndTime:   now + lc.RoundDurationSec*1000,
			TraceID:   in.TraceID,
		}
		if err := round.Insert(txCtx, tx); err != nil {
			fmt.Printf("[Select] 创建回合失败: error=%v, round_no=%d, trace_id=%s\n",
				err, roundNo, in.TraceID)
			return nil, err
		}
		if err := model.UpdatePhaseAndRound(txCtx, tx, next, roundNo); err != nil {
			return nil, err
		}
		// 首笔选号后锁定彩票参数（库内标记 + 进程内标记）
		if st.ConfigLocked == 0 {
			if err := model.MarkConfigLocked(txCtx, tx); err != nil {
				return nil, err
			}
		}
		audit := &model.RoundEventAudit{
			RoundNo:   roundNo,
			EventType: model.AuditEventFirstSelection,
			PrevState: st.Phase,
			NextState: next,
			Operator:  in.PlatformUserID,
			Source:    "api",
			Payload:   fmt.Sprintf(`{"start_time":%d,"end_time":%d}`, round.StartTime, round.EndTime),
			TraceID:   in.TraceID,
		}
		if err := audit.Insert(txCtx, tx); err != nil {
			return nil, err
		}
		fmt.Printf("[Select] 懒启动新回合: round_no=%d, start=%d, end=%d, trace_id=%s\n",
			roundNo, round.StartTime, round.EndTime, in.TraceID)
	}

	// 占号：唯一键 (round_no, number) 兜底并发抢号
	if err := model.InsertNumbers(txCtx, tx, roundNo, player.ID, in.Numbers); err != nil {
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			fmt.Printf("[Select] 号码已被占用: numbers=%v, round_no=%d, trace_id=%s\n",
				in.Numbers, roundNo, in.TraceID)
			return nil, ErrNumberAlreadySelected
		}
		return nil, err
	}

	// 选号记录：首次插入，否则追加
	if sel == nil {
		numbersJSON, _ := common.JsonMarshalFast(in.Numbers)
		newSel := &model.RoundSelection{
			RoundNo:        roundNo,
			PlayerID:       player.ID,
			Numbers:        string(numbersJSON),
			SelectionCount: len(in.Numbers),
			TotalWagered:   paid,
			TraceID:        in.TraceID,
		}
		if err := newSel.Insert(txCtx, tx); err != nil {
			return nil, err
		}
	} else {
		var all []int
		if sel.Numbers != "" {
			if err := common.JsonUnmarshal([]byte(sel.Numbers), &all); err != nil {
				return nil, fmt.Errorf("corrupt selection record: %w", err)
			}
		}
		all = append(all, in.Numbers...)
		numbersJSON, _ := common.JsonMarshalFast(all)
		if err := sel.UpdateAppend(txCtx, tx, string(numbersJSON), len(in.Numbers), paid); err != nil {
			return nil, err
		}
	}

	// 扣费入池
	before := player.Balance
	after := before - paid
	if err := model.AddBalance(txCtx, tx, player.ID, -paid); err != nil {
		return nil, err
	}
	if err := model.AddPot(txCtx, tx, roundNo, paid); err != nil {
		return nil, err
	}

	// 写账本，此处为扣款
	ledger := &model.WalletLedger{
		PlayerID:     player.ID,
		BizType:      constant.BalanceChangeSelection,
		Amount:       paid,
		BeforeAmount: before,
		AfterAmount:  after,
		BillNo:       billNo,
		RoundNo:      roundNo,
		Remark:       "selection deduct",
		TraceID:      in.TraceID,
	}
	if err := ledger.Insert(txCtx, tx); err != nil {
		fmt.Printf("[Select] 写入账本失败: error=%v, bill_no=%s, trace_id=%s\n",
			err, billNo, in.TraceID)
		return nil, err
	}

	// 号码热度统计
	if err := model.IncrPickCounts(txCtx, tx, in.Numbers); err != nil {
		return nil, err
	}

	// Outbox 消息（异步）
	payload := map[string]any{
		"event":            "numbers_selected",
		"bill_no":          billNo,
		"round_no":         roundNo,
		"player_id":        player.ID,
		"platform_id":      in.PlatformID,
		"platform_user_id": in.PlatformUserID,
		"numbers":          in.Numbers,
		"paid":             paid,
	}
	if err := model.CreateOutbox(txCtx, tx, infmq.TopicLotteryEvents, billNo, payload); err != nil {
		fmt.Printf("[Select] 写入 Outbox 失败: error=%v, bill_no=%s, trace_id=%s\n",
			err, billNo, in.TraceID)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Select] 提交事务失败: error=%v, bill_no=%s, trace_id=%s\n",
			err, billNo, in.TraceID)
		return nil, err
	}

	// 提交成功后锁定进程内彩票参数（一次性，不可回退）
	config.LockLottery()

	result = "success"
	out := &SelectOutput{
		RoundNo:      roundNo,
		BillNo:       billNo,
		Numbers:      in.Numbers,
		RemainAmount: chelper.CentsToString(after),
		Pot:          chelper.CentsToString(potBefore + paid),
	}

	// 失效已售号码缓存；写入幂等结果缓存（降级容错）
	if r := infrds.Client(); r != nil {
		_ = r.Del(ctx, infrds.TakenNumbersKey(fmt.Sprint(roundNo))).Err()
		if b, e := common.JsonMarshalFast(out); e == nil {
			_ = r.Set(ctx, infrds.IdemResultKey(in.IdempotencyKey), b, idemResultTTL).Err()
		}
	}

	return out, nil
}

// generateBillNo 生成可读的订单号
// 格式：LT{YYYYMMDD}{HHmmss}{PlayerID后4位}{随机3位十六进制}
func generateBillNo(playerID int64) string {
	now := time.Now()
	dateTime := now.Format("20060102150405")
	playerSuffix := fmt.Sprintf("%04d", playerID%10000)
	randomBytes := make([]byte, 2)
	rand.Read(randomBytes)
	randomHex := strings.ToUpper(hex.EncodeToString(randomBytes)[:3])

	return fmt.Sprintf("LT%s%s%s", dateTime, playerSuffix, randomHex)
}

// getOrCreatePlayerInTx 在事务中获取或创建玩家
// 如果玩家不存在，自动创建；如果存在，返回现有玩家并加锁
func getOrCreatePlayerInTx(ctx context.Context, tx *sqlx.Tx, platformID int8, platformUserID, nickname string) (*model.Player, error) {
	// 1. 先尝试加锁查询
	sqlStr := "SELECT id, platform_id, platform_user_id, nickname, balance, status, created_at, updated_at FROM players WHERE platform_id = ? AND platform_user_id = ? FOR UPDATE"
	var p model.Player
	err := tx.GetContext(ctx, &p, sqlStr, platformID, platformUserID)
	if err == nil {
		return &p, nil
	}

	// 2. 如果玩家不存在，创建
	if err.Error() == "sql: no rows in result set" {
		now := common.NowMs() // 13位毫秒时间戳
		ins := `INSERT INTO players (platform_id, platform_user_id, nickname, balance, status, created_at, updated_at)
		          VALUES (?, ?, ?, 0, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, ins, platformID, platformUserID, nickname, constant.StatusNormal, now, now)
		if err != nil {
			// 处理并发创建的情况（唯一索引冲突）
			if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
				var p2 model.Player
				if e := tx.GetContext(ctx, &p2, sqlStr, platformID, platformUserID); e != nil {
					return nil, e
				}
				return &p2, nil
			}
			return nil, err
		}
		id, _ := res.LastInsertId()
		return &model.Player{ID: id, PlatformID: platformID, PlatformUserID: platformUserID,
			Nickname: nickname, Balance: 0, Status: constant.StatusNormal, CreatedAt: now, UpdatedAt: now}, nil
	}

	return nil, err
}
