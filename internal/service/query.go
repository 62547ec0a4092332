package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/domumdigital/OneHundred/common"
	chelper "github.com/domumdigital/OneHundred/common/helper"
	"github.com/domumdigital/OneHundred/internal/config"
	infmysql "github.com/domumdigital/OneHundred/internal/infra/mysql"
	infrds "github.com/domumdigital/OneHundred/internal/infra/redis"
	"github.com/domumdigital/OneHundred/internal/model"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

var ErrRoundNotFound = errors.New("round not found")

// GameSummary 实时状态摘要（前端轮询用）
type GameSummary struct {
	Phase           string `json:"phase"`
	RoundNo         int64  `json:"round_no"`
	Pot             string `json:"pot"`
	TimeLeftMs      int64  `json:"time_left_ms"` // active 相位下距截止的毫秒数
	Players         int64  `json:"players"`
	CompletedRounds int64  `json:"completed_rounds"`
	TotalNumbers    int    `json:"total_numbers"`
	SelectionCost   string `json:"selection_cost"`
	MaxPerPlayer    int    `json:"max_per_player"`
}

// RoundDetail 单回合详情
type RoundDetail struct {
	RoundNo       int64  `json:"round_no"`
	StartTime     int64  `json:"start_time"`
	EndTime       int64  `json:"end_time"`
	EndedAt       int64  `json:"ended_at"`
	Pot           string `json:"pot"`
	WinningNumber int    `json:"winning_number"`
	Completed     bool   `json:"completed"`
}

// PlayerRoundInfo 玩家单回合参与信息
type PlayerRoundInfo struct {
	RoundNo      int64  `json:"round_no"`
	Numbers      []int  `json:"numbers"`
	TotalWagered string `json:"total_wagered"`
}

type QueryService interface {
	Summary(ctx context.Context) (*GameSummary, error)
	Round(ctx context.Context, roundNo int64) (*RoundDetail, error)
	AvailableNumbers(ctx context.Context, roundNo int64) ([]int, error)
	PlayerSelections(ctx context.Context, roundNo int64, platformID int8, platformUserID string) (*PlayerRoundInfo, error)
	PendingPayout(ctx context.Context, platformID int8, platformUserID string) (string, error)
	History(ctx context.Context, startStr, endStr string, offset, limit uint) ([]RoundDetail, error)
	NumberStats(ctx context.Context, limit int) ([]model.NumberStat, int64, error)
}

type queryService struct{}

func NewQueryService() QueryService { return &queryService{} }

// 已售号码缓存 TTL：短缓存即可，选号成功会主动失效
const takenNumbersTTL = 5 * time.Second

// 回合信息缓存 TTL：倒计时类高频查询，允许秒级陈旧
const roundInfoTTL = 3 * time.Second

func (s *queryService) Summary(ctx context.Context) (*GameSummary, error) {
	lc := config.GetLottery()
	if lc == nil {
		return nil, errors.New("lottery config not loaded")
	}
	st, err := model.GetStateForUpdate(ctx, infmysql.SQLX(), false)
	if err != nil {
		return nil, err
	}
	out := &GameSummary{
		Phase:         st.Phase,
		RoundNo:       st.CurrentRoundNo,
		Pot:           chelper.CentsToString(0),
		TotalNumbers:  lc.TotalNumbers,
		SelectionCost: chelper.CentsToString(lc.SelectionCost),
		MaxPerPlayer:  lc.MaxPerPlayer,
	}
	if st.CurrentRoundNo == 0 {
		return out, nil
	}
	round, err := model.GetRoundSnapshot(ctx, infmysql.SQLX(), st.CurrentRoundNo)
	if err != nil {
		return nil, err
	}
	out.Pot = chelper.CentsToString(round.Pot)
	if now := time.Now().UnixMilli(); round.EndedAt == 0 && round.EndTime > now {
		out.TimeLeftMs = round.EndTime - now
	}
	players, err := model.CountPlayersInRound(ctx, infmysql.SQLX(), st.CurrentRoundNo)
	if err != nil {
		return nil, err
	}
	out.Players = players

	completed, err := common.CountCtx(ctx, infmysql.SQLX(), "lottery_rounds", g.C("completed").Eq(1))
	if err != nil {
		return nil, err
	}
	out.CompletedRounds = completed
	return out, nil
}

func (s *queryService) Round(ctx context.Context, roundNo int64) (*RoundDetail, error) {
	cacheKey := infrds.RoundInfoKey(fmt.Sprint(roundNo))
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, cacheKey).Bytes(); len(bs) > 0 {
			var d RoundDetail
			if common.JsonUnmarshal(bs, &d) == nil {
				return &d, nil
			}
		}
	}
	rs, err := model.GetRoundSnapshot(ctx, infmysql.SQLX(), roundNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	d := snapshotToDetail(rs)
	if r := infrds.Client(); r != nil {
		if b, e := common.JsonMarshalFast(d); e == nil {
			_ = r.Set(ctx, cacheKey, b, roundInfoTTL).Err()
		}
	}
	return d, nil
}

func snapshotToDetail(rs *model.RoundSnapshot) *RoundDetail {
	return &RoundDetail{
		RoundNo:       rs.RoundNo,
		StartTime:     rs.StartTime,
		EndTime:       rs.EndTime,
		EndedAt:       rs.EndedAt,
		Pot:           chelper.CentsToString(rs.Pot),
		WinningNumber: rs.WinningNumber,
		Completed:     rs.Completed == 1,
	}
}

// AvailableNumbers 可售号码 = [1, total] 去掉已售集合
// 已售集合短缓存在 Redis，选号成功时主动失效
func (s *queryService) AvailableNumbers(ctx context.Context, roundNo int64) ([]int, error) {
	lc := config.GetLottery()
	if lc == nil {
		return nil, errors.New("lottery config not loaded")
	}

	var taken []int
	cacheKey := infrds.TakenNumbersKey(fmt.Sprint(roundNo))
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, cacheKey).Bytes(); len(bs) > 0 {
			_ = common.JsonUnmarshal(bs, &taken)
		}
	}
	if taken == nil {
		var err error
		taken, err = model.ListTakenNumbers(ctx, infmysql.SQLX(), roundNo)
		if err != nil {
			return nil, err
		}
		if r := infrds.Client(); r != nil {
			if b, e := common.JsonMarshalFast(taken); e == nil {
				_ = r.Set(ctx, cacheKey, b, takenNumbersTTL).Err()
			}
		}
	}

	takenSet := make(map[int]struct{}, len(taken))
	for _, n := range taken {
		takenSet[n] = struct{}{}
	}
	avail := make([]int, 0, lc.TotalNumbers-len(taken))
	for n := 1; n <= lc.TotalNumbers; n++ {
		if _, ok := takenSet[n]; !ok {
			avail = append(avail, n)
		}
	}
	return avail, nil
}

func (s *queryService) PlayerSelections(ctx context.Context, roundNo int64, platformID int8, platformUserID string) (*PlayerRoundInfo, error) {
	p, err := model.GetPlayerByPlatformUser(ctx, infmysql.SQLX(), platformID, platformUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &PlayerRoundInfo{RoundNo: roundNo, Numbers: []int{}, TotalWagered: chelper.CentsToString(0)}, nil
		}
		return nil, err
	}
	sel, err := model.GetSelection(ctx, infmysql.SQLX(), roundNo, p.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &PlayerRoundInfo{RoundNo: roundNo, Numbers: []int{}, TotalWagered: chelper.CentsToString(0)}, nil
		}
		return nil, err
	}
	var numbers []int
	if sel.Numbers != "" {
		_ = common.JsonUnmarshal([]byte(sel.Numbers), &numbers)
	}
	return &PlayerRoundInfo{
		RoundNo:      roundNo,
		Numbers:      numbers,
		TotalWagered: chelper.CentsToString(sel.TotalWagered),
	}, nil
}

func (s *queryService) PendingPayout(ctx context.Context, platformID int8, platformUserID string) (string, error) {
	p, err := model.GetPlayerByPlatformUser(ctx, infmysql.SQLX(), platformID, platformUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chelper.CentsToString(0), nil
		}
		return "", err
	}
	amount, err := model.GetPayout(ctx, infmysql.SQLX(), p.ID)
	if err != nil {
		return "", err
	}
	return chelper.CentsToString(amount), nil
}

// History 已完结回合历史，按时间范围过滤（动态条件走 goqu）
func (s *queryService) History(ctx context.Context, startStr, endStr string, offset, limit uint) ([]RoundDetail, error) {
	startSec, endSec := chelper.ParseTimeRange(startStr, endStr)
	if limit == 0 || limit > 100 {
		limit = 20
	}

	var rows []model.RoundSnapshot
	err := common.SelectAllCtx(ctx, &rows, common.QueryArg{
		Db:     infmysql.SQLX(),
		Table:  "lottery_rounds",
		Fields: common.EnumFields(model.RoundSnapshot{}),
		Ex: []g.Expression{
			g.C("completed").Eq(1),
			g.C("ended_at").Gte(startSec * 1000),
			g.C("ended_at").Lt(endSec * 1000),
		},
		Order:  []exp.OrderedExpression{g.C("round_no").Desc()},
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]RoundDetail, 0, len(rows))
	for i := range rows {
		out = append(out, *snapshotToDetail(&rows[i]))
	}
	return out, nil
}

// NumberStats 号码热度列表与累计开奖次数
func (s *queryService) NumberStats(ctx context.Context, limit int) ([]model.NumberStat, int64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	stats, err := model.ListNumberStats(ctx, infmysql.SQLX(), limit)
	if err != nil {
		return nil, 0, err
	}
	totalDraws, err := common.SumCtx(ctx, infmysql.SQLX(), "number_stats", "draw_count")
	if err != nil {
		return nil, 0, err
	}
	return stats, totalDraws, nil
}
