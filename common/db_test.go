package common

import (
	"context"
	"strings"
	"testing"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

func TestEnumFields(t *testing.T) {
	type row struct {
		RoundNo int64  `db:"round_no"`
		Pot     int64  `db:"pot"`
		Skip    string `db:"-"`
		NoTag   string
	}
	fields := EnumFields(row{})
	if len(fields) != 2 {
		t.Fatalf("want 2 fields, got %v", fields)
	}
	if fields[0] != "round_no" || fields[1] != "pot" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if EnumFields(42) != nil {
		t.Fatalf("non-struct input should yield nil")
	}
}

func TestSelectAllCtxValidatesArgs(t *testing.T) {
	var dest []struct{}
	if err := SelectAllCtx(context.Background(), &dest, QueryArg{}); err == nil {
		t.Fatalf("nil db must be rejected")
	}
	// 仅触发参数校验路径，不会真正执行查询
	db := sqlx.NewDb(nil, "mysql")
	if err := SelectAllCtx(context.Background(), &dest, QueryArg{Db: db}); err == nil {
		t.Fatalf("empty table must be rejected")
	}
	if err := SelectAllCtx(context.Background(), &dest, QueryArg{Db: db, Table: "t"}); err == nil {
		t.Fatalf("empty fields must be rejected")
	}
}

// 与 History 查询同形的条件/排序组合必须能构造出带 ORDER BY 的预编译 SQL
func TestOrderedConditionQueryBuilds(t *testing.T) {
	fields := EnumFields(struct {
		RoundNo int64 `db:"round_no"`
		Pot     int64 `db:"pot"`
	}{})
	ds := dialect.Select(fields...).From("lottery_rounds").
		Where([]exp.Expression{
			g.C("completed").Eq(1),
			g.C("ended_at").Gte(0),
		}...).
		Order([]exp.OrderedExpression{g.C("round_no").Desc()}...).
		Offset(10).Limit(20)
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	if !strings.Contains(query, "ORDER BY") {
		t.Fatalf("query missing ORDER BY: %s", query)
	}
	if len(args) != 2 {
		t.Fatalf("want 2 bind args, got %d: %v", len(args), args)
	}
}
