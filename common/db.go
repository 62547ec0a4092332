package common

import (
	"context"
	"fmt"
	"reflect"

	g "github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/domumdigital/OneHundred/common/logger"
)

var (
	dialect = g.Dialect("mysql")
)

// QueryArg 动态列表查询参数（历史回合、统计类接口用）
type QueryArg struct {
	Db      *sqlx.DB                // db connection
	Table   string                  // table
	Fields  []interface{}           // query fields
	Ex      []exp.Expression        // where conditions
	Order   []exp.OrderedExpression // order conditions
	GroupBy []interface{}           // group by fields
	Offset  uint                    // offset
	Limit   uint                    // limit
}

// EnumFields 通过 db tag 枚举结构体字段名
func EnumFields(obj interface{}) []interface{} {

	rt := reflect.TypeOf(obj)
	if rt.Kind() != reflect.Struct {
		return nil
	}

	var fields []interface{}
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if field := f.Tag.Get("db"); field != "" && field != "-" {
			fields = append(fields, field)
		}
	}

	return fields
}

// SelectAllCtx 查询多条记录
func SelectAllCtx(ctx context.Context, data interface{}, args QueryArg) error {
	if args.Db == nil {
		return fmt.Errorf("invalid db")
	}
	if args.Table == "" {
		return fmt.Errorf("invalid table")
	}
	if len(args.Fields) == 0 {
		return fmt.Errorf("invalid fields")
	}
	ds := dialect.Select(args.Fields...).From(args.Table)
	if len(args.Ex) > 0 {
		ds = ds.Where(args.Ex...)
	}
	if len(args.GroupBy) > 0 {
		ds = ds.GroupBy(args.GroupBy...)
	}
	if len(args.Order) > 0 {
		ds = ds.Order(args.Order...)
	}
	if args.Offset > 0 {
		ds = ds.Offset(args.Offset)
	}
	if args.Limit > 0 {
		ds = ds.Limit(args.Limit)
	}
	query, qargs, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return err
	}
	return args.Db.SelectContext(ctx, data, query, qargs...)
}

// CountCtx 统计行数
func CountCtx(ctx context.Context, db *sqlx.DB, table string, ex ...exp.Expression) (int64, error) {

	var count int64
	query, args, err := dialect.Select(g.COUNT("*")).From(table).Where(ex...).Prepared(true).ToSQL()
	if err != nil {
		return 0, err
	}
	err = db.GetContext(ctx, &count, query, args...)
	if err != nil {
		logger.Warn("count query failed", zap.String("table", table), zap.Error(err))
	}

	return count, err
}

// SumCtx 对整数列求和（空集返回 0）
func SumCtx(ctx context.Context, db *sqlx.DB, table, name string, ex ...exp.Expression) (int64, error) {

	var sum int64
	query, args, err := dialect.Select(g.COALESCE(g.SUM(name), 0)).From(table).Where(ex...).Prepared(true).ToSQL()
	if err != nil {
		return 0, err
	}
	err = db.GetContext(ctx, &sum, query, args...)
	if err != nil {
		logger.Warn("sum query failed", zap.String("table", table), zap.Error(err))
	}

	return sum, err
}
