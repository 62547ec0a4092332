package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/domumdigital/OneHundred/common"
	"github.com/domumdigital/OneHundred/common/logger"
	"github.com/domumdigital/OneHundred/internal/config"
	infmysql "github.com/domumdigital/OneHundred/internal/infra/mysql"
	infrds "github.com/domumdigital/OneHundred/internal/infra/redis"
	"github.com/domumdigital/OneHundred/internal/model"
	"github.com/domumdigital/OneHundred/internal/state"
	"github.com/domumdigital/OneHundred/internal/worker"
	_ "github.com/domumdigital/OneHundred/routers"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	logger.InitLogger()
	defer logger.Sync()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 配置加载：Nacos -> Etcd -> 本地文件
	cfg, err := config.Load(rootCtx)
	if err != nil {
		logger.Fatalf("load config failed", zap.Error(err))
	}
	config.SetCurrent(cfg)
	if cfg.Server.LogLevel != "" {
		logger.SetLevel(cfg.Server.LogLevel)
	}

	// 配置热更新监听：日志级别即时生效，彩票参数受一次性锁保护（见 watcher）
	onChange := func(oldCfg, newCfg *config.Config) {
		if newCfg.Server.LogLevel != "" && (oldCfg == nil || newCfg.Server.LogLevel != oldCfg.Server.LogLevel) {
			logger.SetLevel(newCfg.Server.LogLevel)
			logger.Info("log level updated", zap.String("level", newCfg.Server.LogLevel))
		}
	}
	if err := config.StartWatch(rootCtx, onChange); err != nil {
		logger.Warn("config watch not started", zap.Error(err))
	}

	// 2. MySQL
	db := common.InitDB(cfg.Database.DSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	if cfg.Database.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second)
	}
	infmysql.UseDB(db.DB)

	// 3. Redis
	infrds.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := infrds.Ping(rootCtx, 2*time.Second); err != nil {
		logger.Warn("redis ping failed, continue with degraded mode", zap.Error(err))
	}

	// 4. 状态行初始化与配置锁恢复
	if err := model.EnsureState(rootCtx, infmysql.SQLX(), state.StateWaitingForPlayer); err != nil {
		logger.Fatalf("ensure lottery state failed", zap.Error(err))
	}
	st, err := model.GetStateForUpdate(rootCtx, infmysql.SQLX(), false)
	if err != nil {
		logger.Fatalf("read lottery state failed", zap.Error(err))
	}
	if st.ConfigLocked == 1 {
		// 历史上已有首次选号，彩票参数保持锁定
		config.LockLottery()
		logger.Info("lottery config lock restored from state")
	}
	logger.Info("lottery state loaded",
		zap.String("phase", st.Phase),
		zap.Int64("round_no", st.CurrentRoundNo),
		zap.Int64("treasury", st.Treasury))

	// 5. 后台 worker：Outbox 分发 + 预言机 MQ 消费
	var wg sync.WaitGroup
	worker.StartOutboxDispatcher(rootCtx, &wg)
	worker.StartInboxConsumer(rootCtx, &wg)

	// 6. Prometheus 指标端点（独立端口）
	if cfg.Observability.EnableProm {
		promAddr := cfg.Observability.PromAddr
		if promAddr == "" {
			promAddr = ":9100"
		}
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(promAddr, mux); err != nil {
				logger.Warn("prometheus endpoint stopped", zap.Error(err))
			}
		}()
		logger.Info("prometheus metrics enabled", zap.String("addr", promAddr))
	}

	// 7. HTTP 服务
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	beego.BConfig.CopyRequestBody = true
	beego.BConfig.RunMode = runMode()
	logger.Info("server starting", zap.Int("port", port))

	go func() {
		<-rootCtx.Done()
		logger.Info("shutdown signal received")
		// beego.Run 无法直接取消，等待 worker 收尾后退出进程
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			logger.Warn("worker shutdown timed out")
		}
		logger.Sync()
		os.Exit(0)
	}()

	beego.Run(":" + strconv.Itoa(port))
}

func runMode() string {
	if m := os.Getenv("RUN_MODE"); m != "" {
		return m
	}
	return "prod"
}
