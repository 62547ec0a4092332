package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	rmq "github.com/apache/rocketmq-clients/golang/v5"

	"github.com/domumdigital/OneHundred/common"
	chelper "github.com/domumdigital/OneHundred/common/helper"
	"github.com/domumdigital/OneHundred/common/logger"
	"github.com/domumdigital/OneHundred/internal/config"
	infmysql "github.com/domumdigital/OneHundred/internal/infra/mysql"
	infmq "github.com/domumdigital/OneHundred/internal/infra/rocketmq"
	"github.com/domumdigital/OneHundred/internal/model"
	"github.com/domumdigital/OneHundred/internal/service"

	"go.uber.org/zap"
)

// StartOutboxDispatcher 启动 Outbox 分发器，支持通过 ctx 优雅退出
// 投递通道：MQ（已启用时）与预言机 HTTP 直推（配置了 notify_url 时），二者至少一条可用才运行
func StartOutboxDispatcher(ctx context.Context, wg *sync.WaitGroup) {
	cfg := config.GetCurrent()
	notifyURL := ""
	if cfg != nil {
		notifyURL = cfg.Oracle.NotifyURL
	}
	if !infmq.Enabled() && notifyURL == "" {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()

		// 多实例部署时错峰轮询
		select {
		case <-ctx.Done():
			return
		case <-time.After(chelper.Jitter(500 * time.Millisecond)):
		}

		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c, cancel := context.WithTimeout(ctx, 2*time.Second)
				rows, err := model.ListOutboxPending(c, infmysql.SQLX(), 100)
				cancel()
				if err != nil {
					logger.Warn("outbox: list pending failed", zap.Error(err))
					continue
				}
				for _, r := range rows {
					if err := dispatchOutboxRow(&r); err != nil {
						_ = model.MarkOutboxFailed(ctx, infmysql.SQLX(), r.ID, truncateErr(err))
						continue
					}
					if err := model.MarkOutboxSent(ctx, infmysql.SQLX(), r.ID); err != nil {
						logger.Warn("outbox: mark sent failed", zap.Int64("id", r.ID), zap.Error(err))
					}
				}
			}
		}
	}()
}

// dispatchOutboxRow 单行投递：MQ 为主通道；entropy_requested 事件额外直推预言机
// MQ 未启用时直推成功即视为已投递
func dispatchOutboxRow(r *model.OutboxRow) error {
	var mqErr error
	if infmq.Enabled() {
		mqErr = infmq.PublisherInstance().Publish(r.Topic, []byte(r.Payload))
	}

	if isEntropyRequest(r.Payload) {
		if err := notifyOracle([]byte(r.Payload)); err != nil {
			if !infmq.Enabled() {
				return err
			}
			// MQ 已送达则预言机仍可从 MQ 消费，HTTP 失败仅记日志
			logger.Warn("outbox: oracle http notify failed", zap.Int64("id", r.ID), zap.Error(err))
		} else if !infmq.Enabled() {
			return nil
		}
	}
	return mqErr
}

func isEntropyRequest(payload string) bool {
	var env struct {
		Event string `json:"event"`
	}
	if err := common.JsonUnmarshal([]byte(payload), &env); err != nil {
		return false
	}
	return env.Event == "entropy_requested"
}

// notifyOracle 将随机数请求 POST 到预言机回调地址
func notifyOracle(payload []byte) error {
	cfg := config.GetCurrent()
	if cfg == nil || cfg.Oracle.NotifyURL == "" {
		return nil
	}
	timeout := chelper.OracleNotifyTimeout
	if cfg.Oracle.TimeoutMs > 0 {
		timeout = time.Duration(cfg.Oracle.TimeoutMs) * time.Millisecond
	}
	headers := map[string]string{"Content-Type": "application/json"}
	_, status, err := chelper.HttpDoTimeout(payload, "POST", cfg.Oracle.NotifyURL, headers, timeout)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("oracle notify: unexpected status %d", status)
	}
	return nil
}

func truncateErr(err error) string {
	b, _ := common.JsonMarshalFast(map[string]string{"error": err.Error()})
	if len(b) > 240 {
		return string(b[:240])
	}
	return string(b)
}

// StartInboxConsumer 启动 RocketMQ v5 SimpleConsumer，消费预言机回复主题
// 消息可靠落库至 inbox 表（去重）后走与 HTTP 回调相同的履约路径
func StartInboxConsumer(ctx context.Context, wg *sync.WaitGroup) {
	sc, err := infmq.NewSimpleConsumer([]string{infmq.TopicOracleReplies})
	if err != nil {
		logger.Error("[mq] start simple consumer failed", zap.Error(err))
		return
	}
	if sc == nil {
		// MQ 未配置
		return
	}
	logger.Info("[mq] inbox consumer started", zap.String("topic", infmq.TopicOracleReplies))

	maxMessageNum := int32(16)
	invisibleDuration := 20 * time.Second
	entropySvc := service.NewEntropyService()

	wg.Add(1)

	go func() {
		defer wg.Done()

		defer sc.GracefulStop()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				mvs, err := sc.Receive(ctx, maxMessageNum, invisibleDuration)
				if err != nil {
					// 上下文取消则直接退出
					if ctx.Err() != nil {
						return
					}
					logger.Warn("[mq] receive error", zap.Error(err))
					continue
				}
				for _, mv := range mvs {
					handleOracleReply(ctx, sc, mv, entropySvc)
				}
			}
		}
	}()
}

// handleOracleReply 单条预言机回复消息的落库与履约
func handleOracleReply(ctx context.Context, sc rmq.SimpleConsumer, mv *rmq.MessageView, entropySvc service.EntropyService) {
	id := mv.GetMessageId()
	topic := mv.GetTopic()
	body := mv.GetBody()

	first, err := model.UpsertInbox(ctx, infmysql.SQLX(), id, topic, string(body))
	if err != nil {
		logger.Warn("[mq] upsert inbox failed", zap.String("id", id), zap.String("topic", topic), zap.Error(err))
		return
	}
	if !first {
		done, err := model.InboxProcessed(ctx, infmysql.SQLX(), id, topic)
		if err != nil {
			logger.Warn("[mq] query inbox failed", zap.String("id", id), zap.Error(err))
			return
		}
		if done {
			// 处理完成的重投消息直接确认
			if err := sc.Ack(ctx, mv); err != nil {
				logger.Warn("[mq] ack failed", zap.String("id", id), zap.Error(err))
			}
			return
		}
		// 上次处理中途失败的重投消息：重走履约
	}

	// 下游以消息ID作为 trace_id
	ctx = logger.WithTraceID(ctx, id)

	requestID, randomValue, ok := parseOracleReply(body)
	if !ok {
		// 畸形消息重投也无法成功，标记处理完成后确认
		logger.Warn("[mq] malformed oracle reply, ack and skip", zap.String("id", id))
		if err := model.MarkInboxProcessed(ctx, infmysql.SQLX(), id, topic); err != nil {
			logger.Warn("[mq] mark inbox processed failed", zap.String("id", id), zap.Error(err))
		}
		if err := sc.Ack(ctx, mv); err != nil {
			logger.Warn("[mq] ack failed", zap.String("id", id), zap.Error(err))
		}
		return
	}

	_, err = entropySvc.Fulfill(ctx, service.FulfillInput{
		RequestID:   requestID,
		RandomValue: randomValue,
		Operator:    "oracle",
		Source:      "mq",
		TraceID:     id,
	})
	if err != nil {
		// 已履约/已开奖属于正常的重复投递，确认消息即可
		if errors.Is(err, service.ErrInvalidRequestID) ||
			errors.Is(err, service.ErrNumberAlreadyGenerated) ||
			errors.Is(err, service.ErrPrizeAlreadyDistributed) {
			logger.Info("[mq] oracle reply already fulfilled", zap.String("request_id", requestID))
		} else {
			// 其他错误不确认也不标记处理完成，等待重新投递后重走履约
			logger.Warn("[mq] fulfill failed, will redeliver",
				zap.String("request_id", requestID), zap.Error(err))
			return
		}
	}

	// 先标记处理完成再确认；标记失败则留给重投，按已履约路径收敛
	if err := model.MarkInboxProcessed(ctx, infmysql.SQLX(), id, topic); err != nil {
		logger.Warn("[mq] mark inbox processed failed", zap.String("id", id), zap.Error(err))
		return
	}
	if err := sc.Ack(ctx, mv); err != nil {
		logger.Warn("[mq] ack failed", zap.String("id", id), zap.Error(err))
	}
}

// parseOracleReply 解析预言机回复：{"request_id":"...","random_value":"..."}
// random_value 兼容字符串与数字两种形式
func parseOracleReply(body []byte) (string, uint64, bool) {
	var payload map[string]any
	if err := common.JsonUnmarshal(body, &payload); err != nil {
		return "", 0, false
	}
	requestID, _ := payload["request_id"].(string)
	if requestID == "" {
		return "", 0, false
	}
	switch v := payload["random_value"].(type) {
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return "", 0, false
		}
		return requestID, n, true
	case float64:
		return requestID, uint64(v), true
	}
	return "", 0, false
}
