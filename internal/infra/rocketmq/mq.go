package rocketmq

import (
	"context"
	"strings"
	"sync"
	"time"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"

	"github.com/domumdigital/OneHundred/common/logger"
	"github.com/domumdigital/OneHundred/internal/config"

	"go.uber.org/zap"
)

// 业务 Topic
const (
	// TopicLotteryEvents 出站事件：numbers_selected / entropy_requested / prize_distributed / trigger_failed
	TopicLotteryEvents = "lottery_events"
	// TopicOracleReplies 入站：预言机随机数履约消息
	TopicOracleReplies = "lottery_oracle_replies"
)

// Publisher is a minimal facade for sending messages.
type Publisher interface {
	Publish(topic string, body []byte) error
}

var (
	initOnce sync.Once
	enabled  bool
	prod     rmq.Producer
	pub      Publisher
)

// Enabled reports whether MQ is configured and producer started.
func Enabled() bool { initOnce.Do(initMQ); return enabled }

// PublisherInstance returns the active publisher (stub if disabled).
func PublisherInstance() Publisher {
	initOnce.Do(initMQ)
	if pub == nil {
		pub = &stubPublisher{}
	}
	return pub
}

// Real publisher backed by RocketMQ v5 client.
type rmqPublisher struct{ p rmq.Producer }

func (r *rmqPublisher) Publish(topic string, body []byte) error {
	if r.p == nil {
		return nil
	}
	msg := &rmq.Message{Topic: topic, Body: body}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.p.Send(ctx, msg)
	return err
}

// Stub publisher used when MQ is disabled.
type stubPublisher struct{}

func (s *stubPublisher) Publish(topic string, body []byte) error {
	logger.Warn("[mq disabled] drop message", zap.String("topic", topic))
	return nil
}

// SanitizeEndpoint 去掉 scheme，多地址只取第一个
func SanitizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if idx := strings.IndexAny(endpoint, ",;"); idx > 0 {
		endpoint = strings.TrimSpace(endpoint[:idx])
	}
	return endpoint
}

func initMQ() {
	// Use SDK's ResetLogger to avoid default file-based logging under /logs
	rmq.ResetLogger()

	mqCfg := config.GetCurrent()
	if mqCfg == nil || mqCfg.RocketMQ.Endpoint == "" {
		enabled = false
		pub = &stubPublisher{}
		return
	}
	endpoint := SanitizeEndpoint(mqCfg.RocketMQ.Endpoint)
	ak := strings.TrimSpace(mqCfg.RocketMQ.AccessKey)
	sk := strings.TrimSpace(mqCfg.RocketMQ.SecretKey)

	// 安全起见：若缺少凭证则禁用 MQ（避免底层 SDK 在 Sign 阶段空指针崩溃）
	if ak == "" || sk == "" {
		enabled = false
		pub = &stubPublisher{}
		logger.Warn("rocketmq disabled: missing access/secret key while endpoint present")
		return
	}

	cfg := &rmq.Config{Endpoint: endpoint}
	cfg.Credentials = &credentials.SessionCredentials{AccessKey: ak, AccessSecret: sk}
	logger.Info("rocketmq producer config", zap.String("endpoint", endpoint), zap.String("topic", TopicLotteryEvents))

	p, err := rmq.NewProducer(cfg, rmq.WithTopics(TopicLotteryEvents))
	if err != nil {
		logger.Error("rocketmq: producer init failed", zap.Error(err))
		enabled = false
		pub = &stubPublisher{}
		return
	}

	logger.Info("rocketmq: producer created, starting (this may take a few seconds)...")

	// 使用 goroutine 异步启动，避免阻塞主流程
	startDone := make(chan error, 1)
	go func() {
		startDone <- p.Start()
	}()

	// 等待启动完成或超时（2秒）
	select {
	case err := <-startDone:
		if err != nil {
			logger.Warn("rocketmq: producer start failed (will use stub publisher)", zap.Error(err))
			enabled = false
			pub = &stubPublisher{}
			return
		}
		prod = p
		pub = &rmqPublisher{p: p}
		enabled = true
		logger.Info("rocketmq enabled", zap.String("endpoint", endpoint))
	case <-time.After(2 * time.Second):
		logger.Warn("rocketmq: producer start timeout (will use stub publisher, messages will be dropped)")
		enabled = false
		pub = &stubPublisher{}
		return
	}
}

// NewSimpleConsumer 构造并启动入站消费者（带重试），供 inbox worker 使用
func NewSimpleConsumer(topics []string) (rmq.SimpleConsumer, error) {
	rmq.ResetLogger()

	mqCfg := config.GetCurrent()
	if mqCfg == nil || mqCfg.RocketMQ.Endpoint == "" {
		return nil, nil
	}
	endpoint := SanitizeEndpoint(mqCfg.RocketMQ.Endpoint)
	group := strings.TrimSpace(mqCfg.RocketMQ.ConsumerGroup)
	ak := strings.TrimSpace(mqCfg.RocketMQ.AccessKey)
	sk := strings.TrimSpace(mqCfg.RocketMQ.SecretKey)
	if group == "" || ak == "" || sk == "" {
		logger.Warn("[mq] consumer not started: missing group or credentials")
		return nil, nil
	}

	cfg := &rmq.Config{Endpoint: endpoint, ConsumerGroup: group}
	cfg.Credentials = &credentials.SessionCredentials{AccessKey: ak, AccessSecret: sk}

	subs := map[string]*rmq.FilterExpression{}
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		subs[t] = rmq.SUB_ALL
	}

	// 带重试启动，避免容器刚启动未就绪导致一次性失败
	var sc rmq.SimpleConsumer
	var err error
	for i := 0; i < 6; i++ { // 最长约 6*3s = 18s
		sc, err = rmq.NewSimpleConsumer(cfg,
			rmq.WithAwaitDuration(5*time.Second),
			rmq.WithSubscriptionExpressions(subs),
		)
		if err == nil {
			if e := sc.Start(); e == nil {
				return sc, nil
			} else {
				err = e
			}
		}
		logger.Warn("[mq] simple consumer start retry", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(3 * time.Second)
	}
	return nil, err
}
