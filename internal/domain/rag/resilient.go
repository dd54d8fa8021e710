package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	applog "docqa/internal/platform/log"
)

// ResilienceConfig 熔断与重试配置
type ResilienceConfig struct {
	Name            string
	MaxRetries      uint64        // 仅对 ErrProviderUnavailable 重试
	InitialInterval time.Duration // 首次重试间隔
	OpenTimeout     time.Duration // 熔断打开后多久进入半开
	MinRequests     uint32        // 触发熔断所需的最少请求数
	FailureRatio    float64       // 触发熔断的失败比例
}

// ResilientProvider 为 EmbeddingProvider 增加熔断与有限重试。
// 熔断打开期间直接返回 ErrProviderUnavailable，不访问下游。
type ResilientProvider struct {
	next            EmbeddingProvider
	breaker         *gobreaker.CircuitBreaker
	maxRetries      uint64
	initialInterval time.Duration
}

// NewResilientProvider 包装 provider
func NewResilientProvider(next EmbeddingProvider, cfg ResilienceConfig) *ResilientProvider {
	if cfg.Name == "" {
		cfg.Name = "embedding"
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			applog.Warn("[RAG/Embedder] Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		// 只有服务不可用计入失败，请求本身的错误不应触发熔断
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrProviderUnavailable)
		},
	}

	return &ResilientProvider{
		next:            next,
		breaker:         gobreaker.NewCircuitBreaker(settings),
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
	}
}

// Dims 返回下游向量维度
func (p *ResilientProvider) Dims() int {
	return p.next.Dims()
}

// State 当前熔断状态
func (p *ResilientProvider) State() gobreaker.State {
	return p.breaker.State()
}

// Embed 经熔断器调用下游，ErrProviderUnavailable 按指数退避重试
func (p *ResilientProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		out, err := p.breaker.Execute(func() (interface{}, error) {
			return p.next.Embed(ctx, texts)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
			}
			if !errors.Is(err, ErrProviderUnavailable) {
				return backoff.Permanent(err)
			}
			return err
		}
		vectors = out.([][]float32)
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.initialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, p.maxRetries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return vectors, nil
}
