package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/LJTian/MediaMon/internal/aggregator"
	"github.com/robfig/cron/v3"
)

// Runner 一轮默认订阅源的聚合
type Runner interface {
	Run(ctx context.Context, query string) aggregator.Pass
}

// Scheduler 定时刷新 default 文章集，保证缓存优先接口有热数据
type Scheduler struct {
	cron   *cron.Cron
	runner Runner

	// StartupDelay 首轮采集延迟，避免与启动后的首批请求争抢资源
	StartupDelay time.Duration

	mu      sync.Mutex
	running bool
}

func New(spec string, runner Runner) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:         c,
		runner:       runner,
		StartupDelay: 15 * time.Second,
	}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	time.AfterFunc(s.StartupDelay, func() {
		go s.runOnce()
	})
}

// Stop 等待正在执行的任务结束
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集
func (s *Scheduler) RunOnce() aggregator.Pass {
	return s.run()
}

func (s *Scheduler) runOnce() {
	s.run()
}

// run 上一轮未结束时跳过本轮
func (s *Scheduler) run() aggregator.Pass {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Println("collect job still running, skip")
		return aggregator.Pass{}
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	log.Println("start collect job...")
	pass := s.runner.Run(context.Background(), "")
	for _, r := range pass.Reports {
		log.Printf("%s done, status=%s fetched=%d kept=%d", r.Source, r.Status, r.Fetched, r.Kept)
	}
	log.Printf("collect job done (all sources), articles=%d", len(pass.Articles))
	return pass
}
