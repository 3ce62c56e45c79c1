package metrics

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Collector 指标收集器
// 周期性采集数据库连接数与请求状态分布
type Collector struct {
	db       *gorm.DB
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, interval time.Duration) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:       db,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	go c.collect()
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	<-c.done
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			_ = UpdateDatabaseConnections(c.db)
			c.collectStateDistribution()
		}
	}
}

// collectStateDistribution 采集请求状态分布
func (c *Collector) collectStateDistribution() {
	var results []struct {
		State string
		Count int64
	}
	err := c.db.Table("approval_requests").
		Select("state, COUNT(*) as count").
		Group("state").
		Scan(&results).Error
	if err != nil {
		return
	}
	for _, r := range results {
		UpdateRequestsByState(r.State, float64(r.Count))
	}
}
