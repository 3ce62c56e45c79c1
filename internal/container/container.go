package container

import (
	"fmt"
	"time"

	"github.com/clmops/approval-engine/internal/config"
	"github.com/clmops/approval-engine/internal/database"
	"github.com/clmops/approval-engine/internal/engine"
	"github.com/clmops/approval-engine/internal/metrics"
	"github.com/clmops/approval-engine/internal/notify"
	"github.com/clmops/approval-engine/internal/repository"
	"github.com/clmops/approval-engine/internal/service"
	"github.com/clmops/approval-engine/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、引擎、服务与协作方
type Container struct {
	db                *gorm.DB
	logger            *logrus.Logger
	hub               *websocket.Hub
	emailSender       *notify.SMTPSender
	notificationStore *notify.Store
	dispatcher        *engine.Dispatcher
	engine            *engine.Engine
	workflowService   service.WorkflowService
	queryService      service.QueryService
	statisticsService service.StatisticsService
	auditLogService   service.AuditLogService
	collector         *metrics.Collector
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	// 1. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return NewContainerWithDB(cfg, db, logger)
}

// NewContainerWithDB 基于已有数据库连接创建容器(测试用 sqlite 时走这个入口)
func NewContainerWithDB(cfg *config.Config, db *gorm.DB, logger *logrus.Logger) (*Container, error) {
	if logger == nil {
		logger = logrus.New()
	}

	// 2. WebSocket hub,实时推送审批事件
	hub := websocket.NewHub()
	go hub.Run()

	// 3. 邮件发送器,host 未配置时为禁用模式
	emailSender := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		AppURL:   cfg.SMTP.AppURL,
	}, logger)

	// 4. 站内通知中心
	notificationStore := notify.NewStore(db)

	// 5. 通知分发器
	var sender engine.EmailSender
	if emailSender.Enabled() {
		sender = emailSender
	}
	dispatcher := engine.NewDispatcher(
		sender,
		notificationStore,
		hub,
		repository.NewEventRepository(db),
		engine.DispatcherConfig{
			AppURL:    cfg.SMTP.AppURL,
			Timeout:   time.Duration(cfg.Notify.DispatchTimeout) * time.Second,
			QueueSize: cfg.Notify.QueueSize,
			Workers:   cfg.Notify.Workers,
		},
		logger,
	)

	// 6. 审批工作流引擎
	eng := engine.NewEngine(db, dispatcher, engine.Config{
		ResetDeadlineOnEscalation: cfg.Escalation.ResetDeadline,
		DefaultTimeoutDays:        cfg.Workflow.DefaultTimeoutDays,
	}, logger)

	// 7. 服务层
	auditLogService := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	workflowService := service.NewWorkflowService(eng, auditLogService, logger)
	queryService := service.NewQueryService(db)
	statisticsService := service.NewStatisticsService(eng, db)

	// 8. 指标采集器
	collector := metrics.NewCollector(db, 15*time.Second)
	collector.Start()

	return &Container{
		db:                db,
		logger:            logger,
		hub:               hub,
		emailSender:       emailSender,
		notificationStore: notificationStore,
		dispatcher:        dispatcher,
		engine:            eng,
		workflowService:   workflowService,
		queryService:      queryService,
		statisticsService: statisticsService,
		auditLogService:   auditLogService,
		collector:         collector,
	}, nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Logger 获取日志记录器
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// Hub 获取 WebSocket hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// Engine 获取审批工作流引擎
func (c *Container) Engine() *engine.Engine {
	return c.engine
}

// Dispatcher 获取通知分发器
func (c *Container) Dispatcher() *engine.Dispatcher {
	return c.dispatcher
}

// NotificationStore 获取站内通知中心
func (c *Container) NotificationStore() *notify.Store {
	return c.notificationStore
}

// WorkflowService 获取审批流程服务
func (c *Container) WorkflowService() service.WorkflowService {
	return c.workflowService
}

// QueryService 获取查询服务
func (c *Container) QueryService() service.QueryService {
	return c.queryService
}

// StatisticsService 获取统计服务
func (c *Container) StatisticsService() service.StatisticsService {
	return c.statisticsService
}

// AuditLogService 获取审计日志服务
func (c *Container) AuditLogService() service.AuditLogService {
	return c.auditLogService
}

// RecoverPendingEvents 进程重启后补投未完成的通知事件
func (c *Container) RecoverPendingEvents(limit int) int {
	events := repository.NewEventRepository(c.db)
	models, err := events.FindPending(limit)
	if err != nil {
		c.logger.WithField("error", err.Error()).Warn("failed to load pending events")
		return 0
	}

	count := 0
	for _, em := range models {
		evt, err := engine.EventFromModel(em)
		if err != nil {
			continue
		}
		c.dispatcher.Enqueue(evt)
		count++
	}

	if count > 0 {
		c.logger.WithField("count", count).Info("requeued pending notification events")
	}
	return count
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.collector != nil {
		c.collector.Stop()
	}
	if c.dispatcher != nil {
		c.dispatcher.Close()
	}

	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	return nil
}
