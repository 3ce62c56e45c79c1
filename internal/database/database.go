package database

import (
	"context"
	"fmt"
	"time"

	"github.com/clmops/approval-engine/internal/config"
	"github.com/clmops/approval-engine/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置
func GetPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 600,  // 10 分钟
	}
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := BuildDSN(cfg)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 从配置中读取连接池参数，如果没有配置则使用默认值
	var poolConfig *PoolConfig
	if cfg.MaxIdleConns > 0 || cfg.MaxOpenConns > 0 {
		poolConfig = &PoolConfig{
			MaxIdleConns:    cfg.MaxIdleConns,
			MaxOpenConns:    cfg.MaxOpenConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		}
		// 如果某些值未设置，使用默认值
		if poolConfig.MaxIdleConns == 0 {
			poolConfig.MaxIdleConns = 10
		}
		if poolConfig.MaxOpenConns == 0 {
			poolConfig.MaxOpenConns = 100
		}
		if poolConfig.ConnMaxLifetime == 0 {
			poolConfig.ConnMaxLifetime = 3600
		}
		if poolConfig.ConnMaxIdleTime == 0 {
			poolConfig.ConnMaxIdleTime = 600
		}
	} else {
		poolConfig = GetPoolConfig()
	}

	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(poolConfig.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(poolConfig.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		// 如果不是最后一次重试，等待后重试
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	// 检测数据库类型
	dialector := db.Dialector.Name()

	// SQLite 不支持 jsonb，需要手动创建表
	// GORM SQLite dialector 的名称可能是 "sqlite" 或 "sqlite3"
	if dialector == "sqlite" || dialector == "sqlite3" {
		// 手动创建 SQLite 表（使用 TEXT 替代 jsonb）
		if err := createSQLiteTables(db); err != nil {
			return fmt.Errorf("failed to create SQLite tables: %w", err)
		}
	} else {
		// PostgreSQL 等其他数据库使用 AutoMigrate
		if err := db.AutoMigrate(
			&model.RuleModel{},
			&model.RequestModel{},
			&model.NotificationModel{},
			&model.StateHistoryModel{},
			&model.EventModel{},
			&model.AuditLogModel{},
		); err != nil {
			return fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	// 创建索引
	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createSQLiteTables 为 SQLite 手动创建表（使用 TEXT 替代 jsonb）
func createSQLiteTables(db *gorm.DB) error {
	// 创建 approval_rules 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS approval_rules (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(128) NOT NULL,
			entity_type VARCHAR(64) NOT NULL,
			conditions TEXT NOT NULL,
			approvers TEXT NOT NULL,
			approval_levels INTEGER NOT NULL,
			timeout_days INTEGER NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			escalation_enabled BOOLEAN NOT NULL DEFAULT 0,
			notification_enabled BOOLEAN NOT NULL DEFAULT 1,
			escalation_approver TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create approval_rules table: %w", err)
	}

	// 创建 approval_requests 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS approval_requests (
			id VARCHAR(64) PRIMARY KEY,
			rule_id VARCHAR(64),
			entity_id VARCHAR(64) NOT NULL,
			entity_type VARCHAR(64) NOT NULL,
			entity TEXT NOT NULL,
			requester_id VARCHAR(64) NOT NULL,
			requester_email VARCHAR(128) NOT NULL,
			requester_name VARCHAR(128),
			approver_id VARCHAR(64) NOT NULL,
			approver_email VARCHAR(128) NOT NULL,
			approver_name VARCHAR(128),
			document_title VARCHAR(256) NOT NULL,
			priority VARCHAR(16) NOT NULL DEFAULT 'normal',
			state VARCHAR(32) NOT NULL,
			escalated BOOLEAN NOT NULL DEFAULT 0,
			current_level INTEGER NOT NULL DEFAULT 1,
			total_levels INTEGER NOT NULL DEFAULT 1,
			comment TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			expiry_date DATETIME NOT NULL,
			decided_at DATETIME
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create approval_requests table: %w", err)
	}

	// 创建 notifications 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS notifications (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			subject VARCHAR(256) NOT NULL,
			type VARCHAR(32) NOT NULL,
			action_url VARCHAR(512),
			read BOOLEAN NOT NULL DEFAULT 0,
			read_at DATETIME,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create notifications table: %w", err)
	}

	// 创建 state_history 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS state_history (
			id VARCHAR(64) PRIMARY KEY,
			request_id VARCHAR(64) NOT NULL,
			from_state VARCHAR(32),
			to_state VARCHAR(32) NOT NULL,
			reason TEXT,
			operator VARCHAR(64) NOT NULL,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create state_history table: %w", err)
	}

	// 创建 events 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id VARCHAR(64) PRIMARY KEY,
			request_id VARCHAR(64) NOT NULL,
			type VARCHAR(32) NOT NULL,
			data TEXT NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'pending',
			retry_count INTEGER DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	// 创建 audit_logs 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_logs (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			action VARCHAR(64) NOT NULL,
			resource_type VARCHAR(32) NOT NULL,
			resource_id VARCHAR(64) NOT NULL,
			request_id VARCHAR(64),
			ip VARCHAR(45),
			user_agent TEXT,
			details TEXT,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create audit_logs table: %w", err)
	}

	return nil
}

// CreateIndexes 创建数据库索引
func CreateIndexes(db *gorm.DB) error {
	// 检测数据库类型
	dialector := db.Dialector.Name()

	// approval_rules 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_rules_entity_type ON approval_rules(entity_type, is_active)").Error; err != nil {
		return fmt.Errorf("failed to create idx_rules_entity_type: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_rules_priority ON approval_rules(priority, created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_rules_priority: %w", err)
	}

	// approval_requests 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_requests_state ON approval_requests(state)").Error; err != nil {
		return fmt.Errorf("failed to create idx_requests_state: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_requests_overdue ON approval_requests(state, escalated, expiry_date)").Error; err != nil {
		return fmt.Errorf("failed to create idx_requests_overdue: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_requests_rule_id ON approval_requests(rule_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_requests_rule_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_requests_approver ON approval_requests(approver_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_requests_approver: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_requests_created_at ON approval_requests(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_requests_created_at: %w", err)
	}

	// notifications 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, read)").Error; err != nil {
		return fmt.Errorf("failed to create idx_notifications_user: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_notifications_created_at: %w", err)
	}

	// state_history 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_history_request_id ON state_history(request_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_history_request_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_history_created_at ON state_history(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_history_created_at: %w", err)
	}

	// events 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_events_status ON events(status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_events_status: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_events_request_id ON events(request_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_events_request_id: %w", err)
	}

	// audit_logs 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs(resource_type, resource_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_audit_resource: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_audit_user_id ON audit_logs(user_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_audit_user_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_logs(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_audit_created_at: %w", err)
	}

	// PostgreSQL 特定的 GIN 索引
	if dialector == "postgres" {
		// JSONB 字段的 GIN 索引
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_rules_conditions_gin ON approval_rules USING GIN (conditions)").Error; err != nil {
			return fmt.Errorf("failed to create idx_rules_conditions_gin: %w", err)
		}
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_requests_entity_gin ON approval_requests USING GIN (entity)").Error; err != nil {
			return fmt.Errorf("failed to create idx_requests_entity_gin: %w", err)
		}
	}

	return nil
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return false
	}

	return true
}
