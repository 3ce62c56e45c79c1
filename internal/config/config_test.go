package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clmops/approval-engine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault 测试默认配置值
func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "approval", cfg.Database.DBName)

	// SMTP host 留空表示邮件通道禁用
	assert.Empty(t, cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)

	assert.Equal(t, 300, cfg.Escalation.SweepInterval)
	assert.False(t, cfg.Escalation.ResetDeadline)

	assert.Equal(t, 5, cfg.Notify.DispatchTimeout)
	assert.Equal(t, 1000, cfg.Notify.QueueSize)
	assert.Equal(t, 5, cfg.Notify.Workers)

	assert.Equal(t, 7, cfg.Workflow.DefaultTimeoutDays)
}

// TestLoad_FromFile 测试从配置文件加载
func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
env: production
server:
  host: 127.0.0.1
  port: 9090
escalation:
  sweep_interval: 60
  reset_deadline: true
workflow:
  default_timeout_days: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Escalation.SweepInterval)
	assert.True(t, cfg.Escalation.ResetDeadline)
	assert.Equal(t, 3, cfg.Workflow.DefaultTimeoutDays)
	// 未覆盖的配置取默认值
	assert.Equal(t, "localhost", cfg.Database.Host)
}

// TestLoad_MissingFile 测试指定的配置文件不存在时报错
func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

// TestLoad_FromEnv 测试环境变量覆盖
func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "9999")
	t.Setenv("APP_DATABASE_HOST", "db.internal")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

// TestIsProduction 测试环境判断
func TestIsProduction(t *testing.T) {
	assert.False(t, config.IsProduction(nil))
	assert.False(t, config.IsProduction(&config.Config{Env: "development"}))
	assert.True(t, config.IsProduction(&config.Config{Env: "production"}))
}
