package resource

import (
	"fmt"
	"sync"

	"gorm.io/gorm"

	"sermon-publisher/pkg/assert"
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/manager"
	"sermon-publisher/pkg/repository"
)

var (
	mysqlResourceOnce sync.Once
	mysqlSingleton    *MysqlResource
)

// MysqlResource 主库连接（driver 可为 mysql/postgres/sqlite）
type MysqlResource struct {
	db *repository.Database
}

func DefaultMysqlResource() *MysqlResource {
	assert.NotCircular()
	mysqlResourceOnce.Do(func() {
		mysqlSingleton = &MysqlResource{}
	})
	assert.NotNil(mysqlSingleton)
	return mysqlSingleton
}

func (r *MysqlResource) MustOpen() {
	if r.db != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before MysqlResource")
	}
	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		panic(fmt.Sprintf("failed to open database: %v", err))
	}
	r.db = db
	logger.Info("Database resource initialized", map[string]interface{}{
		"driver":   cfg.Database.Driver,
		"database": cfg.Database.Database,
	})
}

// MainDB 返回主库 gorm 实例
func (r *MysqlResource) MainDB() *gorm.DB {
	if r.db == nil {
		return nil
	}
	return r.db.Self
}

func (r *MysqlResource) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

type MySqlResourcePlugin struct{}

func (p *MySqlResourcePlugin) Name() string { return "mysqlResource" }

func (p *MySqlResourcePlugin) MustCreateResource() manager.Resource { return DefaultMysqlResource() }
