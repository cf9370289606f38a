package database

import (
	"fmt"

	"github.com/wfunc/if-gateway/internal/logger"
	"github.com/wfunc/if-gateway/internal/models"
	"go.uber.org/zap"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	// 三张核心表：games / sessions / channels
	migrationModels := []interface{}{
		&models.GameFile{},
		&models.Session{},
		&models.PlayChannel{},
	}

	for _, model := range migrationModels {
		if err := DB.AutoMigrate(model); err != nil {
			logger.Error("表迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}

	logger.Info("数据库迁移完成", zap.Int("tables", len(migrationModels)))
	return nil
}
