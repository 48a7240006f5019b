package mysql

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"kds/board/internal/common/entity"
)

// ActionDAO 操作审计数据访问对象
type ActionDAO struct {
	db *gorm.DB
}

// NewActionDAO 创建 ActionDAO 实例并同步表结构
func NewActionDAO(dsn string) (*ActionDAO, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&entity.ActionLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate action log table: %w", err)
	}

	return &ActionDAO{
		db: db,
	}, nil
}

// SaveAction 写入一条审计记录
func (dao *ActionDAO) SaveAction(ctx context.Context, record *entity.ActionLog) error {
	if err := dao.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to save action log: %w", err)
	}
	return nil
}

// ListByOrder 查询某个订单的操作记录（最新的在前）
func (dao *ActionDAO) ListByOrder(ctx context.Context, orderID string, limit int) ([]*entity.ActionLog, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []*entity.ActionLog
	result := dao.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list action logs: %w", result.Error)
	}
	return records, nil
}

// Close 关闭数据库连接
func (dao *ActionDAO) Close() error {
	sqlDB, err := dao.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
