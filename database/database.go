package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"ledger/config"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var DB *gorm.DB

// Init 初始化数据库连接并执行版本化迁移
func Init(cfg *config.Config) error {
	dsn := buildDSN(cfg, false)

	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}

	// 获取底层 *sql.DB 连接池配置
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	// 设置连接池参数
	sqlDB.SetMaxIdleConns(10)  // 最大空闲连接数
	sqlDB.SetMaxOpenConns(100) // 最大打开连接数

	if err := RunMigrations(cfg); err != nil {
		return fmt.Errorf("执行数据库迁移失败: %w", err)
	}

	log.Println("数据库初始化成功")
	return nil
}

// RunMigrations 执行嵌入的版本化 SQL 迁移脚本
// 使用独立连接，避免影响主连接池
func RunMigrations(cfg *config.Config) error {
	migrateDB, err := sql.Open("mysql", buildDSN(cfg, true))
	if err != nil {
		return fmt.Errorf("打开迁移连接失败: %w", err)
	}
	defer migrateDB.Close()

	driver, err := migratemysql.WithInstance(migrateDB, &migratemysql.Config{})
	if err != nil {
		return fmt.Errorf("创建迁移驱动失败: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("读取迁移脚本失败: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "mysql", driver)
	if err != nil {
		return fmt.Errorf("创建迁移实例失败: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// buildDSN 构建 MySQL DSN 连接字符串
// 迁移连接需开启 multiStatements 以支持单个脚本内的多条语句
func buildDSN(cfg *config.Config, multiStatements bool) string {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
		cfg.Database.Charset,
	)
	if multiStatements {
		dsn += "&multiStatements=true"
	}
	return dsn
}

// GetDB 获取数据库连接
func GetDB() *gorm.DB {
	return DB
}
