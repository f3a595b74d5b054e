package mysql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
)

// Open 打开 MySQL 连接（DSN 需带 parseTime=true 才能得到 time.Time 列）
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FactLoader 从 MySQL 事实表加载订单表与线索下发表（实现 dataaccess.Loader）
type FactLoader struct {
	db             *gorm.DB
	ordersTable    string
	assignTable    string
	definitionPath string
	loc            *time.Location
}

// NewFactLoader 创建事实表加载器；assignTable 为空时不加载线索下发表
func NewFactLoader(db *gorm.DB, ordersTable, assignTable, definitionPath string, loc *time.Location) *FactLoader {
	if loc == nil {
		loc = time.Local
	}
	return &FactLoader{
		db:             db,
		ordersTable:    ordersTable,
		assignTable:    assignTable,
		definitionPath: definitionPath,
		loc:            loc,
	}
}

// Load 实现 dataaccess.Loader
func (l *FactLoader) Load(ctx context.Context) (*dataaccess.Dataset, error) {
	ds := &dataaccess.Dataset{}

	orders, err := l.readTable(ctx, "orders", l.ordersTable, dataaccess.OrderSchema())
	if err != nil {
		return nil, err
	}
	ds.Orders = orders

	if l.assignTable != "" {
		assign, err := l.readTable(ctx, "assign", l.assignTable, dataaccess.AssignSchema())
		if err != nil {
			return nil, err
		}
		ds.Assign = assign
	}

	if l.definitionPath != "" {
		def, err := dataaccess.LoadBusinessDefinition(l.definitionPath)
		if err != nil {
			return nil, err
		}
		ds.Definition = def
	}
	return ds, nil
}

// readTable 全表扫描；未知列按字符串处理
func (l *FactLoader) readTable(ctx context.Context, name, table string, known map[string]dataaccess.ColumnKind) (*dataaccess.Table, error) {
	rows, err := l.db.WithContext(ctx).Table(table).Rows()
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read %s columns failed: %w", table, err)
	}
	schema := make(map[string]dataaccess.ColumnKind, len(columns))
	for _, col := range columns {
		if kind, ok := known[col]; ok {
			schema[col] = kind
		} else {
			schema[col] = dataaccess.KindString
		}
	}

	t := dataaccess.NewTable(name, schema, l.loc)
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s row failed: %w", table, err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		t.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s failed: %w", table, err)
	}
	return t, nil
}
