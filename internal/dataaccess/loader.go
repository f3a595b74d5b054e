package dataaccess

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// StaticLoader 直接返回内存数据集（测试与嵌入调用）
type StaticLoader struct {
	Dataset *Dataset
}

// Load 实现 Loader
func (l StaticLoader) Load(_ context.Context) (*Dataset, error) {
	if l.Dataset == nil {
		return nil, errors.New("static loader: nil dataset")
	}
	return l.Dataset, nil
}

// CSVLoader 从 CSV 文件加载订单表、线索下发表与业务定义
type CSVLoader struct {
	OrdersPath     string
	AssignPath     string
	DefinitionPath string
	Location       *time.Location
}

// Load 实现 Loader
func (l CSVLoader) Load(ctx context.Context) (*Dataset, error) {
	loc := l.Location
	if loc == nil {
		loc = time.Local
	}
	ds := &Dataset{}

	orders, err := l.readTable(ctx, "orders", l.OrdersPath, OrderSchema(), loc)
	if err != nil {
		return nil, err
	}
	ds.Orders = orders

	if l.AssignPath != "" {
		assign, err := l.readTable(ctx, "assign", l.AssignPath, AssignSchema(), loc)
		if err != nil {
			return nil, err
		}
		ds.Assign = assign
	}

	if l.DefinitionPath != "" {
		def, err := LoadBusinessDefinition(l.DefinitionPath)
		if err != nil {
			return nil, err
		}
		ds.Definition = def
	}
	return ds, nil
}

func (l CSVLoader) readTable(ctx context.Context, name, path string, known map[string]ColumnKind, loc *time.Location) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s csv failed: %w", name, err)
	}
	defer f.Close()
	return ReadCSV(ctx, name, f, known, loc)
}

// ReadCSV 解析 CSV；表头中未知的列按字符串处理，列数不符的行跳过
func ReadCSV(ctx context.Context, name string, r io.Reader, known map[string]ColumnKind, loc *time.Location) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s csv header failed: %w", name, err)
	}
	schema := make(map[string]ColumnKind, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		headers[i] = h
		if kind, ok := known[h]; ok {
			schema[h] = kind
		} else {
			schema[h] = KindString
		}
	}

	t := NewTable(name, schema, loc)
	for line := 1; ; line++ {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(rec) != len(headers) {
			continue
		}
		row := make(map[string]interface{}, len(headers))
		for i, h := range headers {
			row[h] = rec[i]
		}
		t.Append(row)
	}
	return t, nil
}
