// Package datatest 构造内存数据集，供各包测试使用
package datatest

import (
	"time"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
)

// Today 固定的“今天”
const Today = "2025-12-15"

// 标准数据集中的产品名
const (
	ProductLS9 = "LS9 增程 Max"
	ProductCM2 = "新一代LS6 纯电 Pro"
)

// Location 测试时区
var Location = time.FixedZone("CST", 8*3600)

// OrderRow 订单明细行，时间为空字符串表示空值
type OrderRow struct {
	OrderNumber string
	Create      string
	Lock        string
	Delivery    string
	Invoice     string
	Product     string
	Region      string
	City        string
	Channel     string
	Gender      string
	Age         float64
	Amount      float64
}

// AssignRow 线索下发行
type AssignRow struct {
	Date      string
	Region    string
	Leads     float64
	Lock7d    float64
	TestDrive float64
}

// Orders 构造订单表
func Orders(rows ...OrderRow) *dataaccess.Table {
	t := dataaccess.NewTable("orders", dataaccess.OrderSchema(), Location)
	for _, r := range rows {
		row := map[string]interface{}{
			dataaccess.ColOrderNumber:       r.OrderNumber,
			dataaccess.ColOrderCreateDate:   r.Create,
			dataaccess.ColLockTime:          r.Lock,
			dataaccess.ColDeliveryDate:      r.Delivery,
			dataaccess.ColInvoiceUploadTime: r.Invoice,
			dataaccess.ColProductName:       r.Product,
			dataaccess.ColParentRegion:      r.Region,
			dataaccess.ColStoreCity:         r.City,
			dataaccess.ColChannel:           r.Channel,
			dataaccess.ColGender:            r.Gender,
		}
		if r.Age > 0 {
			row[dataaccess.ColAge] = r.Age
		}
		if r.Amount > 0 {
			row[dataaccess.ColInvoiceAmount] = r.Amount
		}
		t.Append(row)
	}
	return t
}

// Assign 构造线索下发表
func Assign(rows ...AssignRow) *dataaccess.Table {
	t := dataaccess.NewTable("assign", dataaccess.AssignSchema(), Location)
	for _, r := range rows {
		t.Append(map[string]interface{}{
			dataaccess.ColAssignDate:        r.Date,
			dataaccess.ColParentRegion:      r.Region,
			dataaccess.ColAssignLeads:       r.Leads,
			dataaccess.ColAssignLock7d:      r.Lock7d,
			dataaccess.ColAssignTestDrive7d: r.TestDrive,
		})
	}
	return t
}

// Definition 测试用业务定义
func Definition() *dataaccess.BusinessDefinition {
	return &dataaccess.BusinessDefinition{
		ModelSeriesMapping: map[string][]string{
			"LS6": {"CM0", "CM1", "CM2"},
			"L6":  {"DM0", "DM1"},
			"LS9": {"LS9"},
		},
		AgeLimit: []float64{18, 70},
		TimePeriods: map[string]dataaccess.TimePeriod{
			"LS9": {Start: "2025-09-01", End: "2025-11-15"},
			"CM2": {Start: "2025-10-01", End: "2025-12-01"},
		},
	}
}

// Day 今天之前 n 天的日期字符串
func Day(n int) string {
	today, _ := time.ParseInLocation("2006-01-02", Today, Location)
	return today.AddDate(0, 0, -n).Format("2006-01-02")
}

// StandardOrders 标准订单集：最近 30 天每天 LS9 锁单 10 单（昨天 40 单），CM2 每天 5 单。
// LS9 小订日期比锁单早 day%5 天，交付在锁单后 20 天（不晚于今天时）
func StandardOrders() []OrderRow {
	var rows []OrderRow
	regions := []string{"华东", "华南"}
	cities := []string{"上海", "广州"}
	channels := []string{"门店", "线上"}
	genders := []string{"男", "女"}
	ages := []float64{28, 36}

	for back := 30; back >= 1; back-- {
		lockDay := Day(back)
		n := 10
		if back == 1 {
			n = 40
		}
		for k := 0; k < n; k++ {
			row := OrderRow{
				Create:  Day(back + back%5),
				Lock:    lockDay,
				Product: ProductLS9,
				Region:  regions[k%2],
				City:    cities[k%2],
				Channel: channels[k%2],
				Gender:  genders[k%2],
				Age:     ages[k%2],
			}
			if back-20 >= 1 {
				row.Delivery = Day(back - 20)
				row.Invoice = Day(back - 20)
				row.Amount = 200000
			}
			rows = append(rows, row)
		}
		for k := 0; k < 5; k++ {
			rows = append(rows, OrderRow{
				Create:  lockDay,
				Lock:    lockDay,
				Product: ProductCM2,
				Region:  "华北",
				City:    "北京",
				Channel: "门店",
				Gender:  "男",
				Age:     45,
			})
		}
	}
	// 只下小订未锁单
	for k := 0; k < 3; k++ {
		rows = append(rows, OrderRow{Create: Day(2), Product: ProductLS9, Region: "华东", City: "上海", Gender: "女", Age: 30})
	}
	return rows
}

// StandardAssign 标准线索下发：最近 30 天每天 100 条，7 日锁单 10（昨天 30），7 日试驾 20
func StandardAssign() []AssignRow {
	var rows []AssignRow
	for back := 30; back >= 1; back-- {
		lock := 10.0
		if back == 1 {
			lock = 30
		}
		rows = append(rows, AssignRow{Date: Day(back), Region: "华东", Leads: 100, Lock7d: lock, TestDrive: 20})
	}
	return rows
}

// Standard 标准数据集
func Standard() *dataaccess.Dataset {
	return &dataaccess.Dataset{
		Orders:     Orders(StandardOrders()...),
		Assign:     Assign(StandardAssign()...),
		Definition: Definition(),
	}
}

// NewContext 以固定“今天”构造数据上下文
func NewContext(ds *dataaccess.Dataset) *dataaccess.DataContext {
	today, _ := time.ParseInLocation("2006-01-02", Today, Location)
	return dataaccess.NewDataContext(dataaccess.StaticLoader{Dataset: ds}, dataaccess.Options{
		Location: Location,
		Today:    today,
	}, nil)
}

// StandardContext 标准数据集上下文
func StandardContext() *dataaccess.DataContext {
	return NewContext(Standard())
}
