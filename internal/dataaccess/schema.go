package dataaccess

// 订单事实表列
const (
	ColOrderCreateDate   = "order_create_date"
	ColLockTime          = "lock_time"
	ColDeliveryDate      = "delivery_date"
	ColInvoiceUploadTime = "invoice_upload_time"
	ColInvoiceAmount     = "invoice_amount"
	ColProductName       = "product_name"
	ColSeriesGroup       = "series_group"
	ColSeries            = "series"
	ColProductType       = "product_type"
	ColParentRegion      = "parent_region_name"
	ColStoreCity         = "store_city"
	ColStoreName         = "store_name"
	ColChannel           = "first_middle_channel_name"
	ColGender            = "gender"
	ColAge               = "age"
	ColOrderNumber       = "order_number"
)

// 线索下发表列
const (
	ColAssignDate        = "assign_date"
	ColAssignLeads       = "下发线索数"
	ColAssignLock7d      = "下发线索 7 日锁单数"
	ColAssignTestDrive7d = "下发线索 7 日试驾数"
)

// OrderSchema 订单表已知列类型，未列出的列按字符串处理
func OrderSchema() map[string]ColumnKind {
	return map[string]ColumnKind{
		ColOrderNumber:       KindString,
		ColOrderCreateDate:   KindTime,
		ColLockTime:          KindTime,
		ColDeliveryDate:      KindTime,
		ColInvoiceUploadTime: KindTime,
		ColInvoiceAmount:     KindNumber,
		ColProductName:       KindString,
		ColParentRegion:      KindString,
		ColStoreCity:         KindString,
		ColStoreName:         KindString,
		ColChannel:           KindString,
		ColGender:            KindString,
		ColAge:               KindNumber,
	}
}

// AssignSchema 线索下发表已知列类型
func AssignSchema() map[string]ColumnKind {
	return map[string]ColumnKind{
		ColAssignDate:        KindTime,
		ColAssignLeads:       KindNumber,
		ColAssignLock7d:      KindNumber,
		ColAssignTestDrive7d: KindNumber,
		ColParentRegion:      KindString,
		ColStoreCity:         KindString,
		ColChannel:           KindString,
	}
}

// timeDimensions rollup 中按时间粒度分桶的维度名
var timeDimensions = map[string]Grain{
	"date":    GrainDay,
	"day":     GrainDay,
	"week":    GrainWeek,
	"month":   GrainMonth,
	"quarter": GrainQuarter,
	"year":    GrainYear,
}

// TimeDimensionGrain 维度是否为时间维度，返回对应粒度；
// 指标自身的时间列也视为按天分桶
func TimeDimensionGrain(dim string, m Metric) (Grain, bool) {
	if g, ok := timeDimensions[dim]; ok {
		return g, true
	}
	if dim == m.TimeColumn {
		return GrainDay, true
	}
	return "", false
}
