package internal

import "time"

type OrderKind string

const (
	KindSample OrderKind = "sample"
	KindBulk   OrderKind = "bulk"
)

func (k OrderKind) Valid() bool {
	return k == KindSample || k == KindBulk
}

// Order is one row of the canonical order table. The sample and bulk order
// tables mirror the same shape. Empty spreadsheet cells are nil, not zero.
type Order struct {
	ID                 int64
	OrderID            string
	Role               *string
	Handler            *string
	Process            *string
	Amount             *float64
	PictureAmount      *int64
	PicturePrice       *float64
	PictureCost        *float64
	ColorCost          *float64
	WorkCost           *float64
	ClothPrice         *float64
	Quantity           *int64
	ClothCost          *float64
	ClothPackCost      *float64
	ClothCode          *string
	ColorAmount        *int64
	CustomerName       *string
	Phone              *string
	Shop               *string
	Express            *string
	OrderStatus        *string
	OrderCreatedDate   *time.Time
	OrderProcessedDate *time.Time
	CompletionDate     *time.Time
	OrderType          *string
	Notes              *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Customer is one row of either customer registry. Converted, ConversionDate
// and CounterpartID read relative to the registry the row lives in: for a
// sample customer the counterpart is the bulk customer it converted to, for a
// bulk customer the sample customer it came from. ConversionDate is only set
// on sample rows.
type Customer struct {
	ID             int64
	CustomerName   string
	Shop           *string
	Region         *string
	Handler        *string
	Phone          *string
	Wechat         *string
	Notes          *string
	OrdersCount    int64
	TotalAmount    float64
	FirstOrderDate *time.Time
	LastOrderDate  *time.Time
	Converted      bool
	ConversionDate *time.Time
	CounterpartID  *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderRelation links a customer to one of its orders. order_date and amount
// are denormalized at creation time and never refreshed afterwards.
type OrderRelation struct {
	ID         int64
	CustomerID int64
	OrderID    string
	OrderDate  *time.Time
	Amount     *float64
	CreatedAt  time.Time
}

type ConversionRecord struct {
	ID               int64
	SampleCustomerID int64
	BulkCustomerID   int64
	ConversionDate   time.Time
	SampleOrderID    *string
	BulkOrderID      *string
	ConversionDays   *int64
	CreatedAt        time.Time
}

// ConversionDetail is a conversion joined with both registry rows, for
// reporting surfaces.
type ConversionDetail struct {
	ConversionRecord
	SampleCustomerName string
	SampleShop         *string
	BulkCustomerName   string
	BulkShop           *string
}

type ImportStats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Errors   int `json:"errors"`
}

type ImportFileStatus string

const (
	ImportFileImported ImportFileStatus = "imported"
	ImportFileFailed   ImportFileStatus = "failed"
)

type ImportFile struct {
	ID         int64
	Filename   string
	Hash       string
	Size       int64
	Status     ImportFileStatus
	CountsJSON string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type RunRecord struct {
	ID        int64
	RunID     string
	Trigger   string
	TimingsMs map[string]int64
	Counts    map[string]int
	CreatedAt time.Time
}

type CustomerSummary struct {
	SampleCustomers  int64
	BulkCustomers    int64
	ConvertedSamples int64
	Conversions      int64
	ConversionRate   float64
}
