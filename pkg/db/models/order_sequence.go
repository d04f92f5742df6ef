package models

// OrderSequence holds the per-day counter behind human readable order codes.
type OrderSequence struct {
	Day   string `gorm:"column:day;primaryKey"`
	Value int64  `gorm:"column:value;not null"`
}

func (OrderSequence) TableName() string { return "order_sequences" }
