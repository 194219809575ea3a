package models

// Setting is a generic key/value configuration row. The exchange rate table,
// payment method configs and the platform default profit share live here.
type Setting struct {
	BaseModel
	Key   string `gorm:"uniqueIndex;size:100" json:"key"`
	Value []byte `gorm:"type:jsonb" json:"value"`
}
