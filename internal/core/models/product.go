package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Product is the local catalog product mirrored into the ERP by SKU (iwasku).
type Product struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Iwasku         string          `gorm:"size:64;index" json:"iwasku"`
	Name           string          `json:"name"`
	CategoryName   string          `json:"category_name"`
	VariationSize  string          `json:"variation_size"`
	VariationColor string          `json:"variation_color"`
	Width          decimal.Decimal `gorm:"column:package_width;type:numeric(10,2)" json:"package_width"`
	Length         decimal.Decimal `gorm:"column:package_length;type:numeric(10,2)" json:"package_length"`
	Height         decimal.Decimal `gorm:"column:package_height;type:numeric(10,2)" json:"package_height"`
	Weight         decimal.Decimal `gorm:"column:package_weight;type:numeric(10,3)" json:"package_weight"`
	Published      bool            `json:"published"`
	WisersellID    string          `gorm:"size:64" json:"wisersell_id"`
	WisersellJSON  datatypes.JSON  `gorm:"column:wisersell_json" json:"wisersell_json"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Product) TableName() string {
	return "iwapim.products"
}

type Category struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Name                string    `gorm:"column:category;size:190;uniqueIndex" json:"category"`
	WisersellCategoryID string    `gorm:"size:64" json:"wisersell_category_id"`
	Published           bool      `json:"published"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (Category) TableName() string {
	return "iwapim.categories"
}
