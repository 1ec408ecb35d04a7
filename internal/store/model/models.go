// Package model defines the persisted table shapes. Domain records live in
// internal/ledger; the gormstore package maps between the two.
package model

import (
	"gorm.io/datatypes"
)

type UserModel struct {
	ID          int64  `gorm:"column:user_id;primaryKey"`
	Name        string `gorm:"column:name"`
	Username    string `gorm:"column:username;uniqueIndex"`
	Email       string `gorm:"column:email;uniqueIndex"`
	PhoneNumber string `gorm:"column:phone_number;uniqueIndex"`
}

func (UserModel) TableName() string { return "users" }

type InstrumentModel struct {
	ID          int64          `gorm:"column:instrument_id;primaryKey"`
	Ticker      string         `gorm:"column:ticker;uniqueIndex"`
	Name        string         `gorm:"column:name"`
	Class       string         `gorm:"column:asset_class"`
	Category    string         `gorm:"column:category"`
	Manager     string         `gorm:"column:manager"`
	Composition datatypes.JSON `gorm:"column:composition;type:TEXT"`
}

func (InstrumentModel) TableName() string { return "instruments" }

type HoldingModel struct {
	ID             int64   `gorm:"column:id;primaryKey"`
	UserID         int64   `gorm:"column:user_id;uniqueIndex:idx_holding_user_instrument,priority:1"`
	InstrumentID   int64   `gorm:"column:instrument_id;uniqueIndex:idx_holding_user_instrument,priority:2"`
	TotalUnits     float64 `gorm:"column:total_units"`
	AvgCostPerUnit float64 `gorm:"column:avg_cost_per_unit"`
	InvestedAmount float64 `gorm:"column:invested_amount"`
}

func (HoldingModel) TableName() string { return "holdings" }

type OrderModel struct {
	ID           int64    `gorm:"column:order_id;primaryKey"`
	UserID       int64    `gorm:"column:user_id;index"`
	InstrumentID int64    `gorm:"column:instrument_id;index"`
	Ticker       string   `gorm:"column:ticker"`
	Side         string   `gorm:"column:side"`
	Kind         string   `gorm:"column:kind"`
	Quantity     float64  `gorm:"column:quantity"`
	UnitPrice    float64  `gorm:"column:unit_price"`
	LimitPrice   *float64 `gorm:"column:limit_price"`
	Amount       float64  `gorm:"column:amount"`
	Status       string   `gorm:"column:status;index"`
	CreatedAtMs  int64    `gorm:"column:created_at"`
}

func (OrderModel) TableName() string { return "order_book" }

type TransactionModel struct {
	ID           int64   `gorm:"column:id;primaryKey"`
	UserID       int64   `gorm:"column:user_id;index"`
	InstrumentID int64   `gorm:"column:instrument_id;index"`
	Ticker       string  `gorm:"column:ticker"`
	Side         string  `gorm:"column:side"`
	DateMs       int64   `gorm:"column:date"`
	Units        float64 `gorm:"column:units"`
	PricePerUnit float64 `gorm:"column:price_per_unit"`
	Cost         float64 `gorm:"column:cost"`
}

func (TransactionModel) TableName() string { return "transactions" }

type BankAccountModel struct {
	ID               int64   `gorm:"column:bank_account_id;primaryKey"`
	UserID           int64   `gorm:"column:user_id;index"`
	BankName         string  `gorm:"column:bank_name"`
	AccountNumber    string  `gorm:"column:account_number"`
	AccountType      string  `gorm:"column:account_type"`
	AvailableBalance float64 `gorm:"column:available_balance"`
	Active           int     `gorm:"column:is_active"`
}

func (BankAccountModel) TableName() string { return "bank_accounts" }
