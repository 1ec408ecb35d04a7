// Package seed loads demo fixtures (users, instruments, holdings, bank
// accounts) from a YAML file into the ledger database at startup.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"tradedesk/internal/ledger"
	"tradedesk/internal/logger"

	"gopkg.in/yaml.v3"
)

// Applier is the slice of the store the loader needs. The gormstore
// implementation satisfies it.
type Applier interface {
	EnsureUser(ctx context.Context, u ledger.User) error
	EnsureInstrument(ctx context.Context, inst ledger.Instrument) error
	EnsureHolding(ctx context.Context, userID int64, ticker string, units, avgCost, invested float64) error
	EnsureBankAccount(ctx context.Context, acct ledger.BankAccount) error
}

type Document struct {
	Users        []User        `yaml:"users"`
	Instruments  []Instrument  `yaml:"instruments"`
	Holdings     []Holding     `yaml:"holdings"`
	BankAccounts []BankAccount `yaml:"bank_accounts"`
}

type User struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	Username    string `yaml:"username"`
	Email       string `yaml:"email"`
	PhoneNumber string `yaml:"phone_number"`
}

type Instrument struct {
	ID          int64          `yaml:"id"`
	Ticker      string         `yaml:"ticker"`
	Name        string         `yaml:"name"`
	Class       string         `yaml:"class"`
	Category    string         `yaml:"category"`
	Manager     string         `yaml:"manager"`
	Composition map[string]any `yaml:"composition"`
}

type Holding struct {
	UserID         int64   `yaml:"user_id"`
	Ticker         string  `yaml:"ticker"`
	TotalUnits     float64 `yaml:"total_units"`
	AvgCostPerUnit float64 `yaml:"avg_cost_per_unit"`
	InvestedAmount float64 `yaml:"invested_amount"`
}

type BankAccount struct {
	ID               int64   `yaml:"id"`
	UserID           int64   `yaml:"user_id"`
	BankName         string  `yaml:"bank_name"`
	AccountNumber    string  `yaml:"account_number"`
	AccountType      string  `yaml:"account_type"`
	AvailableBalance float64 `yaml:"available_balance"`
	Active           bool    `yaml:"active"`
}

// LoadFile parses a seed document from disk.
func LoadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read seed file: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return doc, nil
}

// Apply upserts the document into the store. Instruments go first so holding
// rows can resolve their tickers; a missing CASH instrument is an error
// because every cash operation depends on it.
func Apply(ctx context.Context, store Applier, doc Document) error {
	hasCash := false
	for _, inst := range doc.Instruments {
		rec := ledger.Instrument{
			ID:       inst.ID,
			Ticker:   inst.Ticker,
			Name:     inst.Name,
			Class:    inst.Class,
			Category: inst.Category,
			Manager:  inst.Manager,
		}
		if inst.Composition != nil {
			raw, err := json.Marshal(inst.Composition)
			if err != nil {
				return fmt.Errorf("instrument %s composition: %w", inst.Ticker, err)
			}
			rec.Composition = raw
		}
		if err := store.EnsureInstrument(ctx, rec); err != nil {
			return fmt.Errorf("seed instrument %s: %w", inst.Ticker, err)
		}
		if strings.EqualFold(strings.TrimSpace(inst.Ticker), ledger.CashTicker) {
			hasCash = true
		}
	}
	if len(doc.Instruments) > 0 && !hasCash {
		return fmt.Errorf("seed document has instruments but no %s instrument", ledger.CashTicker)
	}

	for _, u := range doc.Users {
		rec := ledger.User{
			ID:          u.ID,
			Name:        u.Name,
			Username:    u.Username,
			Email:       u.Email,
			PhoneNumber: u.PhoneNumber,
		}
		if err := store.EnsureUser(ctx, rec); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
	}

	for _, h := range doc.Holdings {
		if err := store.EnsureHolding(ctx, h.UserID, h.Ticker, h.TotalUnits, h.AvgCostPerUnit, h.InvestedAmount); err != nil {
			return fmt.Errorf("seed holding %s for user %d: %w", h.Ticker, h.UserID, err)
		}
	}

	for _, acct := range doc.BankAccounts {
		rec := ledger.BankAccount{
			ID:               acct.ID,
			UserID:           acct.UserID,
			BankName:         acct.BankName,
			AccountNumber:    acct.AccountNumber,
			AccountType:      acct.AccountType,
			AvailableBalance: acct.AvailableBalance,
			Active:           acct.Active,
		}
		if err := store.EnsureBankAccount(ctx, rec); err != nil {
			return fmt.Errorf("seed bank account %s: %w", acct.BankName, err)
		}
	}

	logger.Infof("seed applied: %d users, %d instruments, %d holdings, %d bank accounts",
		len(doc.Users), len(doc.Instruments), len(doc.Holdings), len(doc.BankAccounts))
	return nil
}

// ApplyFile is LoadFile + Apply.
func ApplyFile(ctx context.Context, store Applier, path string) error {
	doc, err := LoadFile(path)
	if err != nil {
		return err
	}
	return Apply(ctx, store, doc)
}
