package integration

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SourceChange is the payload the ledger_notify_change trigger publishes.
type SourceChange struct {
	Table string `json:"table"`
	Op    string `json:"op"`
}

var errEmptyPayload = errors.New("integration: empty notification payload")

var tableReasons = map[string]string{
	"contacts":                 "customer",
	"sales":                    "sale",
	"sales_items":              "sale item",
	"payments":                 "payment",
	"sale_returns":             "sale return",
	"studio_orders":            "studio order",
	"studio_productions":       "studio production",
	"studio_production_stages": "studio production stage",
	"rentals":                  "rental",
	"rental_payments":          "rental payment",
}

func decodeChange(payload string) (SourceChange, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return SourceChange{}, errEmptyPayload
	}
	var change SourceChange
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return SourceChange{}, fmt.Errorf("integration: decode notification: %w", err)
	}
	return change, nil
}

func reasonFor(change SourceChange) (string, bool) {
	table := strings.ToLower(strings.TrimSpace(change.Table))
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		table = table[i+1:]
	}
	noun, ok := tableReasons[table]
	if !ok {
		return "", false
	}
	op := strings.ToLower(strings.TrimSpace(change.Op))
	if op == "" {
		op = "change"
	}
	return noun + " " + op, true
}
