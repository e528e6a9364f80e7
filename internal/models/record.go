package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/julianstephens/authip/internal/brfmt"
)

// Column keys, as named by the API.
const (
	KeyID           = "id"
	KeyIPAddress    = "ip_address"
	KeyDescription  = "description"
	KeyActivatedAt  = "data_ativacao"
	KeyExpiresAt    = "data_vencimento"
	KeyMonthlyQuota = "limite_consultas_mensal"
	KeyLoaded       = "carregado"
)

// Record is one whitelist entry as returned by the API.
type Record struct {
	ID           RecordID `json:"id"`
	IPAddress    string   `json:"ip_address"`
	Description  string   `json:"description"`
	ActivatedAt  string   `json:"data_ativacao,omitempty"`   // YYYY-MM-DD HH:MM:SS
	ExpiresAt    string   `json:"data_vencimento,omitempty"` // YYYY-MM-DD HH:MM:SS
	MonthlyQuota Count    `json:"limite_consultas_mensal"`
	Loaded       Count    `json:"carregado"`
}

// Field returns the textual value of the column named key.
func (r Record) Field(key string) (string, bool) {
	switch key {
	case KeyID:
		return string(r.ID), true
	case KeyIPAddress:
		return r.IPAddress, true
	case KeyDescription:
		return r.Description, true
	case KeyActivatedAt:
		return r.ActivatedAt, true
	case KeyExpiresAt:
		return r.ExpiresAt, true
	case KeyMonthlyQuota:
		return strconv.FormatInt(int64(r.MonthlyQuota), 10), true
	case KeyLoaded:
		return strconv.FormatInt(int64(r.Loaded), 10), true
	default:
		return "", false
	}
}

// UsagePercent returns the share of the monthly quota already loaded,
// with two decimals. A zero quota reports "0.00".
func (r Record) UsagePercent() string {
	if r.MonthlyQuota == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(r.Loaded)/float64(r.MonthlyQuota)*100)
}

// Expired reports whether the record's expiration is before now.
// Records with an unreadable expiration are not considered expired.
func (r Record) Expired(now time.Time) bool {
	t, err := brfmt.ParseStorage(r.ExpiresAt)
	if err != nil {
		return false
	}
	return t.Before(now)
}

// Summary aggregates a set of records.
type Summary struct {
	Rows        int
	TotalQuota  int64
	TotalLoaded int64
}

// Summarize totals the quota and consumption of records.
func Summarize(records []Record) Summary {
	s := Summary{Rows: len(records)}
	for _, r := range records {
		s.TotalQuota += int64(r.MonthlyQuota)
		s.TotalLoaded += int64(r.Loaded)
	}
	return s
}
