package models

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/julianstephens/authip/internal/brfmt"
	"github.com/julianstephens/authip/internal/constants"
)

var (
	// ErrMissingFields is returned when a required form field is empty
	ErrMissingFields = errors.New("fill in all required fields")
	// ErrInvalidIP is returned for values that are neither an address nor a CIDR prefix
	ErrInvalidIP = errors.New("invalid IP address")
	// ErrInvalidDate is returned for expiration dates that are not dd/mm/yyyy
	ErrInvalidDate = errors.New("invalid date, use dd/mm/yyyy")
	// ErrInvalidTime is returned for expiration times that are not HH:MM[:SS]
	ErrInvalidTime = errors.New("invalid time, use HH:MM:SS")
)

// Payload is the body the API expects on create and update.
type Payload struct {
	IPAddress    string `json:"ip_address"`
	Description  string `json:"description"`
	ExpiresAt    string `json:"data_vencimento"`
	MonthlyQuota int64  `json:"limite_consultas_mensal"`
}

// Draft holds the values of the create form, dates in dd/mm/yyyy and the
// quota as typed (grouping allowed).
type Draft struct {
	IPAddress   string
	Description string
	ExpiresOn   string
	Quota       string
}

func (d Draft) Validate() error {
	ip := strings.TrimSpace(d.IPAddress)
	if ip == "" || strings.TrimSpace(d.ExpiresOn) == "" || brfmt.MaskNumber(d.Quota) == "" {
		return ErrMissingFields
	}
	if err := ValidateIP(ip); err != nil {
		return err
	}
	if !brfmt.ValidDisplayDate(d.ExpiresOn) {
		return fmt.Errorf("%w: %s", ErrInvalidDate, d.ExpiresOn)
	}
	return nil
}

// Payload converts the draft; new records expire at midnight.
func (d Draft) Payload() Payload {
	return Payload{
		IPAddress:    strings.TrimSpace(d.IPAddress),
		Description:  d.Description,
		ExpiresAt:    brfmt.JoinDateTime(d.ExpiresOn, constants.MidnightTime),
		MonthlyQuota: brfmt.ParseInt(d.Quota),
	}
}

// Edit holds the values of the inline edit form.
type Edit struct {
	IPAddress   string
	Description string
	ExpiresOn   string
	ExpiresTime string
	Quota       string
}

// EditFor pre-fills an edit form from a stored record.
func EditFor(r Record) Edit {
	date, clock := brfmt.SplitDateTime(r.ExpiresAt)
	return Edit{
		IPAddress:   r.IPAddress,
		Description: r.Description,
		ExpiresOn:   date,
		ExpiresTime: clock,
		Quota:       brfmt.FormatInt(int64(r.MonthlyQuota)),
	}
}

func (e Edit) Validate() error {
	ip := strings.TrimSpace(e.IPAddress)
	if ip == "" || strings.TrimSpace(e.ExpiresOn) == "" {
		return ErrMissingFields
	}
	if err := ValidateIP(ip); err != nil {
		return err
	}
	if !brfmt.ValidDisplayDate(e.ExpiresOn) {
		return fmt.Errorf("%w: %s", ErrInvalidDate, e.ExpiresOn)
	}
	if strings.TrimSpace(e.ExpiresTime) != "" && !brfmt.ValidClock(e.ExpiresTime) {
		return fmt.Errorf("%w: %s", ErrInvalidTime, e.ExpiresTime)
	}
	return nil
}

func (e Edit) Payload() Payload {
	return Payload{
		IPAddress:    strings.TrimSpace(e.IPAddress),
		Description:  e.Description,
		ExpiresAt:    brfmt.JoinDateTime(e.ExpiresOn, e.ExpiresTime),
		MonthlyQuota: brfmt.ParseInt(e.Quota),
	}
}

// ValidateIP accepts a single address or a CIDR prefix.
func ValidateIP(ip string) error {
	if _, err := netip.ParseAddr(ip); err == nil {
		return nil
	}
	if _, err := netip.ParsePrefix(ip); err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidIP, ip)
}
