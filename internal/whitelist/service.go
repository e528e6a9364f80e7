// Package whitelist validates admin input and drives the API client,
// recording every mutation attempt in the journal.
package whitelist

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/julianstephens/authip/internal/brfmt"
	"github.com/julianstephens/authip/internal/constants"
	"github.com/julianstephens/authip/internal/journal"
	"github.com/julianstephens/authip/internal/logger"
	"github.com/julianstephens/authip/internal/models"
)

var (
	// ErrDuplicateIP is returned when creating a record for an IP already listed
	ErrDuplicateIP = errors.New("IP address already registered")
	// ErrNotFound is returned when no record has the requested ID
	ErrNotFound = errors.New("record not found")
)

// Backend is the remote record store. *api.Client implements it.
type Backend interface {
	List(ctx context.Context) ([]models.Record, error)
	Create(ctx context.Context, p models.Payload) (*models.Record, error)
	Update(ctx context.Context, id models.RecordID, p models.Payload) (*models.Record, error)
	Delete(ctx context.Context, id models.RecordID) error
}

type Service struct {
	backend Backend
	journal journal.Store
}

// NewService wraps backend. j may be nil to disable the journal.
func NewService(backend Backend, j journal.Store) *Service {
	return &Service{backend: backend, journal: j}
}

func (s *Service) List(ctx context.Context) ([]models.Record, error) {
	return s.backend.List(ctx)
}

// Find returns the record with the given ID from a fresh list.
func (s *Service) Find(ctx context.Context, id models.RecordID) (models.Record, error) {
	records, err := s.backend.List(ctx)
	if err != nil {
		return models.Record{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Create validates d, refuses IPs that are already listed and creates the
// record. The expiration is sent at midnight.
func (s *Service) Create(ctx context.Context, d models.Draft) (*models.Record, error) {
	p := d.Payload()
	rec, err := s.create(ctx, d, p)
	recordID := ""
	if rec != nil {
		recordID = string(rec.ID)
	}
	s.record(ctx, journal.NewEntry(constants.ActionCreate, recordID, p.IPAddress, describe(p), err))
	return rec, err
}

func (s *Service) create(ctx context.Context, d models.Draft, p models.Payload) (*models.Record, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	records, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing records: %w", err)
	}
	if existing, ok := FindIP(records, p.IPAddress); ok {
		return nil, fmt.Errorf("%w: %s (record %s)", ErrDuplicateIP, p.IPAddress, existing.ID)
	}
	return s.backend.Create(ctx, p)
}

// Update validates e and replaces record id.
func (s *Service) Update(ctx context.Context, id models.RecordID, e models.Edit) (*models.Record, error) {
	p := e.Payload()
	var rec *models.Record
	err := e.Validate()
	if err == nil {
		rec, err = s.backend.Update(ctx, id, p)
	}
	s.record(ctx, journal.NewEntry(constants.ActionUpdate, string(id), p.IPAddress, describe(p), err))
	return rec, err
}

// Delete removes record id. ip is only used for the journal and may be "".
func (s *Service) Delete(ctx context.Context, id models.RecordID, ip string) error {
	err := s.backend.Delete(ctx, id)
	s.record(ctx, journal.NewEntry(constants.ActionDelete, string(id), ip, "", err))
	return err
}

// EditFor pre-fills the edit form for r.
func (s *Service) EditFor(r models.Record) models.Edit {
	return models.EditFor(r)
}

// record appends to the journal; failures are logged and never returned.
func (s *Service) record(ctx context.Context, e journal.Entry) {
	if e.Outcome == constants.OutcomeError {
		logger.Warn("Whitelist mutation failed", "action", e.Action, "record", e.RecordID, "ip", e.IPAddress, "error", e.Error)
	} else {
		logger.Info("Whitelist mutation", "action", e.Action, "record", e.RecordID, "ip", e.IPAddress)
	}
	if s.journal == nil {
		return
	}
	if err := s.journal.Append(context.WithoutCancel(ctx), e); err != nil {
		logger.Error("Failed to write journal entry", "action", e.Action, "error", err)
	}
}

// FindIP returns the record listing ip. Addresses are compared in
// canonical form when both sides parse, otherwise as trimmed text.
func FindIP(records []models.Record, ip string) (models.Record, bool) {
	ip = strings.TrimSpace(ip)
	want, wantErr := canonical(ip)
	for _, r := range records {
		other := strings.TrimSpace(r.IPAddress)
		if other == ip {
			return r, true
		}
		if wantErr == nil {
			if got, err := canonical(other); err == nil && got == want {
				return r, true
			}
		}
	}
	return models.Record{}, false
}

func canonical(ip string) (string, error) {
	if addr, err := netip.ParseAddr(ip); err == nil {
		return addr.Unmap().String(), nil
	}
	prefix, err := netip.ParsePrefix(ip)
	if err != nil {
		return "", err
	}
	return prefix.Masked().String(), nil
}

func describe(p models.Payload) string {
	return fmt.Sprintf("expires=%s quota=%s", p.ExpiresAt, brfmt.FormatInt(p.MonthlyQuota))
}
