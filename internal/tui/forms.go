package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/authip/internal/brfmt"
	"github.com/julianstephens/authip/internal/models"
)

func validateIP(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("IP is required")
	}
	return models.ValidateIP(strings.TrimSpace(s))
}

func validateDate(s string) error {
	if !brfmt.ValidDisplayDate(brfmt.ApplyDateMask(s)) {
		return models.ErrInvalidDate
	}
	return nil
}

func validateQuota(s string) error {
	if brfmt.MaskNumber(s) == "" {
		return errors.New("quota is required")
	}
	return nil
}

func validateClock(s string) error {
	if strings.TrimSpace(s) != "" && !brfmt.ValidClock(s) {
		return models.ErrInvalidTime
	}
	return nil
}

// NewDraftForm creates the form for adding an authorized IP
func NewDraftForm(fm *DraftFormModel) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("IP").
				Description("Address or CIDR prefix").
				Value(&fm.IPAddress).
				Validate(validateIP),
			huh.NewInput().
				Title("Description").
				Value(&fm.Description),
			huh.NewInput().
				Title("Expires (dd/mm/yyyy)").
				Value(&fm.ExpiresOn).
				Validate(validateDate),
			huh.NewInput().
				Title("Monthly quota").
				Value(&fm.Quota).
				Validate(validateQuota),
		),
	).WithTheme(huh.ThemeDracula())
}

// NewEditForm creates the form for editing a record
func NewEditForm(fm *EditFormModel) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("IP").
				Value(&fm.IPAddress).
				Validate(validateIP),
			huh.NewInput().
				Title("Description").
				Value(&fm.Description),
			huh.NewInput().
				Title("Expires (dd/mm/yyyy)").
				Value(&fm.ExpiresOn).
				Validate(validateDate),
			huh.NewInput().
				Title("Time (HH:MM:SS)").
				Value(&fm.ExpiresTime).
				Validate(validateClock),
			huh.NewInput().
				Title("Monthly quota").
				Value(&fm.Quota),
		),
	).WithTheme(huh.ThemeDracula())
}

// Draft applies the date and number masks to the submitted values.
func (fm DraftFormModel) Draft() models.Draft {
	return models.Draft{
		IPAddress:   strings.TrimSpace(fm.IPAddress),
		Description: strings.TrimSpace(fm.Description),
		ExpiresOn:   brfmt.ApplyDateMask(fm.ExpiresOn),
		Quota:       brfmt.MaskNumber(fm.Quota),
	}
}

// Edit applies the date and number masks to the submitted values.
func (fm EditFormModel) Edit() models.Edit {
	return models.Edit{
		IPAddress:   strings.TrimSpace(fm.IPAddress),
		Description: strings.TrimSpace(fm.Description),
		ExpiresOn:   brfmt.ApplyDateMask(fm.ExpiresOn),
		ExpiresTime: strings.TrimSpace(fm.ExpiresTime),
		Quota:       brfmt.MaskNumber(fm.Quota),
	}
}

func editFormFor(r models.Record) *EditFormModel {
	e := models.EditFor(r)
	return &EditFormModel{
		IPAddress:   e.IPAddress,
		Description: e.Description,
		ExpiresOn:   e.ExpiresOn,
		ExpiresTime: e.ExpiresTime,
		Quota:       e.Quota,
	}
}
