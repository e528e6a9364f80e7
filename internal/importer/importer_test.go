package importer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/authip/internal/importer"
	"github.com/julianstephens/authip/internal/models"
	"github.com/julianstephens/authip/internal/whitelist"
)

const document = `
records:
  - ip: 10.0.0.1
    description: Filial Campinas
    expires: 05/02/2026
    quota: 50.000
  - ip: 10.0.0.2
    quota: "1000"
  - ip: 10.0.0.1
    quota: 1
  - ip: not-an-ip
    quota: 1
`

type fakeService struct {
	records []models.Record
	drafts  []models.Draft
}

func (f *fakeService) List(ctx context.Context) ([]models.Record, error) {
	return f.records, nil
}

func (f *fakeService) Create(ctx context.Context, d models.Draft) (*models.Record, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if _, dup := whitelist.FindIP(f.records, d.IPAddress); dup {
		return nil, whitelist.ErrDuplicateIP
	}
	p := d.Payload()
	r := models.Record{ID: models.RecordID(p.IPAddress), IPAddress: p.IPAddress, ExpiresAt: p.ExpiresAt, MonthlyQuota: models.Count(p.MonthlyQuota)}
	f.records = append(f.records, r)
	f.drafts = append(f.drafts, d)
	return &r, nil
}

var now = time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	f, err := importer.Parse(strings.NewReader(document))
	require.NoError(t, err)
	require.Len(t, f.Records, 4)

	assert.Equal(t, "50.000", f.Records[0].Quota, "grouped quota must survive as text")
	assert.Equal(t, "05/02/2026", f.Records[0].Expires)
	assert.Equal(t, "1000", f.Records[1].Quota)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := importer.Parse(strings.NewReader("records:\n  - ip: 1.1.1.1\n    limit: 3\n"))
	assert.Error(t, err)
}

func TestParseEmpty(t *testing.T) {
	_, err := importer.Parse(strings.NewReader(""))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.yaml")
	require.NoError(t, os.WriteFile(path, []byte(document), 0o600))

	f, err := importer.Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Records, 4)

	_, err = importer.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	f, err := importer.Parse(strings.NewReader(document))
	require.NoError(t, err)

	svc := &fakeService{}
	report, err := importer.Run(context.Background(), svc, f, importer.Options{Now: now})
	require.NoError(t, err)
	require.Len(t, report.Results, 4)

	assert.Equal(t, 2, report.Count(importer.StatusCreated))
	assert.Equal(t, 1, report.Count(importer.StatusSkipped))
	assert.Equal(t, 1, report.Count(importer.StatusFailed))
	assert.True(t, errors.Is(report.Results[3].Err, models.ErrInvalidIP))

	require.Len(t, svc.drafts, 2)
	assert.Equal(t, "05/02/2025", svc.drafts[1].ExpiresOn, "missing expiration defaults to today+31 days")
	assert.Equal(t, int64(50000), svc.drafts[0].Payload().MonthlyQuota)
}

func TestRunDryRun(t *testing.T) {
	f, err := importer.Parse(strings.NewReader(document))
	require.NoError(t, err)

	svc := &fakeService{records: []models.Record{{ID: "1", IPAddress: "10.0.0.2"}}}
	report, err := importer.Run(context.Background(), svc, f, importer.Options{DryRun: true, Now: now})
	require.NoError(t, err)

	assert.Empty(t, svc.drafts, "dry run must not create records")
	statuses := []importer.Status{}
	for _, r := range report.Results {
		statuses = append(statuses, r.Status)
	}
	assert.Equal(t, []importer.Status{
		importer.StatusValid,
		importer.StatusSkipped,
		importer.StatusSkipped,
		importer.StatusFailed,
	}, statuses)
}
