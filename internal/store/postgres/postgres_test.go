package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestInsertDocument_NewRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	doc := monitor.Document{
		SourceURL:   "https://src",
		DocumentURL: "https://doc",
		Title:       "Gaming Commission Report",
		Description: "Tabled report",
		Type:        monitor.TypeTabledPaper,
		Chamber:     "House of Assembly",
		Discovered:  now,
		Fingerprint: "fp-1",
		Keywords:    []string{"gaming"},
		Tier:        monitor.TierStandard,
	}

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(
			doc.SourceURL, doc.DocumentURL, doc.Title, doc.Description,
			"tabled_paper", doc.Chamber, doc.Published, doc.Discovered,
			doc.Member, doc.Committee, doc.Portfolio, doc.Fingerprint,
			[]byte(`["gaming"]`), "standard", doc.Processed,
		).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	inserted, err := store.InsertDocument(context.Background(), &doc)
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, int64(7), doc.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDocument_ConflictIsNotAnError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	doc := monitor.Document{Title: "dup", Fingerprint: "fp-dup", Discovered: time.Now().UTC()}

	mock.ExpectQuery("INSERT INTO documents").
		WillReturnError(pgx.ErrNoRows)

	inserted, err := store.InsertDocument(context.Background(), &doc)
	require.NoError(t, err)
	require.False(t, inserted)
	require.Zero(t, doc.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentExists(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT 1 FROM documents").
		WithArgs("fp-known").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM documents").
		WithArgs("fp-unknown").
		WillReturnError(pgx.ErrNoRows)

	exists, err := store.DocumentExists(context.Background(), "fp-known")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = store.DocumentExists(context.Background(), "fp-unknown")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessed(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE documents SET processed").
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkProcessed(context.Background(), 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnsentAlertsAndMarkSent(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	created := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT id, document_id, alert_level").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "document_id", "alert_level", "title", "description", "keywords_matched", "date_created", "sent",
		}).
			AddRow(int64(1), int64(10), "critical", "Urgent paper", "", "gaming", created, false).
			AddRow(int64(2), int64(11), "standard", "Routine paper", "", "", created, false))

	alerts, err := store.UnsentAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	require.Equal(t, monitor.TierCritical, alerts[0].Tier)
	require.Equal(t, "Urgent paper", alerts[0].Title)

	mock.ExpectExec("UPDATE alerts SET sent").
		WithArgs([]int64{1, 2}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	require.NoError(t, store.MarkAlertsSent(context.Background(), []int64{1, 2}))
	require.NoError(t, store.MarkAlertsSent(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPool_RequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil)
	require.Error(t, err)
}
