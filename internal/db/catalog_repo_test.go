package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"courier/internal/types"
)

func TestCatalogRepository_NotificationType(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCatalogRepository(db)

	db.On("QueryRow", mock.Anything, mock.Anything, []any{"invoice"}).
		Return(rowOf("invoice", "Invoice", false, true, true, false))

	nt, err := repo.NotificationType(context.Background(), "invoice")
	require.NoError(t, err)
	assert.Equal(t, "Invoice", nt.Name)
	assert.True(t, nt.AllowAttachments)
	assert.False(t, nt.IsTimeSensitive)
}

func TestCatalogRepository_NotFoundCodes(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCatalogRepository(db)
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})
	ctx := context.Background()

	_, err := repo.NotificationType(ctx, "x")
	assert.Equal(t, types.ErrCodeNotFoundNotificationType, types.CodeOf(err))

	_, err = repo.Channel(ctx, "x")
	assert.Equal(t, types.ErrCodeNotFoundChannel, types.CodeOf(err))

	_, err = repo.Template(ctx, "x", types.FormatHTML)
	assert.Equal(t, types.ErrCodeTemplateNotFound, types.CodeOf(err))
}

func TestCatalogRepository_Channel(t *testing.T) {
	db := new(mockDBTX)
	db.On("QueryRow", mock.Anything, mock.Anything, []any{"email"}).
		Return(rowOf("email", "Email", types.FormatHTML, true, types.AdapterEmailSES, false))

	ch, err := NewCatalogRepository(db).Channel(context.Background(), "email")
	require.NoError(t, err)
	assert.Equal(t, types.AdapterEmailSES, ch.AdapterID)
	assert.Equal(t, types.FormatHTML, ch.SupportedFormat)
}

func TestCatalogRepository_Template(t *testing.T) {
	db := new(mockDBTX)
	db.On("QueryRow", mock.Anything, mock.Anything, []any{"invoice", "html"}).
		Return(rowOf("t-1", "invoice", types.FormatHTML, "Invoice {{.number}}", "<p>{{.total}}</p>"))

	tmpl, err := NewCatalogRepository(db).Template(context.Background(), "invoice", types.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "Invoice {{.number}}", tmpl.TitleTemplate)
}

func TestCatalogRepository_RoutesFor(t *testing.T) {
	db := new(mockDBTX)
	db.On("Query", mock.Anything, mock.Anything, []any{"invoice", int16(3)}).
		Return(newMockRows([]any{"email"}, []any{"sms"}), nil)

	ids, err := NewCatalogRepository(db).RoutesFor(context.Background(), "invoice", types.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "sms"}, ids)
}

func TestCatalogRepository_RoutesFor_IterationError(t *testing.T) {
	db := new(mockDBTX)
	rows := newMockRows([]any{"email"})
	rows.errVal = errors.New("connection reset")
	db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil)

	_, err := NewCatalogRepository(db).RoutesFor(context.Background(), "invoice", types.PriorityLow)
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
}

func TestPersonRepository_GetByID(t *testing.T) {
	db := new(mockDBTX)
	email := "alice@example.com"
	db.On("QueryRow", mock.Anything, mock.Anything, []any{"p-alice"}).
		Return(rowOf("p-alice", "Alice", &email, (*string)(nil), (*string)(nil)))

	p, err := NewPersonRepository(db).GetByID(context.Background(), "p-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, "", p.MobileNumber)
}

func TestPersonRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := NewPersonRepository(db).GetByID(context.Background(), "p-x")
	assert.Equal(t, types.ErrCodeNotFoundPerson, types.CodeOf(err))
}

func TestStoredFileRepository_GetByID(t *testing.T) {
	db := new(mockDBTX)
	db.On("QueryRow", mock.Anything, mock.Anything, []any{"f-1"}).
		Return(rowOf("f-1", "invoice.pdf", "application/pdf", "files/f-1", int64(2048)))

	f, err := NewStoredFileRepository(db).GetByID(context.Background(), "f-1")
	require.NoError(t, err)
	assert.Equal(t, "files/f-1", f.StorageKey)
	assert.Equal(t, int64(2048), f.Size)
}

func TestPreferenceRepository_IsOptedOut(t *testing.T) {
	db := new(mockDBTX)
	db.On("QueryRow", mock.Anything, mock.Anything, []any{"p-alice", "promo"}).
		Return(rowOf(true))

	opted, err := NewPreferenceRepository(db).IsOptedOut(context.Background(), "p-alice", "promo")
	require.NoError(t, err)
	assert.True(t, opted)
}

func TestAttachmentRepository_CreateAndList(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAttachmentRepository(db)

	db.On("Exec", mock.Anything, mock.Anything, []any{"a-1", "m-1", "f-1", "invoice.pdf"}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)
	db.On("Query", mock.Anything, mock.Anything, []any{"m-1"}).
		Return(newMockRows([]any{"a-1", "m-1", "f-1", "invoice.pdf"}), nil)

	require.NoError(t, repo.Create(context.Background(), &types.MessageAttachment{ID: "a-1", MessageID: "m-1", FileID: "f-1", FileName: "invoice.pdf"}))
	got, err := repo.ListByMessage(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, []types.MessageAttachment{{ID: "a-1", MessageID: "m-1", FileID: "f-1", FileName: "invoice.pdf"}}, got)
}
