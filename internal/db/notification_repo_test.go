package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"courier/internal/types"
)

func TestNotificationRepository_Create(t *testing.T) {
	db := new(mockDBTX)
	repo := NewNotificationRepository(db)

	n := &types.Notification{
		ID:               "n-1",
		Name:             "Order shipped",
		TypeID:           "order_shipped",
		ToPersonID:       "p-alice",
		Payload:          json.RawMessage(`{"order":"A-1"}`),
		Priority:         types.PriorityHigh,
		TriggeringEntity: &types.EntityRef{ID: "A-1", ClassName: "Order"},
		CreatedAt:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	db.On("Exec", mock.Anything, mock.Anything, mock.MatchedBy(func(args []any) bool {
		from, _ := args[3].(*string)
		to, _ := args[4].(*string)
		entityClass, _ := args[8].(*string)
		return args[0] == "n-1" &&
			from == nil &&
			to != nil && *to == "p-alice" &&
			string(args[5].([]byte)) == `{"order":"A-1"}` &&
			args[6] == int16(3) &&
			entityClass != nil && *entityClass == "Order"
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.Create(context.Background(), n))
	db.AssertExpectations(t)
}

func TestNotificationRepository_Create_DBError(t *testing.T) {
	db := new(mockDBTX)
	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("unique violation"))

	err := NewNotificationRepository(db).Create(context.Background(), &types.Notification{ID: "n-1"})
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
}

func TestNotificationRepository_GetByID(t *testing.T) {
	db := new(mockDBTX)
	repo := NewNotificationRepository(db)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	to := "p-alice"
	class := "Order"
	entity := "A-1"

	db.On("QueryRow", mock.Anything, mock.Anything, []any{"n-1"}).Return(rowOf(
		"n-1", "Order shipped", "order_shipped",
		(*string)(nil), &to,
		[]byte(`{"order":"A-1"}`), int16(2),
		&entity, &class,
		created,
	))

	n, err := repo.GetByID(context.Background(), "n-1")
	require.NoError(t, err)
	assert.Equal(t, "", n.FromPersonID)
	assert.Equal(t, "p-alice", n.ToPersonID)
	assert.JSONEq(t, `{"order":"A-1"}`, string(n.Payload))
	assert.Equal(t, types.PriorityNormal, n.Priority)
	require.NotNil(t, n.TriggeringEntity)
	assert.Equal(t, "Order", n.TriggeringEntity.ClassName)
	assert.Equal(t, created, n.CreatedAt)
}

func TestNotificationRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := NewNotificationRepository(db).GetByID(context.Background(), "n-x")
	assert.Equal(t, types.ErrCodeNotFoundNotification, types.CodeOf(err))
}
