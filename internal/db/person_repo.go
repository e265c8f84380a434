package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"courier/internal/types"
)

// PersonRepository reads the persons table.
type PersonRepository struct {
	db DBTX
}

func NewPersonRepository(db DBTX) *PersonRepository {
	return &PersonRepository{db: db}
}

func (r *PersonRepository) GetByID(ctx context.Context, id string) (*types.Person, error) {
	var (
		p                      types.Person
		email, mobile, webhook *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, full_name, email, mobile_number, webhook_url
		 FROM persons
		 WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.FullName, &email, &mobile, &webhook)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPerson, "person not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get person", err)
	}
	p.Email = derefString(email)
	p.MobileNumber = derefString(mobile)
	p.WebhookURL = derefString(webhook)
	return &p, nil
}

// StoredFileRepository reads stored file metadata.
type StoredFileRepository struct {
	db DBTX
}

func NewStoredFileRepository(db DBTX) *StoredFileRepository {
	return &StoredFileRepository{db: db}
}

func (r *StoredFileRepository) GetByID(ctx context.Context, id string) (*types.StoredFile, error) {
	var f types.StoredFile
	err := r.db.QueryRow(ctx,
		`SELECT id, file_name, content_type, storage_key, size_bytes
		 FROM stored_files
		 WHERE id = $1`,
		id,
	).Scan(&f.ID, &f.FileName, &f.ContentType, &f.StorageKey, &f.Size)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundStoredFile, "stored file not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get stored file", err)
	}
	return &f, nil
}

// PreferenceRepository answers opt-out lookups.
type PreferenceRepository struct {
	db DBTX
}

func NewPreferenceRepository(db DBTX) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

func (r *PreferenceRepository) IsOptedOut(ctx context.Context, personID, typeID string) (bool, error) {
	var opted bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM notification_opt_outs
		     WHERE person_id = $1 AND type_id = $2)`,
		personID, typeID,
	).Scan(&opted)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check opt-out", err)
	}
	return opted, nil
}
