package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gmsas95/pillpal/internal/doses"
	"github.com/gmsas95/pillpal/internal/tracker"
)

const (
	MedicationsKey = "pillpal-medications"
	DosesKey       = "pillpal-doses"
)

// Repository stores the tracker's two lists as JSON blobs.
type Repository struct {
	blobs BlobStore
}

var _ tracker.Repository = (*Repository)(nil)

func NewRepository(blobs BlobStore) *Repository {
	return &Repository{blobs: blobs}
}

func (r *Repository) LoadMedications(ctx context.Context) ([]doses.Medication, error) {
	var meds []doses.Medication
	if err := r.load(ctx, MedicationsKey, &meds); err != nil {
		return nil, err
	}
	return meds, nil
}

func (r *Repository) SaveMedications(ctx context.Context, meds []doses.Medication) error {
	if meds == nil {
		meds = []doses.Medication{}
	}
	return r.save(ctx, MedicationsKey, meds)
}

func (r *Repository) LoadDoses(ctx context.Context) ([]doses.Dose, error) {
	var list []doses.Dose
	if err := r.load(ctx, DosesKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *Repository) SaveDoses(ctx context.Context, list []doses.Dose) error {
	if list == nil {
		list = []doses.Dose{}
	}
	return r.save(ctx, DosesKey, list)
}

func (r *Repository) load(ctx context.Context, key string, v interface{}) error {
	data, err := r.blobs.GetBlob(ctx, key)
	if errors.Is(err, ErrBlobNotFound) {
		return tracker.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (r *Repository) save(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return r.blobs.PutBlob(ctx, key, data)
}
