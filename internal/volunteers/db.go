package volunteers

import (
	"context"

	"ms-attendance/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

func (db *DB) List(ctx context.Context) ([]models.Volunteer, error) {
	var volunteers []models.Volunteer
	err := db.bun.NewSelect().
		Model(&volunteers).
		OrderExpr("v.joined_at DESC").
		Scan(ctx)

	return volunteers, err
}

func (db *DB) Create(ctx context.Context, v *models.Volunteer) error {
	_, err := db.bun.NewInsert().Model(v).Exec(ctx)
	return err
}

// Delete reports whether a row was removed.
func (db *DB) Delete(ctx context.Context, id string) (bool, error) {
	res, err := db.bun.NewDelete().
		Model((*models.Volunteer)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
