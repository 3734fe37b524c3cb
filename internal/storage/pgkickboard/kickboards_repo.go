package pgkickboard

import (
	"context"
	"time"

	"github.com/BearBump/KickSync/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const selectColumns = `
  id, kickboard_id, kickboard_code,
  franchise_id, region_id, mode,
  lost, max_speed, collect, helmet_id,
  disconnected_at, created_at, updated_at`

func (s *Storage) FindAll(ctx context.Context) ([]*models.Kickboard, error) {
	rows, err := s.db.Query(ctx, `SELECT `+selectColumns+` FROM kickboards ORDER BY id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "select kickboards")
	}
	defer rows.Close()

	var out []*models.Kickboard
	for rows.Next() {
		k, err := scanKickboard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// Create inserts a new kickboard with every optional field unset.
func (s *Storage) Create(ctx context.Context, in models.KickboardCreateInput) (*models.Kickboard, error) {
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
INSERT INTO kickboards (
  kickboard_id, kickboard_code, franchise_id, region_id, mode,
  lost, max_speed, collect, helmet_id, disconnected_at,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5, NULL,NULL,NULL,NULL,NULL, $6,$6)
RETURNING `+selectColumns,
		in.KickboardID, in.KickboardCode, in.FranchiseID, in.RegionID, int16(in.Mode), now)
	k, err := scanKickboard(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert kickboard")
	}
	return k, nil
}

// Save writes back the fields the sync job is allowed to change.
func (s *Storage) Save(ctx context.Context, k *models.Kickboard) error {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
UPDATE kickboards
SET
  kickboard_id = $2,
  franchise_id = $3,
  region_id = $4,
  mode = $5,
  updated_at = $6
WHERE id = $1
`, k.ID, k.KickboardID, k.FranchiseID, k.RegionID, int16(k.Mode), now)
	if err != nil {
		return errors.Wrap(err, "update kickboard")
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("kickboard %d not found", k.ID)
	}
	k.UpdatedAt = now
	return nil
}

func scanKickboard(row pgx.Row) (*models.Kickboard, error) {
	var k models.Kickboard
	var mode int16
	var lost, collect *int16
	var maxSpeed *int32
	if err := row.Scan(
		&k.ID, &k.KickboardID, &k.KickboardCode,
		&k.FranchiseID, &k.RegionID, &mode,
		&lost, &maxSpeed, &collect, &k.HelmetID,
		&k.DisconnectedAt, &k.CreatedAt, &k.UpdatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "scan kickboard")
	}
	k.Mode = models.Mode(mode)
	k.MaxSpeed = maxSpeed
	if lost != nil {
		l := models.LostLevel(*lost)
		k.Lost = &l
	}
	if collect != nil {
		c := models.CollectReason(*collect)
		k.Collect = &c
	}
	return &k, nil
}
