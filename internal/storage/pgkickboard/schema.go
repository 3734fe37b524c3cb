package pgkickboard

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS kickboards (
  id BIGSERIAL PRIMARY KEY,
  kickboard_id TEXT NOT NULL,
  kickboard_code TEXT NOT NULL,
  franchise_id TEXT NOT NULL DEFAULT '',
  region_id TEXT NOT NULL DEFAULT '',
  mode SMALLINT NOT NULL DEFAULT 4,
  lost SMALLINT NULL,
  max_speed INT NULL,
  collect SMALLINT NULL,
  helmet_id TEXT NULL,
  disconnected_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (kickboard_code),
  UNIQUE (kickboard_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_kickboards_franchise_id ON kickboards(franchise_id)`,
		`CREATE INDEX IF NOT EXISTS idx_kickboards_region_id ON kickboards(region_id)`,
		// mode is a closed enum (READY..DISABLED).
		`
DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_kickboards_mode') THEN
    ALTER TABLE kickboards ADD CONSTRAINT chk_kickboards_mode CHECK (mode BETWEEN 0 AND 5);
  END IF;
END $$`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
