package kicksync

import (
	"log/slog"

	"github.com/BearBump/KickSync/internal/models"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type NormalizeResult struct {
	Valid      []models.SourceKickboard
	Invalid    int
	Duplicates int
}

// Normalize drops documents whose code is not 6 characters long and every
// repeat of a code already seen. Order is preserved; the first occurrence wins.
func Normalize(log *slog.Logger, docs []models.SourceKickboard) NormalizeResult {
	res := NormalizeResult{Valid: make([]models.SourceKickboard, 0, len(docs))}
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if err := validate.Struct(d); err != nil {
			log.Warn("invalid kickboard code", "kickboard", d.DisplayName())
			res.Invalid++
			continue
		}
		if _, ok := seen[d.KickboardCode]; ok {
			log.Warn("kickboard code already processed", "kickboard", d.DisplayName())
			res.Duplicates++
			continue
		}
		seen[d.KickboardCode] = struct{}{}
		res.Valid = append(res.Valid, d)
	}
	return res
}
