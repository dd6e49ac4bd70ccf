package query

import (
	"github.com/soulspace/soulspace-hub/internal/domain/progression"
)

// LevelDTO - описание уровня для произвольного суммарного XP.
type LevelDTO struct {
	TotalXP    int64   `json:"total_xp"`
	Level      int     `json:"level"`
	LevelTitle string  `json:"level_title"`
	XPInLevel  int64   `json:"xp_in_level"`
	XPToNext   int64   `json:"xp_to_next"`
	Fraction   float64 `json:"fraction"`

	// LevelStartXP - минимальный суммарный XP текущего уровня.
	LevelStartXP int64 `json:"level_start_xp"`

	// NextLevelAtXP - суммарный XP, при котором начнётся следующий уровень.
	NextLevelAtXP int64 `json:"next_level_at_xp"`
}

// DescribeLevel вычисляет уровень без обращения к хранилищу.
func DescribeLevel(totalXP int64) (*LevelDTO, error) {
	info, err := progression.LevelFromTotalXP(totalXP)
	if err != nil {
		return nil, err
	}
	frac, err := progression.ProgressFraction(info.XPInLevel, info.XPToNext)
	if err != nil {
		return nil, err
	}
	start, err := progression.TotalXPForLevel(info.Level)
	if err != nil {
		return nil, err
	}

	return &LevelDTO{
		TotalXP:       totalXP,
		Level:         info.Level,
		LevelTitle:    progression.LevelTitle(info.Level),
		XPInLevel:     info.XPInLevel,
		XPToNext:      info.XPToNext,
		Fraction:      frac,
		LevelStartXP:  start,
		NextLevelAtXP: start + info.XPToNext,
	}, nil
}
