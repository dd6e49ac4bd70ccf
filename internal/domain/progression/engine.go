// Package progression содержит чистое ядро прогрессии: вычисление уровня
// из накопленного XP, применение начислений и долю прогресса внутри уровня.
//
// Функции пакета не имеют побочных эффектов, не хранят состояние между
// вызовами и безопасны для конкурентного использования.
package progression

import (
	"math"
	"math/big"

	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL CURVE
// ══════════════════════════════════════════════════════════════════════════════

const (
	// BaseThreshold - XP, необходимый для перехода с 1 на 2 уровень.
	BaseThreshold int64 = 1000

	// GrowthFactor - множитель порога на каждый следующий уровень.
	GrowthFactor = 1.2

	// MinLevel - начальный уровень любого пользователя.
	MinLevel = 1
)

const domainName = "progression"

// Threshold возвращает XP, необходимый для перехода с уровня n на n+1:
// floor(1000 × 1.2^(n-1)). Контракт: 1.2^(n-1) вычисляется точно и
// округляется до float64 ровно один раз (корректно округлённый pow), затем
// умножение в float64 и отбрасывание дробной части. Реализации pow в libm
// округляют не всегда корректно и могут расходиться на 1 начиная с n = 164;
// для уровней 1-163 результат совпадает с ними.
// Для n < 1 возвращается порог первого уровня.
func Threshold(n int) int64 {
	if n <= MinLevel {
		return BaseThreshold
	}
	if n-1 < len(thresholds) {
		return thresholds[n-1]
	}
	return math.MaxInt64
}

// powPrecision с запасом покрывает точное произведение 53-битных мантисс
// для всех уровней, чей порог помещается в int64.
const powPrecision = 53 * 256

// thresholds[i] - порог уровня i+1. Таблица заканчивается на последнем
// пороге, который помещается в int64.
var thresholds = buildThresholds()

func buildThresholds() []int64 {
	factor := new(big.Float).SetFloat64(GrowthFactor)
	pow := new(big.Float).SetPrec(powPrecision).SetInt64(1)

	table := []int64{BaseThreshold}
	for {
		pow.Mul(pow, factor)
		p, _ := pow.Float64()
		f := math.Floor(float64(BaseThreshold) * p)
		if f >= math.MaxInt64 {
			return table
		}
		table = append(table, int64(f))
	}
}

// LevelInfo - производное представление прогресса. Никогда не хранится.
type LevelInfo struct {
	// Level - текущий уровень (>= 1).
	Level int `json:"level"`

	// XPInLevel - XP, накопленный внутри текущего уровня.
	XPInLevel int64 `json:"xp_in_level"`

	// XPToNext - порог текущего уровня. Всегда > XPInLevel.
	XPToNext int64 `json:"xp_to_next"`
}

// LevelFromTotalXP вычисляет уровень из суммарного XP.
//
// Начиная с уровня 1 и порога 1000, пока остаток не меньше порога:
// порог вычитается, уровень растёт, порог пересчитывается.
func LevelFromTotalXP(totalXP int64) (LevelInfo, error) {
	if totalXP < 0 {
		return LevelInfo{}, shared.InvalidArgument(domainName, "LevelFromTotalXP",
			"total XP must be non-negative, got %d", totalXP)
	}

	level := MinLevel
	remaining := totalXP
	threshold := Threshold(level)

	for remaining >= threshold {
		remaining -= threshold
		level++
		threshold = Threshold(level)
	}

	return LevelInfo{
		Level:     level,
		XPInLevel: remaining,
		XPToNext:  threshold,
	}, nil
}

// TotalXPForLevel возвращает минимальный суммарный XP, при котором достигается level.
// Обратная операция к LevelFromTotalXP: total = TotalXPForLevel(L) + XPInLevel.
func TotalXPForLevel(level int) (int64, error) {
	if level < MinLevel {
		return 0, shared.InvalidArgument(domainName, "TotalXPForLevel",
			"level must be >= %d, got %d", MinLevel, level)
	}

	var total int64
	for n := MinLevel; n < level; n++ {
		t := Threshold(n)
		if total > math.MaxInt64-t {
			return 0, shared.InvalidArgument(domainName, "TotalXPForLevel",
				"level %d is out of representable range", level)
		}
		total += t
	}
	return total, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GRANTS
// ══════════════════════════════════════════════════════════════════════════════

// GrantResult - результат применения одного начисления XP.
type GrantResult struct {
	// PriorTotalXP - суммарный XP до начисления.
	PriorTotalXP int64 `json:"prior_total_xp"`

	// NewTotalXP - суммарный XP после начисления.
	NewTotalXP int64 `json:"new_total_xp"`

	// LeveledUp - true, если новый уровень строго больше прежнего.
	LeveledUp bool `json:"leveled_up"`

	// OldLevel - уровень до начисления.
	OldLevel int `json:"old_level"`

	// NewLevel - уровень после начисления.
	NewLevel int `json:"new_level"`

	// NewXPInLevel - XP внутри нового уровня.
	NewXPInLevel int64 `json:"new_xp_in_level"`

	// XPToNext - порог нового уровня.
	XPToNext int64 `json:"xp_to_next"`
}

// LevelsGained возвращает количество пройденных уровней (может быть > 1).
func (r GrantResult) LevelsGained() int {
	return r.NewLevel - r.OldLevel
}

// ApplyXPGrant применяет начисление к прежнему суммарному XP.
//
// Бонус за повышение уровня здесь не начисляется: вызывающая сторона
// выдаёт его отдельным явным начислением, без цепочки.
func ApplyXPGrant(priorTotalXP, amount int64) (GrantResult, error) {
	if amount <= 0 {
		return GrantResult{}, shared.InvalidArgument(domainName, "ApplyXPGrant",
			"grant amount must be positive, got %d", amount)
	}
	if priorTotalXP > math.MaxInt64-amount {
		return GrantResult{}, shared.InvalidArgument(domainName, "ApplyXPGrant",
			"grant of %d overflows total XP %d", amount, priorTotalXP)
	}

	before, err := LevelFromTotalXP(priorTotalXP)
	if err != nil {
		return GrantResult{}, err
	}

	newTotal := priorTotalXP + amount
	after, err := LevelFromTotalXP(newTotal)
	if err != nil {
		return GrantResult{}, err
	}

	return GrantResult{
		PriorTotalXP: priorTotalXP,
		NewTotalXP:   newTotal,
		LeveledUp:    after.Level > before.Level,
		OldLevel:     before.Level,
		NewLevel:     after.Level,
		NewXPInLevel: after.XPInLevel,
		XPToNext:     after.XPToNext,
	}, nil
}

// ProgressFraction возвращает долю прогресса внутри уровня в диапазоне [0, 1].
func ProgressFraction(xpInLevel, xpToNext int64) (float64, error) {
	if xpToNext <= 0 {
		return 0, shared.InvalidArgument(domainName, "ProgressFraction",
			"xp to next level must be positive, got %d", xpToNext)
	}
	if xpInLevel < 0 {
		return 0, shared.InvalidArgument(domainName, "ProgressFraction",
			"xp in level must be non-negative, got %d", xpInLevel)
	}
	if xpInLevel >= xpToNext {
		return 1, nil
	}
	return float64(xpInLevel) / float64(xpToNext), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL TITLES
// ══════════════════════════════════════════════════════════════════════════════

// LevelTitle возвращает отображаемое название уровня.
func LevelTitle(level int) string {
	switch {
	case level < 3:
		return "Seedling"
	case level < 5:
		return "Sprout"
	case level < 10:
		return "Bloom"
	case level < 15:
		return "Grove"
	case level < 25:
		return "Forest"
	default:
		return "Evergreen"
	}
}
