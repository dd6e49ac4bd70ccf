package goal

import (
	"strings"

	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORY
// ══════════════════════════════════════════════════════════════════════════════

// Category - закрытый набор категорий целей.
type Category string

const (
	CategoryDigital      Category = "digital"
	CategoryPhysical     Category = "physical"
	CategoryMindfulness  Category = "mindfulness"
	CategoryLearning     Category = "learning"
	CategoryHealth       Category = "health"
	CategoryProductivity Category = "productivity"
	CategorySocial       Category = "social"
	CategoryFinancial    Category = "financial"
	CategoryCreative     Category = "creative"
	CategoryGeneral      Category = "general"
)

// PriorityOrder - порядок проверки категорий. Первая совпавшая побеждает.
// General всегда последняя и не имеет ключевых слов.
var PriorityOrder = []Category{
	CategoryDigital,
	CategoryPhysical,
	CategoryMindfulness,
	CategoryLearning,
	CategoryHealth,
	CategoryProductivity,
	CategorySocial,
	CategoryFinancial,
	CategoryCreative,
	CategoryGeneral,
}

// Info - отображаемые атрибуты категории.
type Info struct {
	Category    Category `json:"category"`
	Title       string   `json:"title"`
	Icon        string   `json:"icon"`
	Description string   `json:"description"`
}

var categoryInfo = map[Category]Info{
	CategoryDigital: {
		Category:    CategoryDigital,
		Title:       "Digital Wellness",
		Icon:        "📱",
		Description: "Healthy boundaries with screens, apps and social media",
	},
	CategoryPhysical: {
		Category:    CategoryPhysical,
		Title:       "Physical Activity",
		Icon:        "🏃",
		Description: "Movement, exercise and staying active",
	},
	CategoryMindfulness: {
		Category:    CategoryMindfulness,
		Title:       "Mindfulness",
		Icon:        "🧘",
		Description: "Meditation, breathing and being present",
	},
	CategoryLearning: {
		Category:    CategoryLearning,
		Title:       "Learning & Growth",
		Icon:        "📚",
		Description: "Reading, studying and building new skills",
	},
	CategoryHealth: {
		Category:    CategoryHealth,
		Title:       "Health & Nutrition",
		Icon:        "🥗",
		Description: "Sleep, hydration, food and medical care",
	},
	CategoryProductivity: {
		Category:    CategoryProductivity,
		Title:       "Productivity",
		Icon:        "✅",
		Description: "Routines, planning and getting things done",
	},
	CategorySocial: {
		Category:    CategorySocial,
		Title:       "Social Connection",
		Icon:        "🤝",
		Description: "Friends, family and community",
	},
	CategoryFinancial: {
		Category:    CategoryFinancial,
		Title:       "Financial",
		Icon:        "💰",
		Description: "Saving, budgeting and money goals",
	},
	CategoryCreative: {
		Category:    CategoryCreative,
		Title:       "Creative",
		Icon:        "🎨",
		Description: "Art, music, writing and making things",
	},
	CategoryGeneral: {
		Category:    CategoryGeneral,
		Title:       "General",
		Icon:        "⭐",
		Description: "Everything else worth working towards",
	},
}

// Info возвращает отображаемые атрибуты категории.
// Для неизвестного значения возвращает атрибуты General.
func (c Category) Info() Info {
	if info, ok := categoryInfo[c]; ok {
		return info
	}
	return categoryInfo[CategoryGeneral]
}

// IsValid проверяет, что категория входит в закрытый набор.
func (c Category) IsValid() bool {
	_, ok := categoryInfo[c]
	return ok
}

// String возвращает строковое представление.
func (c Category) String() string {
	return string(c)
}

// ParseCategory разбирает строковое значение категории.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if !c.IsValid() {
		return "", shared.InvalidArgument(domainName, "ParseCategory", "unknown category %q", raw)
	}
	return c, nil
}

// AllInfo возвращает атрибуты всех категорий в порядке приоритета.
func AllInfo() []Info {
	out := make([]Info, 0, len(PriorityOrder))
	for _, c := range PriorityOrder {
		out = append(out, c.Info())
	}
	return out
}
