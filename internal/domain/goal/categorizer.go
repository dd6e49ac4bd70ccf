package goal

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ══════════════════════════════════════════════════════════════════════════════
// KEYWORD RULES
// Грубая эвристика по подстрокам. Списки и порядок фиксированы: их изменение
// меняет наблюдаемую категоризацию уже сохранённых целей.
// ══════════════════════════════════════════════════════════════════════════════

// Rule - набор ключевых слов одной категории.
type Rule struct {
	Category Category
	Keywords []string
}

// Rules - правила в порядке приоритета (без General).
var Rules = []Rule{
	{CategoryDigital, []string{
		"screen", "phone", "social media", "digital", "device", "internet", "online",
		"gaming", "tv", "netflix", "youtube", "instagram", "tiktok", "scroll", "detox",
	}},
	{CategoryPhysical, []string{
		"walk", "exercise", "fitness", "steps", "run", "jog", "gym", "workout",
		"sport", "bike", "swim", "dance", "hike", "cardio", "strength",
	}},
	{CategoryMindfulness, []string{
		"meditat", "mindful", "breath", "yoga", "relax", "calm", "gratitude",
		"journal", "pray", "stress",
	}},
	{CategoryLearning, []string{
		"read", "book", "learn", "study", "course", "language", "skill", "lesson",
		"class",
	}},
	{CategoryHealth, []string{
		"sleep", "water", "diet", "eating", "meal", "vitamin", "doctor", "therapy",
		"medic", "nutrition", "vegetable", "fruit", "hydrat", "health",
	}},
	{CategoryProductivity, []string{
		"task", "work", "organize", "plan", "schedule", "focus", "routine", "clean",
		"habit", "project", "deadline", "productiv", "procrastinat", "todo", "to-do",
	}},
	{CategorySocial, []string{
		"friend", "family", "call", "meet", "connect", "volunteer", "community",
		"relationship", "parent", "partner",
	}},
	{CategoryFinancial, []string{
		"save", "saving", "money", "budget", "invest", "buy", "house", "debt", "pay",
		"bank", "financ", "spend", "loan", "retire",
	}},
	{CategoryCreative, []string{
		"draw", "paint", "write", "music", "artwork", "artist", "craft", "photo",
		"create", "cook", "singing", "song", "guitar", "piano", "poem", "poetry",
		"knit", "garden", "sketch", "design",
	}},
}

// normalize склеивает заголовок и описание через пробел и приводит к нижнему регистру.
// cases.Caser хранит состояние, поэтому создаётся на каждый вызов.
func normalize(title, description string) string {
	return cases.Lower(language.Und).String(title + " " + description)
}

func (r Rule) matches(text string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Categorize возвращает первую по приоритету категорию, у которой нашлось
// хотя бы одно ключевое слово. Если совпадений нет - General. Не возвращает ошибок.
func Categorize(title, description string) Category {
	text := normalize(title, description)
	for _, r := range Rules {
		if r.matches(text) {
			return r.Category
		}
	}
	return CategoryGeneral
}

// Matches возвращает все категории с совпадениями в порядке приоритета.
// Используется только для аналитики; каноническая категория - Categorize.
func Matches(title, description string) []Category {
	text := normalize(title, description)
	var out []Category
	for _, r := range Rules {
		if r.matches(text) {
			out = append(out, r.Category)
		}
	}
	if len(out) == 0 {
		out = append(out, CategoryGeneral)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// BOARD
// ══════════════════════════════════════════════════════════════════════════════

// Bucket - категория и её цели в исходном порядке.
type Bucket struct {
	Info  Info   `json:"info"`
	Goals []Goal `json:"goals"`
}

// Board - разбиение целей по категориям.
type Board map[Category][]Goal

// Partition раскладывает элементы по категориям. Порядок внутри корзины
// совпадает с порядком во входе; каждый элемент попадает ровно в одну корзину.
func Partition[T any](items []T, text func(T) (string, string)) map[Category][]T {
	out := make(map[Category][]T)
	for _, item := range items {
		title, description := text(item)
		c := Categorize(title, description)
		out[c] = append(out[c], item)
	}
	return out
}

// CategorizeAll раскладывает цели по категориям.
func CategorizeAll(goals []Goal) Board {
	return Board(Partition(goals, func(g Goal) (string, string) {
		return g.Title, g.Description
	}))
}

// Buckets возвращает все категории в порядке приоритета, включая пустые.
func (b Board) Buckets() []Bucket {
	out := make([]Bucket, 0, len(PriorityOrder))
	for _, c := range PriorityOrder {
		out = append(out, Bucket{Info: c.Info(), Goals: b[c]})
	}
	return out
}

// Flatten склеивает корзины в порядке приоритета.
func (b Board) Flatten() []Goal {
	var out []Goal
	for _, c := range PriorityOrder {
		out = append(out, b[c]...)
	}
	return out
}

// Counts возвращает количество целей по категориям.
func (b Board) Counts() map[Category]int {
	out := make(map[Category]int, len(b))
	for c, goals := range b {
		out[c] = len(goals)
	}
	return out
}
