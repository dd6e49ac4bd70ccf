package query

import (
	"github.com/soulspace/soulspace-hub/internal/domain/goal"
)

// CategorizeTextQuery - категоризация произвольного текста без сохранения.
type CategorizeTextQuery struct {
	Title       string
	Description string
}

// CategorizeTextDTO - результат категоризации.
type CategorizeTextDTO struct {
	// Category - каноническая категория (первое совпадение по приоритету).
	Category goal.Info `json:"category"`

	// Matches - все совпавшие категории в порядке приоритета.
	Matches []goal.Category `json:"matches"`
}

// CategorizeRecorder получает результат категоризации для метрик.
type CategorizeRecorder interface {
	ObserveCategorized(category string)
}

// CategorizeTextHandler обрабатывает CategorizeTextQuery.
type CategorizeTextHandler struct {
	recorder CategorizeRecorder
}

// NewCategorizeTextHandler создаёт обработчик. recorder может быть nil.
func NewCategorizeTextHandler(recorder CategorizeRecorder) *CategorizeTextHandler {
	return &CategorizeTextHandler{recorder: recorder}
}

// Handle категоризирует текст. Любая строка допустима: текст без
// ключевых слов (в том числе пустой) попадает в general.
func (h *CategorizeTextHandler) Handle(q CategorizeTextQuery) *CategorizeTextDTO {
	c := goal.Categorize(q.Title, q.Description)
	if h.recorder != nil {
		h.recorder.ObserveCategorized(string(c))
	}
	return &CategorizeTextDTO{
		Category: c.Info(),
		Matches:  goal.Matches(q.Title, q.Description),
	}
}
