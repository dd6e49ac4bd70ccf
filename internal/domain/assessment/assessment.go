// Package assessment содержит скоринг опросников самооценки (PHQ-9, GAD-7).
// Это скрининг, а не диагноз: результат только маршрутизирует пользователя
// к подходящим ресурсам.
package assessment

import (
	"strings"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

const domainName = "assessment"

// ══════════════════════════════════════════════════════════════════════════════
// INSTRUMENTS
// ══════════════════════════════════════════════════════════════════════════════

// Kind - тип опросника.
type Kind string

const (
	KindPHQ9 Kind = "phq9"
	KindGAD7 Kind = "gad7"
)

// Severity - уровень выраженности симптомов.
type Severity string

const (
	SeverityMinimal          Severity = "minimal"
	SeverityMild             Severity = "mild"
	SeverityModerate         Severity = "moderate"
	SeverityModeratelySevere Severity = "moderately_severe"
	SeveritySevere           Severity = "severe"
)

const (
	// MinResponse и MaxResponse - границы ответа на один вопрос.
	MinResponse = 0
	MaxResponse = 3
)

// band - нижняя граница суммы и соответствующий уровень.
type band struct {
	min      int
	severity Severity
}

// Instrument описывает опросник: число вопросов и шкалу.
type Instrument struct {
	Kind  Kind
	Title string
	Items int
	bands []band
}

var instruments = map[Kind]Instrument{
	KindPHQ9: {
		Kind:  KindPHQ9,
		Title: "Patient Health Questionnaire (PHQ-9)",
		Items: 9,
		bands: []band{
			{20, SeveritySevere},
			{15, SeverityModeratelySevere},
			{10, SeverityModerate},
			{5, SeverityMild},
			{0, SeverityMinimal},
		},
	},
	KindGAD7: {
		Kind:  KindGAD7,
		Title: "Generalized Anxiety Disorder scale (GAD-7)",
		Items: 7,
		bands: []band{
			{15, SeveritySevere},
			{10, SeverityModerate},
			{5, SeverityMild},
			{0, SeverityMinimal},
		},
	},
}

// phq9SelfHarmItem - индекс вопроса о мыслях о самоповреждении.
const phq9SelfHarmItem = 8

// ParseKind разбирает тип опросника.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "-", "")))
	if _, ok := instruments[k]; !ok {
		return "", shared.InvalidArgument(domainName, "ParseKind", "unknown assessment %q", raw)
	}
	return k, nil
}

// MaxScore возвращает максимально возможную сумму.
func (i Instrument) MaxScore() int {
	return i.Items * MaxResponse
}

func (i Instrument) severity(score int) Severity {
	for _, b := range i.bands {
		if score >= b.min {
			return b.severity
		}
	}
	return SeverityMinimal
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULT
// ══════════════════════════════════════════════════════════════════════════════

// Result - результат прохождения опросника.
type Result struct {
	ID       string        `json:"id"`
	UserID   shared.UserID `json:"user_id"`
	Kind     Kind          `json:"kind"`
	Score    int           `json:"score"`
	MaxScore int           `json:"max_score"`
	Severity Severity      `json:"severity"`

	// NeedsFollowUp - положительный ответ на вопрос о самоповреждении
	// или тяжёлый уровень. Вызывающая сторона обязана показать ресурсы помощи.
	NeedsFollowUp bool `json:"needs_follow_up"`

	Responses   []int     `json:"-"`
	CompletedAt time.Time `json:"completed_at"`
}

// Score вычисляет сумму и уровень выраженности.
func Score(kind Kind, responses []int) (Result, error) {
	inst, ok := instruments[kind]
	if !ok {
		return Result{}, shared.InvalidArgument(domainName, "Score", "unknown assessment %q", kind)
	}
	if len(responses) != inst.Items {
		return Result{}, shared.InvalidArgument(domainName, "Score",
			"%s expects %d responses, got %d", kind, inst.Items, len(responses))
	}

	total := 0
	for i, r := range responses {
		if r < MinResponse || r > MaxResponse {
			return Result{}, shared.InvalidArgument(domainName, "Score",
				"response %d must be between %d and %d, got %d", i+1, MinResponse, MaxResponse, r)
		}
		total += r
	}

	sev := inst.severity(total)
	followUp := sev == SeveritySevere
	if kind == KindPHQ9 && responses[phq9SelfHarmItem] > 0 {
		followUp = true
	}

	stored := make([]int, len(responses))
	copy(stored, responses)

	return Result{
		Kind:          kind,
		Score:         total,
		MaxScore:      inst.MaxScore(),
		Severity:      sev,
		NeedsFollowUp: followUp,
		Responses:     stored,
	}, nil
}

// NewResult вычисляет результат и привязывает его к пользователю.
func NewResult(userID shared.UserID, kind Kind, responses []int, now time.Time) (*Result, error) {
	if !userID.IsValid() {
		return nil, shared.NewDomainError(domainName, "NewResult", shared.ErrInvalidID, "user ID must be a UUID")
	}
	res, err := Score(kind, responses)
	if err != nil {
		return nil, err
	}
	res.ID = shared.NewEntityID()
	res.UserID = userID
	res.CompletedAt = now
	return &res, nil
}
