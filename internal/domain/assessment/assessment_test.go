package assessment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// fill возвращает n ответов, сумма которых равна total (по возможности).
func fill(n, total int) []int {
	out := make([]int, n)
	for i := 0; i < n && total > 0; i++ {
		v := total
		if v > MaxResponse {
			v = MaxResponse
		}
		out[i] = v
		total -= v
	}
	return out
}

func TestScore_PHQ9Bands(t *testing.T) {
	cases := []struct {
		total int
		want  Severity
	}{
		{0, SeverityMinimal},
		{4, SeverityMinimal},
		{5, SeverityMild},
		{9, SeverityMild},
		{10, SeverityModerate},
		{14, SeverityModerate},
		{15, SeverityModeratelySevere},
		{19, SeverityModeratelySevere},
		{20, SeveritySevere},
		{24, SeveritySevere},
	}
	for _, tc := range cases {
		// девятый вопрос оставляем нулевым, чтобы не включать NeedsFollowUp
		responses := append(fill(8, tc.total), 0)
		res, err := Score(KindPHQ9, responses)
		require.NoError(t, err)
		assert.Equal(t, tc.total, res.Score)
		assert.Equal(t, tc.want, res.Severity, "score %d", tc.total)
		assert.Equal(t, 27, res.MaxScore)
	}
}

func TestScore_GAD7Bands(t *testing.T) {
	cases := []struct {
		total int
		want  Severity
	}{
		{0, SeverityMinimal},
		{4, SeverityMinimal},
		{5, SeverityMild},
		{9, SeverityMild},
		{10, SeverityModerate},
		{14, SeverityModerate},
		{15, SeveritySevere},
		{21, SeveritySevere},
	}
	for _, tc := range cases {
		res, err := Score(KindGAD7, fill(7, tc.total))
		require.NoError(t, err)
		assert.Equal(t, tc.total, res.Score)
		assert.Equal(t, tc.want, res.Severity, "score %d", tc.total)
		assert.Equal(t, 21, res.MaxScore)
	}
}

func TestScore_FollowUp(t *testing.T) {
	responses := []int{0, 0, 0, 0, 0, 0, 0, 0, 1}
	res, err := Score(KindPHQ9, responses)
	require.NoError(t, err)
	assert.Equal(t, SeverityMinimal, res.Severity)
	assert.True(t, res.NeedsFollowUp)

	// severe band without item 9
	res, err = Score(KindPHQ9, []int{3, 3, 3, 3, 3, 3, 2, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, SeveritySevere, res.Severity)
	assert.True(t, res.NeedsFollowUp)

	res, err = Score(KindGAD7, []int{3, 3, 3, 3, 3, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, SeveritySevere, res.Severity)
	assert.True(t, res.NeedsFollowUp)

	res, err = Score(KindGAD7, []int{1, 1, 1, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.False(t, res.NeedsFollowUp)
}

func TestScore_Invalid(t *testing.T) {
	_, err := Score(KindGAD7, []int{1, 2})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = Score(KindGAD7, []int{0, 0, 0, 0, 0, 0, 4})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = Score(KindGAD7, []int{0, 0, 0, -1, 0, 0, 0})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = Score(Kind("bdi"), nil)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("PHQ-9")
	require.NoError(t, err)
	assert.Equal(t, KindPHQ9, k)

	k, err = ParseKind("gad7")
	require.NoError(t, err)
	assert.Equal(t, KindGAD7, k)

	_, err = ParseKind("mmpi")
	assert.Error(t, err)
}

func TestNewResult(t *testing.T) {
	now := time.Now().UTC()
	responses := []int{1, 1, 1, 1, 1, 1, 1}

	res, err := NewResult("0b8e5f52-5d7e-4c49-9a3e-3f4a5f8d2c11", KindGAD7, responses, now)
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 7, res.Score)
	assert.Equal(t, now, res.CompletedAt)

	// ответы копируются
	responses[0] = 3
	assert.Equal(t, 1, res.Responses[0])

	_, err = NewResult("bad", KindGAD7, responses, now)
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}
