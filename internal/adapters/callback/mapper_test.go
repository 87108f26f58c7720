package callback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polis/internal/policy/models"
	"polis/internal/policy/service"
	dErrors "polis/pkg/domain-errors"
)

func TestMapper(t *testing.T) {
	mapper := New()
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		eventType string
		want      models.Status
	}{
		{"COMPLETED", models.StatusCompletedInInsurance},
		{"PAYED", models.StatusPayed},
		{"REISSUED", models.StatusReissued},
		{"RESCINDED", models.StatusRescinded},
		{"OPERATOR_ERROR", models.StatusOperatorError},
		{"RESTORED", models.StatusRestored},
	}
	for _, tc := range cases {
		t.Run(tc.eventType, func(t *testing.T) {
			info, err := mapper.StatusInfo(service.CallbackInput{
				InsuranceReference: "INS-1",
				GlobalID:           "GID-1",
				EventType:          tc.eventType,
				EventTime:          now,
				Attributes:         map[string]any{"refund_amount": "500"},
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, info.StatusType)
			assert.Equal(t, "INS-1", info.InsuranceReference)
			assert.Equal(t, "GID-1", info.GlobalID)
			assert.Equal(t, now, info.Timestamp)
			assert.Equal(t, "500", info.ExtraAttrs["refund_amount"])
		})
	}

	t.Run("unknown event type", func(t *testing.T) {
		_, err := mapper.StatusInfo(service.CallbackInput{EventType: "EXPIRED"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
