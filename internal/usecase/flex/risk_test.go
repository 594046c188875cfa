package flex

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		name      string
		reduction string
		periods   int
		want      RiskLevel
	}{
		{"no reduction", "0", 1, RiskLow},
		{"increase", "-20", 1, RiskLow},
		{"half with many periods", "50", 12, RiskMedium},
		{"above half", "50.01", 12, RiskHigh},
		{"small reduction near deadline", "5", 2, RiskHigh},
		{"small reduction within six periods", "5", 6, RiskMedium},
		{"above a fifth", "21", 24, RiskMedium},
		{"small reduction far away", "10", 24, RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRisk(decimal.RequireFromString(tt.reduction), tt.periods))
		})
	}
}
