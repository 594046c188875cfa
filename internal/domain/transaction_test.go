package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransaction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		tx      Transaction
		wantErr bool
		errMsg  string
	}{
		{
			name: "Deposit should pass",
			tx: Transaction{
				ID:      uuid.New(),
				AssetID: uuid.New(),
				Amount:  decimal.NewFromInt(400),
				Date:    time.Now(),
			},
			wantErr: false,
		},
		{
			name: "Withdrawal should pass",
			tx: Transaction{
				ID:      uuid.New(),
				AssetID: uuid.New(),
				Amount:  decimal.NewFromInt(-50),
				Date:    time.Now(),
			},
			wantErr: false,
		},
		{
			name: "Zero amount should fail",
			tx: Transaction{
				ID:      uuid.New(),
				AssetID: uuid.New(),
				Amount:  decimal.Zero,
				Date:    time.Now(),
			},
			wantErr: true,
			errMsg:  "cannot be zero",
		},
		{
			name: "Missing asset should fail",
			tx: Transaction{
				ID:     uuid.New(),
				Amount: decimal.NewFromInt(10),
				Date:   time.Now(),
			},
			wantErr: true,
			errMsg:  "must reference an asset",
		},
		{
			name: "Missing date should fail",
			tx: Transaction{
				ID:      uuid.New(),
				AssetID: uuid.New(),
				Amount:  decimal.NewFromInt(10),
			},
			wantErr: true,
			errMsg:  "must have a date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBalancesAt(t *testing.T) {
	assetA := uuid.New()
	assetB := uuid.New()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	txs := []*Transaction{
		{AssetID: assetA, Amount: decimal.NewFromInt(1000), Date: base},
		{AssetID: assetA, Amount: decimal.NewFromInt(-200), Date: base.Add(24 * time.Hour)},
		{AssetID: assetB, Amount: decimal.NewFromInt(50), Date: base.Add(48 * time.Hour)},
	}

	balances := BalancesAt(txs, base.Add(24*time.Hour))

	assert.True(t, balances[assetA].Equal(decimal.NewFromInt(800)), "asset A should include both transactions")
	assert.True(t, balances[assetB].IsZero(), "asset B transaction is after the cut-off")
}
