package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    entity.Money
		wantErr error
	}{
		{in: "2.99", want: 299},
		{in: "15", want: 1_500},
		{in: "0.1", want: 10},
		{in: "-3.50", want: -350},
		{in: "0.001", wantErr: entity.ErrTooPrecise},
		{in: "abc", wantErr: entity.ErrInvalidMoney},
		{in: "", wantErr: entity.ErrInvalidMoney},
		{in: "1e20", wantErr: entity.ErrInvalidMoney},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := entity.ParseMoney(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "2.99", entity.Money(299).String())
	assert.Equal(t, "0.05", entity.Money(5).String())
	assert.Equal(t, "1500.00", entity.Money(150_000).String())
}

func TestMoney_Fee(t *testing.T) {
	tests := []struct {
		name  string
		price entity.Money
		bps   int64
		want  entity.Money
	}{
		{"no fee", 299, 0, 0},
		{"ten percent rounds up", 299, 1_000, 30},
		{"half rounds to even down", 25, 1_000, 2},
		{"half rounds to even up", 35, 1_000, 4},
		{"whole", 10_000, 2_000, 2_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee := tt.price.Fee(tt.bps)
			assert.Equal(t, tt.want, fee)
			assert.GreaterOrEqual(t, tt.price-fee, entity.Money(0))
		})
	}
}
