package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stakelend-backend/internal/domain"
)

func TestDurationDays(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		want   int64
	}{
		{"exactly five days", now.Add(5 * 24 * time.Hour), 5},
		{"fractional day truncates", now.Add(5*24*time.Hour + 23*time.Hour), 5},
		{"under one day", now.Add(20 * time.Hour), 0},
		{"expiry in the past", now.Add(-24 * time.Hour), 0},
		{"expiry equals now", now, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DurationDays(now, tt.expiry))
		})
	}
}

func TestComputeSplit(t *testing.T) {
	rates := domain.FeeRates{ProtocolPermille: 50, BrokerPermille: 25}

	t.Run("all parties present", func(t *testing.T) {
		// 5 days at 10 cents/day, protocol 50 permille, affiliate 100 permille
		s := ComputeSplit(50, rates, 100, false, true)
		assert.Equal(t, int64(50), s.LendFeeCents)
		assert.Equal(t, int64(2), s.ProtocolCents)
		assert.Equal(t, int64(0), s.BrokerCents)
		assert.Equal(t, int64(5), s.AffiliateCents)
		assert.Equal(t, int64(43), s.OwnerCents)
	})

	t.Run("no broker no affiliate", func(t *testing.T) {
		s := ComputeSplit(1000, rates, 100, false, false)
		assert.Equal(t, int64(50), s.ProtocolCents)
		assert.Equal(t, int64(0), s.BrokerCents)
		assert.Equal(t, int64(0), s.AffiliateCents)
		assert.Equal(t, int64(950), s.OwnerCents)
	})

	t.Run("broker cut only applies when a broker is present", func(t *testing.T) {
		withBroker := ComputeSplit(1000, rates, 0, true, false)
		without := ComputeSplit(1000, rates, 0, false, false)
		assert.Equal(t, int64(25), withBroker.BrokerCents)
		assert.Equal(t, int64(0), without.BrokerCents)
		assert.Equal(t, without.OwnerCents-25, withBroker.OwnerCents)
	})

	t.Run("rounding dust goes to the owner", func(t *testing.T) {
		// 7 * 33 / 1000 truncates to 0 for every cut
		s := ComputeSplit(7, domain.FeeRates{ProtocolPermille: 33, BrokerPermille: 33}, 33, true, true)
		assert.Equal(t, int64(0), s.ProtocolCents)
		assert.Equal(t, int64(0), s.BrokerCents)
		assert.Equal(t, int64(0), s.AffiliateCents)
		assert.Equal(t, int64(7), s.OwnerCents)
	})

	t.Run("shares always sum to the lend fee", func(t *testing.T) {
		fees := []int64{0, 1, 7, 50, 99, 1000, 12345, 999999}
		for _, fee := range fees {
			s := ComputeSplit(fee, domain.FeeRates{ProtocolPermille: 73, BrokerPermille: 41}, 117, true, true)
			assert.Equal(t, fee, s.ProtocolCents+s.BrokerCents+s.AffiliateCents+s.OwnerCents,
				"fee %d must be conserved", fee)
			assert.GreaterOrEqual(t, s.OwnerCents, int64(0))
		}
	})
}

func TestLendFee(t *testing.T) {
	assert.Equal(t, int64(50), LendFee(5, 10))
	assert.Equal(t, int64(0), LendFee(0, 10))
	assert.Equal(t, int64(0), LendFee(5, 0))
}
