package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalog(t *testing.T) {
	cases := []struct {
		planType Type
		price    float64
		students int
		peis     int
		plans    int
		premium  bool
	}{
		{Fit, 249.00, 5, 5, 20, false},
		{Basic, 399.00, 10, 10, 40, false},
		{Premium, 697.00, 20, 20, 100, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.planType), func(t *testing.T) {
			cfg, ok := Get(tc.planType)
			assert.True(t, ok)
			assert.Equal(t, tc.price, cfg.Price)
			assert.Equal(t, tc.students, cfg.Limits.MaxStudents)
			assert.Equal(t, tc.peis, cfg.Limits.MaxPeiPerTrimester)
			assert.Equal(t, tc.plans, cfg.Limits.MaxWeeklyPlans)
			assert.Equal(t, tc.premium, cfg.Features.PremiumSupport)
		})
	}
}

func TestPlusIsNotCatalogued(t *testing.T) {
	_, ok := Get(Plus)
	assert.False(t, ok)
	assert.False(t, Valid(Plus))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(Basic))
	assert.False(t, Valid(Type("GOLD")))
}
