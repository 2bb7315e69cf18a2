package plan

type Type string

const (
	Fit     Type = "FIT"
	Basic   Type = "BASIC"
	Premium Type = "PREMIUM"
	// Plus is negotiated per tenant and intentionally absent from the catalog.
	Plus Type = "PLUS"
)

type Limits struct {
	MaxStudents        int
	MaxPeiPerTrimester int
	MaxWeeklyPlans     int
}

type Features struct {
	PremiumSupport bool
}

type Config struct {
	Price    float64
	Limits   Limits
	Features Features
}

var Catalog = map[Type]Config{
	Fit: {
		Price: 249.00,
		Limits: Limits{
			MaxStudents:        5,
			MaxPeiPerTrimester: 5,
			MaxWeeklyPlans:     20,
		},
		Features: Features{
			PremiumSupport: false,
		},
	},
	Basic: {
		Price: 399.00,
		Limits: Limits{
			MaxStudents:        10,
			MaxPeiPerTrimester: 10,
			MaxWeeklyPlans:     40,
		},
		Features: Features{
			PremiumSupport: false,
		},
	},
	Premium: {
		Price: 697.00,
		Limits: Limits{
			MaxStudents:        20,
			MaxPeiPerTrimester: 20,
			MaxWeeklyPlans:     100,
		},
		Features: Features{
			PremiumSupport: true,
		},
	},
}

// Get looks a plan up in the static catalog. Custom PLUS plans are not
// catalogued; asking for one is a caller error.
func Get(t Type) (Config, bool) {
	cfg, ok := Catalog[t]
	return cfg, ok
}

func Valid(t Type) bool {
	_, ok := Catalog[t]
	return ok
}
