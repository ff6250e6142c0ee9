package api

import "math"

// Impact is the personal summary on the profile screen.
type Impact struct {
	TotalChallenges      int
	InProgressChallenges int
	CompletedChallenges  int
	CO2Saved             int
	PlasticReduced       int
	WaterSaved           int
	TreesPlanted         int
	// Active is the first ongoing challenge, if any.
	Active *UserChallenge
}

// Per-category weights, applied to finished challenges scaled by progress.
const (
	co2PerChallenge     = 2.5
	plasticPerChallenge = 1.8
	waterPerChallenge   = 5
	treesPerChallenge   = 1
)

// ComputeImpact totals a user's joined challenges. Only finished
// challenges count toward the saved amounts, and each amount is floored.
func ComputeImpact(ucs []UserChallenge) Impact {
	var (
		out                        Impact
		co2, plastic, water, trees float64
	)
	out.TotalChallenges = len(ucs)
	for i := range ucs {
		uc := ucs[i]
		switch uc.Status {
		case StatusOngoing:
			out.InProgressChallenges++
			if out.Active == nil {
				out.Active = &ucs[i]
			}
		case StatusFinished:
			out.CompletedChallenges++
		}
		if uc.Status != StatusFinished || uc.Challenge == nil {
			continue
		}
		p := float64(uc.Progress) / 100
		switch uc.Challenge.Category {
		case CategoryEnergyConservation, CategorySustainableTransport:
			co2 += co2PerChallenge * p
		case CategoryWasteReduction:
			plastic += plasticPerChallenge * p
		case CategoryWaterConservation:
			water += waterPerChallenge * p
		case CategoryGreenLiving:
			trees += treesPerChallenge * p
		}
	}
	out.CO2Saved = int(math.Floor(co2))
	out.PlasticReduced = int(math.Floor(plastic))
	out.WaterSaved = int(math.Floor(water))
	out.TreesPlanted = int(math.Floor(trees))
	return out
}
