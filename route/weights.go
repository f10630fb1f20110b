package route

// Component names one factor of the confidence score.
type Component string

const (
	ComponentDistance  Component = "distance"
	ComponentJumps     Component = "jumps"
	ComponentDensity   Component = "density"
	ComponentProximity Component = "proximity"
	ComponentElevation Component = "elevation"
	ComponentFidelity  Component = "fidelity"
	ComponentAgreement Component = "agreement"
)

// Components lists every component in report order.
var Components = []Component{
	ComponentDistance,
	ComponentJumps,
	ComponentDensity,
	ComponentProximity,
	ComponentElevation,
	ComponentFidelity,
	ComponentAgreement,
}

// Weights maps each component to its share of the overall score. The shares
// of one Weights value sum to 1.
type Weights map[Component]float64

// weightTiers is ordered from most to least evidence; the first tier whose
// minCandidates is satisfied applies.
var weightTiers = []struct {
	minCandidates int
	weights       Weights
}{
	{3, Weights{
		ComponentDistance:  0.18,
		ComponentJumps:     0.13,
		ComponentDensity:   0.18,
		ComponentProximity: 0.13,
		ComponentElevation: 0.13,
		ComponentFidelity:  0.13,
		ComponentAgreement: 0.12,
	}},
	{2, evenWeights(0.18, 0.82)},
	{0, evenWeights(0.25, 0.75)},
}

// evenWeights gives agreement its own share and splits rest evenly over the
// other components.
func evenWeights(agreement, rest float64) Weights {
	w := Weights{ComponentAgreement: agreement}
	share := rest / float64(len(Components)-1)
	for _, c := range Components {
		if c != ComponentAgreement {
			w[c] = share
		}
	}
	return w
}

// WeightsFor returns the component weights for the number of accepted
// candidates. Fewer candidates means less cross-source evidence, so the
// agreement factor carries more weight.
func WeightsFor(candidateCount int) Weights {
	for _, tier := range weightTiers {
		if candidateCount >= tier.minCandidates {
			out := make(Weights, len(tier.weights))
			for c, w := range tier.weights {
				out[c] = w
			}
			return out
		}
	}
	return nil
}
