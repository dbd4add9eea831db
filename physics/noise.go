package physics

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// noiseSeed is fixed so that separating coincident nodes is reproducible
const noiseSeed = 20240917

var pairNoise = opensimplex.New(noiseSeed)

// pairAngle returns an angle in [0, 2π) for a node pair. Sampling away from
// lattice points keeps neighboring pairs from sharing a direction.
func pairAngle(i, j int) float64 {
	v := pairNoise.Eval2(float64(i)*0.618+0.5, float64(j)*0.382+0.25)
	angle := math.Pi * (1 + v)
	if angle < 0 || angle >= 2*math.Pi {
		angle = math.Mod(angle+2*math.Pi, 2*math.Pi)
	}
	return angle
}
