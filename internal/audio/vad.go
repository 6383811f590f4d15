package audio

import "math"

// Classifier scores one chunk of mono s16 PCM with the probability that
// it contains speech.
type Classifier interface {
	Probability(chunk []int16, rate int) float64
}

// energyFloor is the RMS level (full scale = 1.0) at which a chunk scores
// 0.5. Roughly -40 dBFS, quiet room tone on a typical stream.
const energyFloor = 0.01

// EnergyVAD is an RMS-energy voice activity classifier with a slowly
// adapting noise floor. It tracks the ambient level during quiet chunks
// so a noisy source does not pin every chunk above the speech threshold.
type EnergyVAD struct {
	noise float64
}

// NewEnergyVAD creates an energy-based classifier.
func NewEnergyVAD() *EnergyVAD {
	return &EnergyVAD{}
}

// Probability maps the chunk's RMS, relative to the adaptive floor, onto
// (0, 1). Monotonic in energy: silence scores near 0, sustained loud audio
// near 1.
func (v *EnergyVAD) Probability(chunk []int16, _ int) float64 {
	if len(chunk) == 0 {
		return 0
	}

	var sum float64
	for _, s := range chunk {
		f := float64(s) / 32768.0
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(chunk)))

	floor := energyFloor + 2*v.noise
	p := rms / (rms + floor)

	// Adapt the noise estimate only on chunks that look like background,
	// with a slow exponential average so brief pauses inside speech do
	// not raise the floor.
	if p < 0.5 {
		v.noise = 0.95*v.noise + 0.05*rms
	}
	return p
}
