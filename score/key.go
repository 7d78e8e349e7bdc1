package score

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

var pitchClassNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Krumhansl-Kessler probe tone profiles, tonic first
var (
	majorProfile = []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// Key is a tonic pitch class (0=C .. 11=B) and a mode
type Key struct {
	Tonic int  `json:"tonic"`
	Minor bool `json:"minor"`
}

func (k Key) String() string {
	mode := "major"
	if k.Minor {
		mode = "minor"
	}
	return pitchClassNames[((k.Tonic%12)+12)%12] + " " + mode
}

// ReferenceShift returns the smallest transposition (-6..+5 semitones) that
// moves the key to C major or A minor
func (k Key) ReferenceShift() int {
	target := 0
	if k.Minor {
		target = 9
	}
	shift := ((target-k.Tonic)%12 + 12) % 12
	if shift >= 6 {
		shift -= 12
	}
	return shift
}

// KeyFromSignature converts a key signature (sharps positive, flats
// negative) to its key
func KeyFromSignature(accidentals int, minor bool) Key {
	tonic := ((accidentals*7)%12 + 12) % 12
	if minor {
		tonic = (tonic + 9) % 12
	}
	return Key{Tonic: tonic, Minor: minor}
}

// PitchClassHistogram weighs every pitch class by total sounding duration
func PitchClassHistogram(f *Fragment) []float64 {
	hist := make([]float64, 12)
	for _, e := range f.Events {
		for _, n := range e.Notes {
			hist[n.Pitch%12] += n.Duration
		}
	}
	return hist
}

// EstimateKey correlates the pitch class histogram against every rotation
// of the major and minor profiles and returns the best match. A fragment
// without notes is reported as C major.
func EstimateKey(f *Fragment) Key {
	hist := PitchClassHistogram(f)
	best := Key{}
	bestScore := math.Inf(-1)
	rotated := make([]float64, 12)
	for _, minor := range []bool{false, true} {
		profile := majorProfile
		if minor {
			profile = minorProfile
		}
		for tonic := 0; tonic < 12; tonic++ {
			for pc := 0; pc < 12; pc++ {
				rotated[pc] = profile[(pc-tonic+12)%12]
			}
			score := stat.Correlation(hist, rotated, nil)
			if math.IsNaN(score) {
				continue
			}
			if score > bestScore {
				bestScore = score
				best = Key{Tonic: tonic, Minor: minor}
			}
		}
	}
	return best
}

// TransposeToReference returns a copy of f transposed to C major or A minor,
// along with the key it was found in. With trustSignature set, a key
// signature marker takes precedence over estimation. Key markers are not
// carried over since they would misdescribe the transposed pitches.
func TransposeToReference(f *Fragment, trustSignature bool) (*Fragment, Key) {
	k := EstimateKey(f)
	if trustSignature && len(f.Keys) > 0 {
		k = f.Keys[0].Key
	}
	out := f.Clone()
	out.Transpose(k.ReferenceShift())
	out.StripKeys()
	return out, k
}
