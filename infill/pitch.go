package infill

// diatonic marks the pitch classes of C major / A minor
var diatonic = [12]bool{
	0: true, 2: true, 4: true, 5: true, 7: true, 9: true, 11: true,
}

// IsDiatonic reports whether a pitch is a white key
func IsDiatonic(pitch int) bool {
	return diatonic[((pitch%12)+12)%12]
}

// SnapDiatonic raises a black-key pitch by one semitone. This is an upward
// snap, not nearest-distance: every black key sits a semitone below a white
// one.
func SnapDiatonic(pitch int) int {
	if IsDiatonic(pitch) {
		return pitch
	}
	return pitch + 1
}

// ClampPitch keeps a pitch estimate inside [lo, hi]
func ClampPitch(pitch float64, lo, hi int) float64 {
	return max(float64(lo), min(float64(hi), pitch))
}

// snapWithin snaps upward, or downward when that would leave [lo, hi]
func snapWithin(pitch, lo, hi int) int {
	snapped := SnapDiatonic(pitch)
	if snapped > hi {
		snapped = pitch - 1
	}
	return max(lo, snapped)
}
