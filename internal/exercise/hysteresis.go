package exercise

// hysteresis drives the open/closed stage machine of rep-based exercises.
// Angles between closed and open hold the current stage.
type hysteresis struct {
	open   float64
	closed float64
}

// next returns the stage after observing angle, and whether a rep just
// completed. A rep completes only on the closed to open transition.
func (h hysteresis) next(stage Stage, angle float64) (Stage, bool) {
	switch {
	case angle > h.open:
		return StageOpen, stage == StageClosed
	case angle < h.closed:
		return StageClosed, false
	}
	return stage, false
}
