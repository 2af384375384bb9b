package analysis

// ProgressFunc receives stage checkpoints. It is called synchronously on the
// goroutine running the analysis and has no effect on the result.
type ProgressFunc func(phase int, percent float32)

var (
	modelCheckpoints    = [...]float32{10, 25, 40, 60, 80, 100}
	fallbackCheckpoints = [...]float32{20, 40, 60, 80, 100}
)

// noImagePhases is the number of evenly spaced steps reported when there
// is no photo to analyze.
const noImagePhases = 9

// progressTracker drops checkpoints that would move the reported
// percentage backwards within one call.
type progressTracker struct {
	fn       ProgressFunc
	high     float32
	reported bool
}

func newProgressTracker(fn ProgressFunc) *progressTracker {
	return &progressTracker{fn: fn}
}

func (p *progressTracker) report(phase int, percent float32) {
	if p.fn == nil {
		return
	}
	if p.reported && percent < p.high {
		return
	}
	p.high = percent
	p.reported = true
	p.fn(phase, percent)
}

func evenCheckpoints(phases int) []float32 {
	out := make([]float32, phases)
	for i := range out {
		out[i] = float32(i+1) * (100 / float32(phases))
	}
	out[phases-1] = 100
	return out
}

func reportAll(p *progressTracker, checkpoints []float32) {
	for phase, pct := range checkpoints {
		p.report(phase, pct)
	}
}
