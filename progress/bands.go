package progress

// Phase represents a stage in the pull lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSimpleDiscovery
	PhaseMetaDiscovery
	PhaseDownloading
	PhaseCopying
	PhaseDone
	PhaseFailed
)

// String returns the phase name for logs and tests.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSimpleDiscovery:
		return "simple-discovery"
	case PhaseMetaDiscovery:
		return "meta-discovery"
	case PhaseDownloading:
		return "downloading"
	case PhaseCopying:
		return "copying"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Event describes a single combined-progress update.
type Event struct {
	Phase   Phase
	Percent int // Combined 0-100 percentage.
}

// Band is one phase's slice of the combined percentage.
type Band struct {
	Floor int
	Width int
}

// Bands maps each active phase to its band. The boundaries encode relative
// cost assumptions (discovery is cheap, download dominates) and are kept
// configurable rather than hard-coded.
type Bands struct {
	SimpleDiscovery Band
	MetaDiscovery   Band
	Downloading     Band
	Copying         Band
}

// DefaultBands carries the historical 0/50/55/95 boundaries.
func DefaultBands() Bands {
	return Bands{
		SimpleDiscovery: Band{Floor: 0, Width: 50},
		MetaDiscovery:   Band{Floor: 50, Width: 5},
		Downloading:     Band{Floor: 55, Width: 40},
		Copying:         Band{Floor: 95, Width: 5},
	}
}

// Combined rescales a job's own 0-100 progress into the band owned by
// phase: the band floor plus the linearly rescaled remainder. Copying has
// no underlying job and stays at its floor until completion.
func (b Bands) Combined(phase Phase, jobPercent int) int {
	if jobPercent < 0 {
		jobPercent = 0
	}
	if jobPercent > 100 {
		jobPercent = 100
	}
	var band Band
	switch phase {
	case PhaseSimpleDiscovery:
		band = b.SimpleDiscovery
	case PhaseMetaDiscovery:
		band = b.MetaDiscovery
	case PhaseDownloading:
		band = b.Downloading
	case PhaseCopying:
		return b.Copying.Floor
	default:
		return 0
	}
	return band.Floor + jobPercent*band.Width/100
}
