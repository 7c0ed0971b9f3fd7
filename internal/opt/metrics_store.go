package opt

import (
	"sort"
	"sync"
	"time"
)

type runKey struct {
	Service  string
	PlanDate string
	Variant  string
}

// RunRecord is the latest stats of one (service, date, variant) build.
type RunRecord struct {
	Service    string    `json:"service"`
	PlanDate   string    `json:"planDate"`
	Variant    string    `json:"variant"`
	Stats      RunStats  `json:"stats"`
	RecordedAt time.Time `json:"recordedAt"`
}

var (
	runMu sync.Mutex
	runs  = map[runKey]RunRecord{}
)

// RecordRun keeps the stats of the latest build for the key.
func RecordRun(service, planDate, variant string, s RunStats) {
	runMu.Lock()
	runs[runKey{Service: service, PlanDate: planDate, Variant: variant}] = RunRecord{
		Service: service, PlanDate: planDate, Variant: variant, Stats: s, RecordedAt: time.Now().UTC(),
	}
	runMu.Unlock()
}

// GetRuns returns the recorded builds of a service, optionally filtered by
// date, keyed by variant. An empty planDate matches every date.
func GetRuns(service, planDate string) []RunRecord {
	runMu.Lock()
	defer runMu.Unlock()
	out := []RunRecord{}
	for k, v := range runs {
		if k.Service == service && (planDate == "" || k.PlanDate == planDate) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlanDate != out[j].PlanDate {
			return out[i].PlanDate < out[j].PlanDate
		}
		return out[i].Variant < out[j].Variant
	})
	return out
}

func resetRuns() {
	runMu.Lock()
	runs = map[runKey]RunRecord{}
	runMu.Unlock()
}
