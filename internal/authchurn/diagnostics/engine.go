// Package diagnostics turns a merged aggregate into ranked summaries and
// anomaly flags. It runs once, after all partial aggregates are merged.
package diagnostics

import (
	"sort"
	"time"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/aggregate"
)

// Flag names an anomaly.
type Flag string

const (
	FlagSingletonHeavy Flag = "SINGLETON_HEAVY"
	FlagHighP95        Flag = "HIGH_P95"
	FlagChattyEntity   Flag = "CHATTY_ENTITY"
	FlagEntityChurn    Flag = "ENTITY_CHURN"
)

// ChurnLevel grades a mount by its logins-per-entity ratio. A high ratio
// means the same identities keep re-authenticating.
type ChurnLevel string

const (
	LevelNone        ChurnLevel = "none"
	LevelHealthy     ChurnLevel = "healthy"
	LevelMixed       ChurnLevel = "mixed"
	LevelSignificant ChurnLevel = "significant"
	LevelCritical    ChurnLevel = "critical"
)

func churnLevel(loginsPerEntity float64, entities int) ChurnLevel {
	switch {
	case entities == 0:
		return LevelNone
	case loginsPerEntity < 5:
		return LevelHealthy
	case loginsPerEntity < 50:
		return LevelMixed
	case loginsPerEntity < 100:
		return LevelSignificant
	default:
		return LevelCritical
	}
}

// MountSummary is one row of the per-mount table.
type MountSummary struct {
	MountKey         string     `json:"mount_key"`
	MountLabel       string     `json:"mount"`
	Successes        int64      `json:"successful_logins"`
	Failures         int64      `json:"failed_logins"`
	Entities         int        `json:"entities"`
	WorkloadLabels   int        `json:"workload_labels"`
	LoginsPerEntity  float64    `json:"logins_per_entity"`
	EntitiesPerLabel float64    `json:"entities_per_label"`
	Level            ChurnLevel `json:"churn_level"`

	firstSeq uint64
}

// EntityRank is one entity's activity summed over every mount.
type EntityRank struct {
	EntityID    string    `json:"entity_id"`
	DisplayName string    `json:"display_name,omitempty"`
	MountLabel  string    `json:"mount"`
	Mounts      int       `json:"mounts"`
	Logins      int64     `json:"logins"`
	FirstSeen   time.Time `json:"first_seen,omitzero"`
	LastSeen    time.Time `json:"last_seen,omitzero"`
	Flags       []Flag    `json:"flags,omitempty"`

	firstSeq uint64
}

// WorkloadRank is one workload label on one mount.
type WorkloadRank struct {
	MountKey      string `json:"mount_key"`
	MountLabel    string `json:"mount"`
	WorkloadLabel string `json:"workload"`
	Entities      int    `json:"entities"`
	Logins        int64  `json:"logins"`
	Flags         []Flag `json:"flags,omitempty"`

	mountSeq uint64
	firstSeq uint64
}

// Row is the distribution diagnostic for one (mount, workload label) pair.
type Row struct {
	MountKey       string  `json:"mount_key"`
	MountLabel     string  `json:"mount"`
	WorkloadLabel  string  `json:"workload"`
	Entities       int     `json:"entities"`
	Singletons     int     `json:"singletons"`
	SingletonRatio float64 `json:"singleton_ratio"`
	P95            int64   `json:"p95_logins_per_entity"`
	Logins         int64   `json:"logins"`
	Flags          []Flag  `json:"flags,omitempty"`

	mountSeq uint64
	firstSeq uint64
}

// Totals are run-wide counts.
type Totals struct {
	Logins         int64 `json:"successful_logins"`
	Failures       int64 `json:"failed_logins"`
	Entities       int   `json:"entities"`
	Mounts         int   `json:"mounts"`
	WorkloadLabels int   `json:"workload_labels"`
}

// Result is the full diagnostics output.
type Result struct {
	Thresholds   Thresholds     `json:"thresholds"`
	Totals       Totals         `json:"totals"`
	Mounts       []MountSummary `json:"mounts"`
	TopEntities  []EntityRank   `json:"top_entities"`
	TopWorkloads []WorkloadRank `json:"top_workloads"`
	Diagnostics  []Row          `json:"diagnostics"`
}

// Flagged returns the diagnostic rows that carry at least one flag.
func (r *Result) Flagged() []Row {
	var out []Row
	for _, row := range r.Diagnostics {
		if len(row.Flags) > 0 {
			out = append(out, row)
		}
	}
	return out
}

// EntityNamer resolves entity ids to display names.
type EntityNamer interface {
	EntityName(id string) string
}

type Option func(*Engine)

func WithEntityNamer(n EntityNamer) Option {
	return func(e *Engine) { e.namer = n }
}

// Engine computes diagnostics under fixed thresholds.
type Engine struct {
	t     Thresholds
	namer EntityNamer
}

func New(t Thresholds, opts ...Option) (*Engine, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{t: t}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Run computes the result. agg must be the final merged aggregate and is
// only read.
func (e *Engine) Run(agg *aggregate.Aggregator) *Result {
	buckets := agg.Buckets()
	res := &Result{Thresholds: e.t}

	entities := make(map[string]*EntityRank)
	for _, b := range buckets {
		res.Totals.Logins += b.SuccessCount
		res.Totals.Failures += b.FailureCount

		res.Mounts = append(res.Mounts, e.mountSummary(b))
		e.collectEntities(b, entities)

		for label, ls := range b.Labels {
			if len(ls.Entities) == 0 {
				continue
			}
			res.Totals.WorkloadLabels++
			res.TopWorkloads = append(res.TopWorkloads, e.workloadRank(b, label, ls))
			res.Diagnostics = append(res.Diagnostics, e.row(b, label, ls))
		}
	}
	res.Totals.Mounts = len(buckets)
	res.Totals.Entities = len(entities)

	sort.Slice(res.Mounts, func(i, j int) bool {
		a, b := res.Mounts[i], res.Mounts[j]
		if a.Successes != b.Successes {
			return a.Successes > b.Successes
		}
		return a.firstSeq < b.firstSeq
	})

	res.TopEntities = make([]EntityRank, 0, len(entities))
	for _, er := range entities {
		if er.Logins >= e.t.ChattyEntityLogins {
			er.Flags = []Flag{FlagChattyEntity}
		}
		res.TopEntities = append(res.TopEntities, *er)
	}
	sort.Slice(res.TopEntities, func(i, j int) bool {
		a, b := res.TopEntities[i], res.TopEntities[j]
		if a.Logins != b.Logins {
			return a.Logins > b.Logins
		}
		return a.firstSeq < b.firstSeq
	})
	res.TopEntities = capN(res.TopEntities, e.t.TopN)

	sort.Slice(res.TopWorkloads, func(i, j int) bool {
		a, b := res.TopWorkloads[i], res.TopWorkloads[j]
		if a.Entities != b.Entities {
			return a.Entities > b.Entities
		}
		return a.firstSeq < b.firstSeq
	})
	res.TopWorkloads = capN(res.TopWorkloads, e.t.TopN)

	sort.Slice(res.Diagnostics, func(i, j int) bool {
		a, b := res.Diagnostics[i], res.Diagnostics[j]
		if a.Entities != b.Entities {
			return a.Entities > b.Entities
		}
		if a.mountSeq != b.mountSeq {
			return a.mountSeq < b.mountSeq
		}
		return a.firstSeq < b.firstSeq
	})

	return res
}

func (e *Engine) mountSummary(b *aggregate.MountBucket) MountSummary {
	labels := 0
	for _, ls := range b.Labels {
		if len(ls.Entities) > 0 {
			labels++
		}
	}
	n := b.EntityCount()
	lpe := ratio(float64(b.SuccessCount), float64(n))
	return MountSummary{
		MountKey:         b.Key,
		MountLabel:       b.Label,
		Successes:        b.SuccessCount,
		Failures:         b.FailureCount,
		Entities:         n,
		WorkloadLabels:   labels,
		LoginsPerEntity:  lpe,
		EntitiesPerLabel: ratio(float64(n), float64(labels)),
		Level:            churnLevel(lpe, n),
		firstSeq:         b.FirstSeq,
	}
}

func (e *Engine) collectEntities(b *aggregate.MountBucket, into map[string]*EntityRank) {
	for id, es := range b.Entities {
		er, ok := into[id]
		if !ok {
			er = &EntityRank{
				EntityID:   id,
				MountLabel: b.Label,
				FirstSeen:  es.FirstSeen,
				LastSeen:   es.LastSeen,
				firstSeq:   es.FirstSeq,
			}
			if e.namer != nil {
				er.DisplayName = e.namer.EntityName(id)
			}
			into[id] = er
		} else {
			if es.FirstSeq < er.firstSeq {
				er.firstSeq = es.FirstSeq
				er.MountLabel = b.Label
			}
			if !es.FirstSeen.IsZero() && (er.FirstSeen.IsZero() || es.FirstSeen.Before(er.FirstSeen)) {
				er.FirstSeen = es.FirstSeen
			}
			if es.LastSeen.After(er.LastSeen) {
				er.LastSeen = es.LastSeen
			}
		}
		er.Mounts++
		er.Logins += es.Logins
	}
}

func (e *Engine) workloadRank(b *aggregate.MountBucket, label string, ls *aggregate.LabelStats) WorkloadRank {
	wr := WorkloadRank{
		MountKey:      b.Key,
		MountLabel:    b.Label,
		WorkloadLabel: label,
		Entities:      len(ls.Entities),
		Logins:        ls.Logins,
		mountSeq:      b.FirstSeq,
		firstSeq:      ls.FirstSeq,
	}
	if wr.Entities >= e.t.ChurnEntities {
		wr.Flags = []Flag{FlagEntityChurn}
	}
	return wr
}

func (e *Engine) row(b *aggregate.MountBucket, label string, ls *aggregate.LabelStats) Row {
	counts := make([]int64, 0, len(ls.Entities))
	for id := range ls.Entities {
		if es, ok := b.Entities[id]; ok && es.Logins > 0 {
			counts = append(counts, es.Logins)
		}
	}
	singles, sr := singletonRatio(counts)
	p95 := P95(counts)

	r := Row{
		MountKey:       b.Key,
		MountLabel:     b.Label,
		WorkloadLabel:  label,
		Entities:       len(counts),
		Singletons:     singles,
		SingletonRatio: sr,
		P95:            p95,
		Logins:         ls.Logins,
		mountSeq:       b.FirstSeq,
		firstSeq:       ls.FirstSeq,
	}
	if len(counts) > 0 && sr >= e.t.SingletonRatio {
		r.Flags = append(r.Flags, FlagSingletonHeavy)
	}
	if p95 >= e.t.P95Logins {
		r.Flags = append(r.Flags, FlagHighP95)
	}
	return r
}

func capN[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
