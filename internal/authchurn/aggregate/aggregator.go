// Package aggregate accumulates classified Kubernetes logins into per-mount
// buckets. An Aggregator is owned by a single goroutine; partial aggregators
// built over disjoint slices of the input are combined with Merge, and the
// result does not depend on how the input was split.
package aggregate

import (
	"sort"
	"time"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/enrich"
)

// EntityStats tracks one entity's successful logins on one mount.
type EntityStats struct {
	Logins    int64
	FirstSeq  uint64
	FirstSeen time.Time
	LastSeen  time.Time
}

// LabelStats tracks one workload label on one mount.
type LabelStats struct {
	// Logins counts successful logins carrying the label, with or without
	// an entity id.
	Logins   int64
	FirstSeq uint64
	Entities map[string]struct{}
}

// MountBucket holds everything observed for one mount key.
type MountBucket struct {
	Key string
	// Label is the display label of the earliest observation.
	Label    string
	FirstSeq uint64

	SuccessCount int64
	FailureCount int64

	// Entities holds every entity id seen on a successful login together
	// with its login count, so the entity set and the per-entity counts
	// always share the same keys.
	Entities map[string]*EntityStats
	Labels   map[string]*LabelStats
}

func newBucket(ev enrich.LoginEvent) *MountBucket {
	return &MountBucket{
		Key:      ev.MountKey,
		Label:    ev.MountLabel,
		FirstSeq: ev.Seq,
		Entities: make(map[string]*EntityStats),
		Labels:   make(map[string]*LabelStats),
	}
}

// EntityCount is the number of distinct entities that logged in successfully.
func (b *MountBucket) EntityCount() int { return len(b.Entities) }

// Aggregator maps mount keys to buckets.
type Aggregator struct {
	buckets map[string]*MountBucket
}

func New() *Aggregator {
	return &Aggregator{buckets: make(map[string]*MountBucket)}
}

// Observe folds one login event into the aggregate.
func (a *Aggregator) Observe(ev enrich.LoginEvent) {
	b, ok := a.buckets[ev.MountKey]
	if !ok {
		b = newBucket(ev)
		a.buckets[ev.MountKey] = b
	} else if ev.Seq < b.FirstSeq {
		b.FirstSeq = ev.Seq
		b.Label = ev.MountLabel
	}

	if !ev.Success {
		b.FailureCount++
		return
	}
	b.SuccessCount++

	if ev.EntityID != "" {
		es, ok := b.Entities[ev.EntityID]
		if !ok {
			es = &EntityStats{FirstSeq: ev.Seq}
			b.Entities[ev.EntityID] = es
		}
		es.Logins++
		if ev.Seq < es.FirstSeq {
			es.FirstSeq = ev.Seq
		}
		es.observeTime(ev.Time)
	}

	if ev.WorkloadLabel != "" {
		ls, ok := b.Labels[ev.WorkloadLabel]
		if !ok {
			ls = &LabelStats{FirstSeq: ev.Seq, Entities: make(map[string]struct{})}
			b.Labels[ev.WorkloadLabel] = ls
		}
		ls.Logins++
		if ev.Seq < ls.FirstSeq {
			ls.FirstSeq = ev.Seq
		}
		if ev.EntityID != "" {
			ls.Entities[ev.EntityID] = struct{}{}
		}
	}
}

func (es *EntityStats) observeTime(t time.Time) {
	if t.IsZero() {
		return
	}
	if es.FirstSeen.IsZero() || t.Before(es.FirstSeen) {
		es.FirstSeen = t
	}
	if t.After(es.LastSeen) {
		es.LastSeen = t
	}
}

// Merge folds other into a. other must not be used afterwards; buckets that
// exist only in other are adopted without copying.
func (a *Aggregator) Merge(other *Aggregator) {
	if other == nil {
		return
	}
	for key, ob := range other.buckets {
		b, ok := a.buckets[key]
		if !ok {
			a.buckets[key] = ob
			continue
		}
		b.merge(ob)
	}
	other.buckets = nil
}

func (b *MountBucket) merge(o *MountBucket) {
	if o.FirstSeq < b.FirstSeq {
		b.FirstSeq = o.FirstSeq
		b.Label = o.Label
	}
	b.SuccessCount += o.SuccessCount
	b.FailureCount += o.FailureCount

	for id, oe := range o.Entities {
		e, ok := b.Entities[id]
		if !ok {
			b.Entities[id] = oe
			continue
		}
		e.Logins += oe.Logins
		if oe.FirstSeq < e.FirstSeq {
			e.FirstSeq = oe.FirstSeq
		}
		e.observeTime(oe.FirstSeen)
		e.observeTime(oe.LastSeen)
	}

	for label, ol := range o.Labels {
		l, ok := b.Labels[label]
		if !ok {
			b.Labels[label] = ol
			continue
		}
		l.Logins += ol.Logins
		if ol.FirstSeq < l.FirstSeq {
			l.FirstSeq = ol.FirstSeq
		}
		for id := range ol.Entities {
			l.Entities[id] = struct{}{}
		}
	}
}

// Bucket returns the bucket for a mount key.
func (a *Aggregator) Bucket(key string) (*MountBucket, bool) {
	b, ok := a.buckets[key]
	return b, ok
}

// Buckets returns all buckets ordered by first appearance in the input.
func (a *Aggregator) Buckets() []*MountBucket {
	out := make([]*MountBucket, 0, len(a.buckets))
	for _, b := range a.buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeq < out[j].FirstSeq })
	return out
}

// Len is the number of mounts seen.
func (a *Aggregator) Len() int { return len(a.buckets) }

// Cardinality summarizes the aggregate's size. Memory grows with these
// numbers, never with the number of input lines.
type Cardinality struct {
	Mounts            int   `json:"mounts"`
	MountEntityPairs  int   `json:"mount_entity_pairs"`
	MountLabelPairs   int   `json:"mount_label_pairs"`
	LabelEntityPairs  int   `json:"label_entity_pairs"`
	SuccessfulLogins  int64 `json:"successful_logins"`
	FailedLogins      int64 `json:"failed_logins"`
	DistinctEntityIDs int   `json:"distinct_entity_ids"`
}

func (a *Aggregator) Cardinality() Cardinality {
	c := Cardinality{Mounts: len(a.buckets)}
	seen := make(map[string]struct{})
	for _, b := range a.buckets {
		c.MountEntityPairs += len(b.Entities)
		c.MountLabelPairs += len(b.Labels)
		for _, l := range b.Labels {
			c.LabelEntityPairs += len(l.Entities)
		}
		c.SuccessfulLogins += b.SuccessCount
		c.FailedLogins += b.FailureCount
		for id := range b.Entities {
			seen[id] = struct{}{}
		}
	}
	c.DistinctEntityIDs = len(seen)
	return c
}
