package aggregate

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/enrich"
)

var t0 = time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC)

func login(seq uint64, mount, entity, label string) enrich.LoginEvent {
	return enrich.LoginEvent{
		Seq:           seq,
		Time:          t0.Add(time.Duration(seq) * time.Second),
		MountKey:      mount,
		MountLabel:    "auth/" + mount,
		Success:       true,
		EntityID:      entity,
		WorkloadLabel: label,
	}
}

func failure(seq uint64, mount string) enrich.LoginEvent {
	return enrich.LoginEvent{Seq: seq, MountKey: mount, MountLabel: "auth/" + mount}
}

func TestObserve_SingletonScenario(t *testing.T) {
	a := New()
	var seq uint64
	for i := 0; i < 80; i++ {
		seq++
		a.Observe(login(seq, "kubernetes", fmt.Sprintf("one-%d", i), "payments/api"))
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 10; j++ {
			seq++
			a.Observe(login(seq, "kubernetes", fmt.Sprintf("ten-%d", i), "payments/api"))
		}
	}

	b, ok := a.Bucket("kubernetes")
	require.True(t, ok)
	assert.Equal(t, int64(100), b.SuccessCount)
	assert.Zero(t, b.FailureCount)
	assert.Equal(t, 82, b.EntityCount())
	assert.Equal(t, int64(10), b.Entities["ten-0"].Logins)
	assert.Equal(t, int64(1), b.Entities["one-0"].Logins)

	l := b.Labels["payments/api"]
	require.NotNil(t, l)
	assert.Equal(t, int64(100), l.Logins)
	assert.Len(t, l.Entities, 82)
}

func TestObserve_FailuresDoNotTouchEntities(t *testing.T) {
	a := New()
	a.Observe(failure(1, "kubernetes"))
	a.Observe(failure(2, "kubernetes"))
	a.Observe(login(3, "kubernetes", "e1", "ns/sa"))

	b, _ := a.Bucket("kubernetes")
	assert.Equal(t, int64(2), b.FailureCount)
	assert.Equal(t, int64(1), b.SuccessCount)
	assert.Equal(t, 1, b.EntityCount())
}

func TestObserve_SuccessWithoutEntityOrLabel(t *testing.T) {
	a := New()
	a.Observe(login(1, "kubernetes", "", "ns/sa"))
	a.Observe(login(2, "kubernetes", "e1", ""))

	b, _ := a.Bucket("kubernetes")
	assert.Equal(t, int64(2), b.SuccessCount)
	assert.Equal(t, 1, b.EntityCount())
	require.Contains(t, b.Labels, "ns/sa")
	assert.Equal(t, int64(1), b.Labels["ns/sa"].Logins)
	assert.Empty(t, b.Labels["ns/sa"].Entities)
}

func TestObserve_EarliestLabelWins(t *testing.T) {
	a := New()
	late := login(9, "acc", "e1", "ns/sa")
	late.MountLabel = "auth/renamed"
	early := login(2, "acc", "e1", "ns/sa")
	early.MountLabel = "auth/original"

	a.Observe(late)
	a.Observe(early)

	b, _ := a.Bucket("acc")
	assert.Equal(t, "auth/original", b.Label)
	assert.Equal(t, uint64(2), b.FirstSeq)
	assert.Equal(t, uint64(2), b.Entities["e1"].FirstSeq)
	assert.Equal(t, t0.Add(2*time.Second), b.Entities["e1"].FirstSeen)
	assert.Equal(t, t0.Add(9*time.Second), b.Entities["e1"].LastSeen)
}

func TestBuckets_OrderedByFirstSeen(t *testing.T) {
	a := New()
	a.Observe(login(30, "c", "e", "l"))
	a.Observe(login(10, "a", "e", "l"))
	a.Observe(login(20, "b", "e", "l"))

	var keys []string
	for _, b := range a.Buckets() {
		keys = append(keys, b.Key)
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func randomEvents(r *rand.Rand, n int) []enrich.LoginEvent {
	mounts := []string{"kubernetes", "openshift", "k8s-east"}
	labels := []string{"payments/api", "batch/worker", "(no-ns)/legacy", ""}
	events := make([]enrich.LoginEvent, 0, n)
	for i := 0; i < n; i++ {
		seq := uint64(i + 1)
		m := mounts[r.Intn(len(mounts))]
		if r.Intn(5) == 0 {
			events = append(events, failure(seq, m))
			continue
		}
		entity := ""
		if r.Intn(10) > 0 {
			entity = fmt.Sprintf("ent-%d", r.Intn(40))
		}
		events = append(events, login(seq, m, entity, labels[r.Intn(len(labels))]))
	}
	return events
}

func TestMerge_MatchesSequential(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	events := randomEvents(r, 2000)

	want := New()
	for _, ev := range events {
		want.Observe(ev)
	}

	for trial := 0; trial < 20; trial++ {
		parts := 1 + r.Intn(8)
		partials := make([]*Aggregator, parts)
		for i := range partials {
			partials[i] = New()
		}
		// random assignment, not contiguous ranges
		for _, ev := range events {
			partials[r.Intn(parts)].Observe(ev)
		}
		r.Shuffle(len(partials), func(i, j int) { partials[i], partials[j] = partials[j], partials[i] })

		got := partials[0]
		for _, p := range partials[1:] {
			got.Merge(p)
		}
		require.Equal(t, want.buckets, got.buckets, "trial %d with %d partitions", trial, parts)
	}
}

func TestMerge_Associative(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	events := randomEvents(r, 600)

	build := func(evs []enrich.LoginEvent) *Aggregator {
		a := New()
		for _, ev := range evs {
			a.Observe(ev)
		}
		return a
	}
	x, y, z := events[:200], events[200:400], events[400:]

	left := build(x)
	left.Merge(build(y))
	left.Merge(build(z))

	yz := build(y)
	yz.Merge(build(z))
	right := build(x)
	right.Merge(yz)

	assert.Equal(t, left.buckets, right.buckets)
}

func TestMerge_Nil(t *testing.T) {
	a := New()
	a.Observe(login(1, "m", "e", "l"))
	a.Merge(nil)
	assert.Equal(t, 1, a.Len())
}

func TestCardinality_BoundedByDistinctKeys(t *testing.T) {
	a := New()
	for i := 0; i < 50000; i++ {
		a.Observe(login(uint64(i+1), "kubernetes", fmt.Sprintf("ent-%d", i%10), fmt.Sprintf("ns/sa-%d", i%3)))
	}
	a.Observe(failure(50001, "openshift"))

	c := a.Cardinality()
	assert.Equal(t, 2, c.Mounts)
	assert.Equal(t, 10, c.MountEntityPairs)
	assert.Equal(t, 3, c.MountLabelPairs)
	assert.Equal(t, 10, c.DistinctEntityIDs)
	assert.Equal(t, int64(50000), c.SuccessfulLogins)
	assert.Equal(t, int64(1), c.FailedLogins)
}
