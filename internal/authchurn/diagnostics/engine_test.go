package diagnostics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/aggregate"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/config"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/enrich"
)

type feeder struct {
	agg *aggregate.Aggregator
	seq uint64
}

func newFeeder() *feeder { return &feeder{agg: aggregate.New()} }

func (f *feeder) ok(mount, entity, label string, times int) {
	for i := 0; i < times; i++ {
		f.seq++
		f.agg.Observe(enrich.LoginEvent{
			Seq:           f.seq,
			Time:          time.Unix(int64(f.seq), 0).UTC(),
			MountKey:      mount,
			MountLabel:    "auth/" + mount,
			Success:       true,
			EntityID:      entity,
			WorkloadLabel: label,
		})
	}
}

func (f *feeder) fail(mount string, times int) {
	for i := 0; i < times; i++ {
		f.seq++
		f.agg.Observe(enrich.LoginEvent{Seq: f.seq, MountKey: mount, MountLabel: "auth/" + mount})
	}
}

func mustEngine(t *testing.T, th Thresholds, opts ...Option) *Engine {
	t.Helper()
	e, err := New(th, opts...)
	require.NoError(t, err)
	return e
}

func TestRun_SingletonHeavyScenario(t *testing.T) {
	f := newFeeder()
	for i := 0; i < 80; i++ {
		f.ok("kubernetes", fmt.Sprintf("pod-%d", i), "payments/api", 1)
	}
	f.ok("kubernetes", "steady-a", "payments/api", 10)
	f.ok("kubernetes", "steady-b", "payments/api", 10)

	res := mustEngine(t, DefaultThresholds()).Run(f.agg)

	require.Len(t, res.Diagnostics, 1)
	row := res.Diagnostics[0]
	assert.Equal(t, "payments/api", row.WorkloadLabel)
	assert.Equal(t, 82, row.Entities)
	assert.Equal(t, 80, row.Singletons)
	assert.InDelta(t, 80.0/82.0, row.SingletonRatio, 1e-9)
	assert.Equal(t, int64(1), row.P95)
	assert.Equal(t, []Flag{FlagSingletonHeavy}, row.Flags)
	assert.Len(t, res.Flagged(), 1)

	require.Len(t, res.TopWorkloads, 1)
	assert.Equal(t, 82, res.TopWorkloads[0].Entities)
	assert.Equal(t, []Flag{FlagEntityChurn}, res.TopWorkloads[0].Flags)

	require.Len(t, res.Mounts, 1)
	m := res.Mounts[0]
	assert.Equal(t, int64(100), m.Successes)
	assert.Equal(t, 82, m.Entities)
	assert.Equal(t, 1, m.WorkloadLabels)
	assert.InDelta(t, 100.0/82.0, m.LoginsPerEntity, 1e-9)
	assert.Equal(t, LevelHealthy, m.Level)
}

func TestRun_HighP95(t *testing.T) {
	f := newFeeder()
	for i := 0; i < 10; i++ {
		f.ok("kubernetes", fmt.Sprintf("e-%d", i), "batch/worker", 12)
	}
	res := mustEngine(t, DefaultThresholds()).Run(f.agg)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, int64(12), res.Diagnostics[0].P95)
	assert.Equal(t, []Flag{FlagHighP95}, res.Diagnostics[0].Flags)
}

func TestRun_SingletonBoundary(t *testing.T) {
	f := newFeeder()
	for i := 0; i < 4; i++ {
		f.ok("m", fmt.Sprintf("one-%d", i), "ns/sa", 1)
	}
	f.ok("m", "two", "ns/sa", 2)

	th := DefaultThresholds()
	res := mustEngine(t, th).Run(f.agg)
	assert.Equal(t, []Flag{FlagSingletonHeavy}, res.Diagnostics[0].Flags, "ratio 0.8 meets the threshold")

	th.SingletonRatio = 0.81
	res = mustEngine(t, th).Run(f.agg)
	assert.Empty(t, res.Diagnostics[0].Flags)
	assert.Empty(t, res.Flagged())
}

func TestRun_ChattyEntitiesAcrossMounts(t *testing.T) {
	f := newFeeder()
	f.ok("east", "chatty", "ns/a", 150)
	f.ok("west", "chatty", "ns/a", 60)
	f.ok("east", "quiet", "ns/b", 3)

	res := mustEngine(t, DefaultThresholds()).Run(f.agg)
	require.Len(t, res.TopEntities, 2)

	top := res.TopEntities[0]
	assert.Equal(t, "chatty", top.EntityID)
	assert.Equal(t, int64(210), top.Logins)
	assert.Equal(t, 2, top.Mounts)
	assert.Equal(t, "auth/east", top.MountLabel)
	assert.Equal(t, []Flag{FlagChattyEntity}, top.Flags)
	assert.Equal(t, time.Unix(1, 0).UTC(), top.FirstSeen)
	assert.Equal(t, time.Unix(210, 0).UTC(), top.LastSeen)

	assert.Empty(t, res.TopEntities[1].Flags)
	assert.Equal(t, 2, res.Totals.Entities)
	assert.Equal(t, int64(213), res.Totals.Logins)
}

func TestRun_TiesBrokenByFirstSeen(t *testing.T) {
	f := newFeeder()
	f.ok("m", "b-first", "ns/x", 5)
	f.ok("m", "a-second", "ns/y", 5)

	res := mustEngine(t, DefaultThresholds()).Run(f.agg)
	assert.Equal(t, "b-first", res.TopEntities[0].EntityID)
	assert.Equal(t, "a-second", res.TopEntities[1].EntityID)
	assert.Equal(t, "ns/x", res.TopWorkloads[0].WorkloadLabel)
}

func TestRun_TopNCap(t *testing.T) {
	f := newFeeder()
	for i := 0; i < 30; i++ {
		f.ok("m", fmt.Sprintf("e-%02d", i), fmt.Sprintf("ns/sa-%02d", i), i+1)
	}
	th := DefaultThresholds()
	th.TopN = 5
	res := mustEngine(t, th).Run(f.agg)

	assert.Len(t, res.TopEntities, 5)
	assert.Len(t, res.TopWorkloads, 5)
	assert.Len(t, res.Diagnostics, 30)
	assert.Equal(t, "e-29", res.TopEntities[0].EntityID)

	th.TopN = 0
	res = mustEngine(t, th).Run(f.agg)
	assert.Len(t, res.TopEntities, 30)
}

func TestRun_ZeroEntityMountsAndLabels(t *testing.T) {
	f := newFeeder()
	f.fail("broken", 7)
	f.ok("noentity", "", "ns/sa", 3)

	res := mustEngine(t, DefaultThresholds()).Run(f.agg)
	assert.Empty(t, res.Diagnostics)
	assert.Empty(t, res.TopWorkloads)
	assert.Empty(t, res.TopEntities)
	require.Len(t, res.Mounts, 2)

	for _, m := range res.Mounts {
		assert.Zero(t, m.Entities)
		assert.Zero(t, m.LoginsPerEntity)
		assert.Zero(t, m.EntitiesPerLabel)
		assert.Equal(t, LevelNone, m.Level)
	}
	assert.Equal(t, "noentity", res.Mounts[0].MountKey, "more successes sort first")
	assert.Equal(t, int64(7), res.Totals.Failures)
}

func TestRun_EmptyAggregate(t *testing.T) {
	res := mustEngine(t, DefaultThresholds()).Run(aggregate.New())
	assert.Empty(t, res.Mounts)
	assert.Empty(t, res.Flagged())
	assert.Equal(t, Totals{}, res.Totals)
}

type staticNamer map[string]string

func (s staticNamer) EntityName(id string) string { return s[id] }

func TestRun_EntityNamer(t *testing.T) {
	f := newFeeder()
	f.ok("m", "ent-1", "ns/sa", 1)
	res := mustEngine(t, DefaultThresholds(), WithEntityNamer(staticNamer{"ent-1": "payments-api"})).Run(f.agg)
	assert.Equal(t, "payments-api", res.TopEntities[0].DisplayName)
}

func TestChurnLevel(t *testing.T) {
	assert.Equal(t, LevelNone, churnLevel(0, 0))
	assert.Equal(t, LevelHealthy, churnLevel(4.9, 10))
	assert.Equal(t, LevelMixed, churnLevel(5, 10))
	assert.Equal(t, LevelSignificant, churnLevel(50, 10))
	assert.Equal(t, LevelCritical, churnLevel(100, 10))
}

func TestNew_InvalidThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.SingletonRatio = 1.2
	th.TopN = -1
	_, err := New(th)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidThresholds))
	assert.Contains(t, err.Error(), "singleton ratio")
	assert.Contains(t, err.Error(), "top-n")
}

func TestFromConfig(t *testing.T) {
	th := FromConfig(config.Default().Thresholds)
	assert.Equal(t, DefaultThresholds(), th)
}
