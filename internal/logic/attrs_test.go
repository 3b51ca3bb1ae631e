package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes_FollowsDBTags(t *testing.T) {
	assert.Equal(t, []string{"id", "name", "tier", "rate", "opened"}, Attributes(&account{}))
	assert.True(t, HasAttribute(&account{}, "rate"))
	assert.False(t, HasAttribute(&account{}, "Ignored"))
}

func TestGet_DereferencesPointers(t *testing.T) {
	a := &account{ID: 3, Name: "checking", Rate: f64(1.5)}

	v, ok := Get(a, "rate")
	require.True(t, ok)
	assert.Equal(t, 1.5, v)

	v, ok = Get(a, "tier")
	require.True(t, ok)
	assert.Nil(t, v)

	_, ok = Get(a, "missing")
	assert.False(t, ok)
}

func TestSet_ConvertsAndAllocates(t *testing.T) {
	a := &account{}

	require.NoError(t, Set(a, "rate", 2))
	require.NotNil(t, a.Rate)
	assert.Equal(t, 2.0, *a.Rate)

	require.NoError(t, Set(a, "tier", "gold"))
	assert.Equal(t, "gold", *a.Tier)

	require.NoError(t, Set(a, "tier", str("silver")))
	assert.Equal(t, "silver", *a.Tier)

	require.NoError(t, Set(a, "name", "savings"))
	assert.Equal(t, "savings", a.Name)

	require.NoError(t, Set(a, "rate", nil))
	assert.Nil(t, a.Rate)

	var nilRate *float64
	require.NoError(t, Set(a, "rate", nilRate))
	assert.Nil(t, a.Rate)
}

func TestSet_Errors(t *testing.T) {
	a := &account{}
	assert.Error(t, Set(a, "missing", 1))
	assert.Error(t, Set(a, "rate", "high"))
	assert.Error(t, Set(a, "tier", 65))
}

func TestSnapshot_IsIndependentOfLaterSets(t *testing.T) {
	a := &account{ID: 1, Rate: f64(1)}
	old := Snapshot(a).(*account)

	require.NoError(t, Set(a, "rate", 9.0))
	assert.Equal(t, 1.0, *old.Rate)
	assert.Equal(t, 9.0, *a.Rate)
	assert.NotSame(t, a, old)
}

func TestDiff(t *testing.T) {
	opened := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	old := &account{ID: 1, Name: "a", Rate: f64(1), Opened: &opened}
	sameInstant := opened.In(time.FixedZone("x", 3600))
	cur := &account{ID: 1, Name: "b", Rate: f64(1), Opened: &sameInstant, Tier: str("t")}

	assert.Equal(t, []string{"name", "tier"}, diff(old, cur))
}

func TestRenderMessage(t *testing.T) {
	a := &account{Name: "checking", Rate: f64(2.5)}
	assert.Equal(t, "checking has rate 2.5", renderMessage("{row.name} has rate {rate}", a))
	assert.Equal(t, "tier  unknown {nope}", renderMessage("tier {tier} unknown {nope}", a))
}
