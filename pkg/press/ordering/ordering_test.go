package ordering

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPlanSwap(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	plan := BuildPlan(2, map[uuid.UUID]int{a: 2, b: 1})

	require.Len(t, plan.Phase1, 2)
	require.Len(t, plan.Phase2, 2)

	// Deterministic order: by requested position.
	assert.Equal(t, b, plan.Phase2[0].ID)
	assert.Equal(t, 1, plan.Phase2[0].Position)
	assert.Equal(t, a, plan.Phase2[1].ID)
	assert.Equal(t, 2, plan.Phase2[1].Position)

	// Placeholders are -(new + offset) with offset = max + 1000.
	assert.Equal(t, -(1 + 1002), plan.Phase1[0].Position)
	assert.Equal(t, -(2 + 1002), plan.Phase1[1].Position)
}

func TestBuildPlanPlaceholdersAreDisjointAndDistinct(t *testing.T) {
	want := map[uuid.UUID]int{}
	for i := 1; i <= 10; i++ {
		want[uuid.New()] = i
	}

	plan := BuildPlan(10, want)

	seen := map[int]bool{}
	for _, w := range plan.Phase1 {
		assert.Negative(t, w.Position)
		assert.False(t, seen[w.Position], "placeholder positions must be distinct")
		seen[w.Position] = true
	}
}

func TestBuildPlanOffsetClearsMaxPosition(t *testing.T) {
	id := uuid.New()

	// Even with a large existing max, placeholders stay clear of every real
	// position.
	plan := BuildPlan(5000, map[uuid.UUID]int{id: 1})
	require.Len(t, plan.Phase1, 1)
	assert.Equal(t, -(1 + 6000), plan.Phase1[0].Position)
}

func TestBuildPlanEmpty(t *testing.T) {
	plan := BuildPlan(3, nil)
	assert.Empty(t, plan.Phase1)
	assert.Empty(t, plan.Phase2)
}
