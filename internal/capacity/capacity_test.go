package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiezrad/backend/internal/models"
)

func TestWorkshopUsesFixedCapacity(t *testing.T) {
	cap12 := 12
	ea := &models.EventAccess{WorkshopCapacity: &cap12, GuideCounts: map[string]int{}}
	got := For(models.WorkshopLevel, ea)
	require.NotNil(t, got)
	assert.Equal(t, 12, *got)
}

func TestWorkshopWithoutCapacityIsUncapped(t *testing.T) {
	ea := &models.EventAccess{GuideCounts: map[string]int{}}
	assert.Nil(t, For(models.WorkshopLevel, ea))
}

func TestRideLevelScalesWithGuides(t *testing.T) {
	ea := &models.EventAccess{GuideCounts: map[string]int{"mellow": 1, "spicy": 3}}

	got := For("mellow", ea)
	require.NotNil(t, got)
	assert.Equal(t, PlacesPerGuide, *got)

	got = For("spicy", ea)
	require.NotNil(t, got)
	assert.Equal(t, 3*PlacesPerGuide, *got)
}

func TestLevelWithoutGuidesIsSoldOutNotUncapped(t *testing.T) {
	ea := &models.EventAccess{GuideCounts: map[string]int{"mellow": 1}}
	got := For("gravel", ea)
	require.NotNil(t, got)
	assert.Equal(t, 0, *got)
}
