package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	assert.False(t, For(PlanFree).CalendarSync)
	assert.True(t, For(PlanFree).WeatherAware)

	assert.True(t, For(PlanPro).CalendarSync)
	assert.False(t, For(PlanPro).UnlimitedTrips)

	assert.True(t, For(PlanPremium).UnlimitedTrips)
	assert.True(t, For(PlanPremium).CalendarSync)

	assert.Equal(t, For(PlanFree), For("enterprise"), "unknown plans degrade to free")
}

func TestCanCreateTrip(t *testing.T) {
	assert.True(t, CanCreateTrip(PlanFree, 0))
	assert.True(t, CanCreateTrip(PlanFree, FreeTripLimit-1))
	assert.False(t, CanCreateTrip(PlanFree, FreeTripLimit))
	assert.False(t, CanCreateTrip(PlanPro, FreeTripLimit+10), "pro keeps the trip cap")
	assert.True(t, CanCreateTrip(PlanPremium, 100))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(PlanFree))
	assert.True(t, Valid(PlanPro))
	assert.True(t, Valid(PlanPremium))
	assert.False(t, Valid(""))
	assert.False(t, Valid("Free"))
}
