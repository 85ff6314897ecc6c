package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mdblp/health-tracker/schema"
)

func TestParseTab(t *testing.T) {
	assert.Equal(t, TabMedications, ParseTab("medications"))
	assert.Equal(t, TabDashboard, ParseTab("weights"))
	assert.Equal(t, TabDashboard, ParseTab(""))
}

func TestRouteFor(t *testing.T) {
	tests := []struct {
		tab        Tab
		wantStores []StoreSpec
		subtype    schema.Subtype
	}{
		{tab: TabDashboard, wantStores: []StoreSpec{
			{Collection: schema.HealthMetrics, Order: schema.Desc("timestamp")},
			{Collection: schema.Appointments, Order: schema.Asc("date")},
		}},
		{tab: TabBloodPressure, wantStores: []StoreSpec{{Collection: schema.HealthMetrics, Order: schema.Asc("timestamp")}}, subtype: schema.BloodPressureType},
		{tab: TabBloodSugar, wantStores: []StoreSpec{{Collection: schema.HealthMetrics, Order: schema.Asc("timestamp")}}, subtype: schema.BloodSugarType},
		{tab: TabAppointments, wantStores: []StoreSpec{{Collection: schema.Appointments, Order: schema.Asc("date")}}},
		{tab: TabMedications, wantStores: []StoreSpec{{Collection: schema.Medications, Order: schema.Desc("addedAt")}}},
		{tab: TabExport},
		{tab: TabPreview},
	}
	for _, tt := range tests {
		t.Run(string(tt.tab), func(t *testing.T) {
			route := RouteFor(tt.tab)
			assert.Equal(t, tt.tab, route.Tab)
			assert.Equal(t, tt.wantStores, route.Stores)
			assert.Equal(t, tt.subtype, route.Subtype)
			assert.NotEmpty(t, route.Components)
		})
	}
	assert.True(t, RouteFor(TabDashboard).Needs(schema.Appointments))
	assert.False(t, RouteFor(TabExport).Needs(schema.HealthMetrics))
}
