package alerts_test

import (
	"testing"

	"github.com/illmade-knight/go-device-alerts/pkg/alerts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategory(t *testing.T) {
	testCases := []struct {
		topic    string
		expected alerts.EventCategory
	}{
		{"dev1/pump_status", alerts.PumpStatus},
		{"dev1/status", alerts.ConnectivityStatus},
		{"dev1/other_topic", alerts.Unrecognized},
		{"greenhouse/zone2/pump_status", alerts.PumpStatus},
		{"greenhouse/zone2/status", alerts.ConnectivityStatus},
		{"pump_status", alerts.Unrecognized},
		{"status", alerts.Unrecognized},
		{"", alerts.Unrecognized},
	}

	for _, tc := range testCases {
		t.Run(tc.topic, func(t *testing.T) {
			assert.Equal(t, tc.expected, alerts.Category(tc.topic))
		})
	}
}

func TestDeviceID(t *testing.T) {
	assert.Equal(t, "dev1", alerts.DeviceID("dev1/pump_status"))
	assert.Equal(t, "dev2", alerts.DeviceID("dev2/status"))
	assert.Equal(t, "bare", alerts.DeviceID("bare"))
	assert.Equal(t, "", alerts.DeviceID("/status"))
}

func TestRoute_DecisionTable(t *testing.T) {
	testCases := []struct {
		name         string
		category     alerts.EventCategory
		value        string
		fresh        bool
		expectFire   bool
		expectIntent alerts.IntentType
		expectReason alerts.RouteReason
	}{
		{"pump affirmative fresh", alerts.PumpStatus, "on", true, true, alerts.PumpStart, alerts.ReasonFired},
		{"pump affirmative stale", alerts.PumpStatus, "on", false, false, "", alerts.ReasonStale},
		{"pump negative fresh", alerts.PumpStatus, "off", true, true, alerts.PumpStop, alerts.ReasonFired},
		{"pump negative stale", alerts.PumpStatus, "off", false, false, "", alerts.ReasonStale},
		{"pump ambiguous fresh", alerts.PumpStatus, "weird", true, false, "", alerts.ReasonAmbiguousValue},
		{"pump ambiguous stale", alerts.PumpStatus, "weird", false, false, "", alerts.ReasonAmbiguousValue},
		{"connectivity affirmative fresh", alerts.ConnectivityStatus, "online", true, true, alerts.DeviceOnline, alerts.ReasonFired},
		{"connectivity affirmative stale", alerts.ConnectivityStatus, "online", false, false, "", alerts.ReasonStale},
		{"connectivity negative fresh", alerts.ConnectivityStatus, "offline", true, true, alerts.DeviceOffline, alerts.ReasonFired},
		{"connectivity negative stale still fires", alerts.ConnectivityStatus, "offline", false, true, alerts.DeviceOffline, alerts.ReasonFired},
		{"connectivity ambiguous", alerts.ConnectivityStatus, "weird", true, false, "", alerts.ReasonAmbiguousValue},
		{"unrecognized fresh", alerts.Unrecognized, "on", true, false, "", alerts.ReasonUnrecognizedTopic},
		{"unrecognized stale", alerts.Unrecognized, "off", false, false, "", alerts.ReasonUnrecognizedTopic},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			intent, reason, fired := alerts.Route(tc.category, tc.value, tc.fresh, "dev1")
			assert.Equal(t, tc.expectFire, fired)
			assert.Equal(t, tc.expectIntent, intent)
			assert.Equal(t, tc.expectReason, reason)
		})
	}
}

func TestRoute_Idempotent(t *testing.T) {
	// Routing is a pure function of its inputs.
	for i := 0; i < 3; i++ {
		intent, reason, fired := alerts.Route(alerts.ConnectivityStatus, "offline", false, "dev9")
		require.True(t, fired)
		assert.Equal(t, alerts.DeviceOffline, intent)
		assert.Equal(t, alerts.ReasonFired, reason)
	}
}

func TestRoute_NumericValues(t *testing.T) {
	intent, _, fired := alerts.Route(alerts.PumpStatus, "1", true, "dev2")
	require.True(t, fired)
	assert.Equal(t, alerts.PumpStart, intent)

	intent, _, fired = alerts.Route(alerts.PumpStatus, "0", true, "dev2")
	require.True(t, fired)
	assert.Equal(t, alerts.PumpStop, intent)
}
