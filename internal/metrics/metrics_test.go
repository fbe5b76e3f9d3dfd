package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsRegistered(t *testing.T) {
	collectors := []prometheus.Collector{
		HTTPRequests, HTTPDuration, HTTPInflight,
		LettersDelivered, SweepFailures, SweepDuration,
		NotificationsDispatched, PushFailures,
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err == nil {
			t.Fatalf("expected %T to be registered already", c)
		}
	}
}

func TestNotificationsDispatched_ByType(t *testing.T) {
	base := testutil.ToFloat64(NotificationsDispatched.WithLabelValues("friend_removed"))
	NotificationsDispatched.WithLabelValues("friend_removed").Inc()
	if got := testutil.ToFloat64(NotificationsDispatched.WithLabelValues("friend_removed")); got != base+1 {
		t.Fatalf("expected %v, got %v", base+1, got)
	}
}
