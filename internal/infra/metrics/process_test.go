//go:build !integration

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackPresence(t *testing.T) {
	t.Cleanup(func() { presenceCount.Store(nil) })

	if got := testutil.ToFloat64(presenceConnections); got != 0 {
		t.Fatalf("expected 0 before tracking, got %v", got)
	}

	open := 2
	TrackPresence(func() int { return open })
	if got := testutil.ToFloat64(presenceConnections); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
	open = 5
	if got := testutil.ToFloat64(presenceConnections); got != 5 {
		t.Fatalf("expected gauge to follow the count, got %v", got)
	}
}
