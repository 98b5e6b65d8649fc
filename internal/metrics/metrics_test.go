package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if documentsDiscoveredTotal == nil || fetchRetriesTotal == nil ||
		cycleDurationSeconds == nil || alertsDispatchedTotal == nil ||
		httpRequestsTotal == nil || httpRequestDuration == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveDiscovered("bills", 5, 2)
	if val := testutil.ToFloat64(documentsDiscoveredTotal.WithLabelValues("bills")); val != 5 {
		t.Errorf("expected 5 discovered documents, got %f", val)
	}
	if val := testutil.ToFloat64(documentsNewTotal.WithLabelValues("bills")); val != 2 {
		t.Errorf("expected 2 new documents, got %f", val)
	}

	ObserveFetchRetry("parliament.tas.gov.au")
	ObserveFetchFailure("parliament.tas.gov.au")
	if val := testutil.ToFloat64(fetchRetriesTotal.WithLabelValues("parliament.tas.gov.au")); val != 1 {
		t.Errorf("expected 1 retry, got %f", val)
	}

	ObserveAlertDispatched("critical")
	if val := testutil.ToFloat64(alertsDispatchedTotal.WithLabelValues("critical")); val != 1 {
		t.Errorf("expected 1 dispatched alert, got %f", val)
	}

	ObserveCycle(2 * time.Second)
	ObserveHTTPRequest("GET", "/v1/documents", 200, 10*time.Millisecond)
}
