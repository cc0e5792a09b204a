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

	if fetchAttemptsTotal == nil || chaptersScrapedTotal == nil ||
		extractionItemsTotal == nil || jobTransitionsTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveFetch(t *testing.T) {
	Init()

	ObserveFetch("render_api", "success", 10)
	ObserveFetch("render_api", "success", 10)
	ObserveFetch("local", "failure", 0)

	if val := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("render_api", "success")); val != 2 {
		t.Errorf("Expected fetchAttemptsTotal for render_api/success to be 2, got %f", val)
	}
	if val := testutil.ToFloat64(fetchCostUnitsTotal.WithLabelValues("render_api")); val != 20 {
		t.Errorf("Expected fetchCostUnitsTotal for render_api to be 20, got %f", val)
	}
	if val := testutil.ToFloat64(fetchCostUnitsTotal.WithLabelValues("local")); val != 0 {
		t.Errorf("Expected fetchCostUnitsTotal for local to be 0, got %f", val)
	}
}

func TestObserveItems(t *testing.T) {
	Init()

	ObserveItems("zone", "high", 3)
	ObserveItems("zone", "high", 0)

	if val := testutil.ToFloat64(extractionItemsTotal.WithLabelValues("zone", "high")); val != 3 {
		t.Errorf("Expected extractionItemsTotal for zone/high to be 3, got %f", val)
	}
}

func TestObserveTransitionAndStage(t *testing.T) {
	Init()

	ObserveTransition("scraping")
	ObserveStage("scrape", 2*time.Second)

	if val := testutil.ToFloat64(jobTransitionsTotal.WithLabelValues("scraping")); val != 1 {
		t.Errorf("Expected jobTransitionsTotal for scraping to be 1, got %f", val)
	}
	if val := testutil.CollectAndCount(jobStageDurationSeconds); val <= 0 {
		t.Errorf("Expected jobStageDurationSeconds to be observed, got %d", val)
	}
}
