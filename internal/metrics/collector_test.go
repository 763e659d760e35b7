package metrics

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()

	if collector == nil {
		t.Fatal("NewCollector() returned nil")
	}

	if collector.reconcileMetrics == nil {
		t.Fatal("reconcileMetrics not initialized")
	}

	if collector.operationCounters == nil {
		t.Fatal("operationCounters not initialized")
	}

	metrics := collector.GetMetrics()
	if metrics.FlushesProcessed != 0 {
		t.Errorf("Expected 0 flushes, got %d", metrics.FlushesProcessed)
	}

	if collector.ReuseRate() != 0.0 {
		t.Errorf("Expected initial reuse rate 0.0, got %f", collector.ReuseRate())
	}
}

func TestInstanceLifecycleMetrics(t *testing.T) {
	collector := NewCollector()

	collector.IncrementInstanceCreated()
	collector.IncrementInstanceCreated()
	collector.IncrementInstanceCreated()

	metrics := collector.GetMetrics()
	if metrics.InstancesCreated != 3 {
		t.Errorf("Expected 3 instances created, got %d", metrics.InstancesCreated)
	}

	if metrics.MaxConcurrentInstances != 3 {
		t.Errorf("Expected max concurrent instances 3, got %d", metrics.MaxConcurrentInstances)
	}

	collector.IncrementInstanceDisposed()
	metrics = collector.GetMetrics()

	if metrics.ActiveInstances != 2 {
		t.Errorf("Expected 2 active instances after disposal, got %d", metrics.ActiveInstances)
	}

	// Max concurrent should remain the same
	if metrics.MaxConcurrentInstances != 3 {
		t.Errorf("Expected max concurrent instances to remain 3, got %d", metrics.MaxConcurrentInstances)
	}
}

func TestFlushMetrics(t *testing.T) {
	collector := NewCollector()

	collector.RecordFlush(4)
	collector.RecordFlush(2)

	metrics := collector.GetMetrics()
	if metrics.FlushesProcessed != 2 {
		t.Errorf("Expected 2 flushes, got %d", metrics.FlushesProcessed)
	}
	if metrics.MaxQueueLength != 4 {
		t.Errorf("Expected max queue length 4, got %d", metrics.MaxQueueLength)
	}
	if avg := collector.AverageQueueLength(); avg != 3.0 {
		t.Errorf("Expected average queue length 3.0, got %f", avg)
	}
}

func TestReuseRate(t *testing.T) {
	collector := NewCollector()

	collector.IncrementTemplateInstantiated()
	collector.IncrementTemplateInstantiated()
	collector.IncrementTemplateInstantiated()
	collector.IncrementNodesetReused()

	if rate := collector.ReuseRate(); rate != 25.0 {
		t.Errorf("Expected reuse rate 25%%, got %.1f%%", rate)
	}
}

func TestCustomCounters(t *testing.T) {
	collector := NewCollector()

	collector.IncrementCustomCounter("instance-a")
	collector.IncrementCustomCounter("instance-a")
	collector.IncrementCustomCounter("instance-b")

	counters := collector.GetCustomCounters()
	if counters["instance-a"] != 2 || counters["instance-b"] != 1 {
		t.Errorf("Unexpected counters %v", counters)
	}
}

func TestReset(t *testing.T) {
	collector := NewCollector()
	collector.IncrementInstanceCreated()
	collector.RecordFlush(1)
	collector.AddNodesRemoved(5)
	collector.IncrementCustomCounter("x")

	collector.Reset()

	metrics := collector.GetMetrics()
	if metrics.InstancesCreated != 0 || metrics.FlushesProcessed != 0 || metrics.NodesRemoved != 0 {
		t.Errorf("Expected zeroed metrics after reset, got %+v", metrics)
	}
	if len(collector.GetCustomCounters()) != 0 {
		t.Error("Expected custom counters to be cleared")
	}
}

func TestConcurrentUpdates(t *testing.T) {
	collector := NewCollector()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementTemplateInstantiated()
			collector.IncrementCustomCounter("shared")
		}()
	}
	wg.Wait()

	if got := collector.GetMetrics().TemplatesInstantiated; got != 50 {
		t.Errorf("Expected 50 instantiations, got %d", got)
	}
	if got := collector.GetCustomCounters()["shared"]; got != 50 {
		t.Errorf("Expected shared counter 50, got %d", got)
	}
}

func TestMetricsJSON(t *testing.T) {
	collector := NewCollector()
	collector.IncrementNodesetReused()

	data, err := json.Marshal(collector.GetMetrics())
	if err != nil {
		t.Fatalf("Failed to marshal metrics: %v", err)
	}
	if !strings.Contains(string(data), `"nodesets_reused":1`) {
		t.Errorf("Expected nodesets_reused in JSON, got %s", data)
	}
}
