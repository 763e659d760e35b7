package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector provides simple built-in metrics collection with no external dependencies
type Collector struct {
	reconcileMetrics  *ReconcileMetrics
	operationCounters map[string]*int64
	mu                sync.RWMutex
	startTime         time.Time
}

// ReconcileMetrics tracks list reconciliation activity
type ReconcileMetrics struct {
	// Instance lifecycle
	InstancesCreated       int64 `json:"instances_created"`
	InstancesDisposed      int64 `json:"instances_disposed"`
	ActiveInstances        int64 `json:"active_instances"`
	MaxConcurrentInstances int64 `json:"max_concurrent_instances"`

	// Queue flushes
	FlushesProcessed int64 `json:"flushes_processed"`
	QueuedOperations int64 `json:"queued_operations"`
	MaxQueueLength   int64 `json:"max_queue_length"`

	// Item rendering
	TemplatesInstantiated int64 `json:"templates_instantiated"`
	NodesetsReused        int64 `json:"nodesets_reused"`
	ItemsDeleted          int64 `json:"items_deleted"`
	NodesRemoved          int64 `json:"nodes_removed"`

	// Failures routed to the error handler
	RemovalErrors int64 `json:"removal_errors"`
	HookErrors    int64 `json:"hook_errors"`

	// Uptime
	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		reconcileMetrics: &ReconcileMetrics{
			StartTime: time.Now(),
		},
		operationCounters: make(map[string]*int64),
		startTime:         time.Now(),
	}
}

// IncrementInstanceCreated records a new bound instance
func (c *Collector) IncrementInstanceCreated() {
	atomic.AddInt64(&c.reconcileMetrics.InstancesCreated, 1)
	currentActive := atomic.AddInt64(&c.reconcileMetrics.ActiveInstances, 1)
	storeMax(&c.reconcileMetrics.MaxConcurrentInstances, currentActive)
}

// IncrementInstanceDisposed records an instance disposal
func (c *Collector) IncrementInstanceDisposed() {
	atomic.AddInt64(&c.reconcileMetrics.InstancesDisposed, 1)
	atomic.AddInt64(&c.reconcileMetrics.ActiveInstances, -1)
}

// RecordFlush records one processed queue and its length
func (c *Collector) RecordFlush(queueLength int) {
	atomic.AddInt64(&c.reconcileMetrics.FlushesProcessed, 1)
	atomic.AddInt64(&c.reconcileMetrics.QueuedOperations, int64(queueLength))
	storeMax(&c.reconcileMetrics.MaxQueueLength, int64(queueLength))
}

// IncrementTemplateInstantiated records a template clone bound for a new item
func (c *Collector) IncrementTemplateInstantiated() {
	atomic.AddInt64(&c.reconcileMetrics.TemplatesInstantiated, 1)
}

// IncrementNodesetReused records a pending-delete nodeset reused for a move
func (c *Collector) IncrementNodesetReused() {
	atomic.AddInt64(&c.reconcileMetrics.NodesetsReused, 1)
}

// IncrementItemDeleted records a processed deletion
func (c *Collector) IncrementItemDeleted() {
	atomic.AddInt64(&c.reconcileMetrics.ItemsDeleted, 1)
}

// AddNodesRemoved records nodes physically removed from the DOM
func (c *Collector) AddNodesRemoved(n int) {
	atomic.AddInt64(&c.reconcileMetrics.NodesRemoved, int64(n))
}

// IncrementRemovalError records a failed before-remove hook
func (c *Collector) IncrementRemovalError() {
	atomic.AddInt64(&c.reconcileMetrics.RemovalErrors, 1)
}

// IncrementHookError records a failed or panicking user hook
func (c *Collector) IncrementHookError() {
	atomic.AddInt64(&c.reconcileMetrics.HookErrors, 1)
}

// IncrementCustomCounter increments a custom named counter
func (c *Collector) IncrementCustomCounter(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.operationCounters[name]; exists {
		atomic.AddInt64(counter, 1)
	} else {
		var newCounter int64 = 1
		c.operationCounters[name] = &newCounter
	}
}

// GetMetrics returns current reconciliation metrics
func (c *Collector) GetMetrics() ReconcileMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m := c.reconcileMetrics
	return ReconcileMetrics{
		InstancesCreated:       atomic.LoadInt64(&m.InstancesCreated),
		InstancesDisposed:      atomic.LoadInt64(&m.InstancesDisposed),
		ActiveInstances:        atomic.LoadInt64(&m.ActiveInstances),
		MaxConcurrentInstances: atomic.LoadInt64(&m.MaxConcurrentInstances),
		FlushesProcessed:       atomic.LoadInt64(&m.FlushesProcessed),
		QueuedOperations:       atomic.LoadInt64(&m.QueuedOperations),
		MaxQueueLength:         atomic.LoadInt64(&m.MaxQueueLength),
		TemplatesInstantiated:  atomic.LoadInt64(&m.TemplatesInstantiated),
		NodesetsReused:         atomic.LoadInt64(&m.NodesetsReused),
		ItemsDeleted:           atomic.LoadInt64(&m.ItemsDeleted),
		NodesRemoved:           atomic.LoadInt64(&m.NodesRemoved),
		RemovalErrors:          atomic.LoadInt64(&m.RemovalErrors),
		HookErrors:             atomic.LoadInt64(&m.HookErrors),
		StartTime:              m.StartTime,
		Uptime:                 time.Since(c.startTime),
	}
}

// GetCustomCounters returns all custom counters
func (c *Collector) GetCustomCounters() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int64)
	for name, counter := range c.operationCounters {
		result[name] = atomic.LoadInt64(counter)
	}
	return result
}

// Reset resets all metrics to zero
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.reconcileMetrics = &ReconcileMetrics{StartTime: now}
	c.operationCounters = make(map[string]*int64)
	c.startTime = now
}

// ReuseRate returns the percentage of added items served from pending deletes
func (c *Collector) ReuseRate() float64 {
	reused := atomic.LoadInt64(&c.reconcileMetrics.NodesetsReused)
	instantiated := atomic.LoadInt64(&c.reconcileMetrics.TemplatesInstantiated)

	total := reused + instantiated
	if total == 0 {
		return 0.0
	}

	return float64(reused) / float64(total) * 100.0
}

// AverageQueueLength returns the mean number of operations per flush
func (c *Collector) AverageQueueLength() float64 {
	flushes := atomic.LoadInt64(&c.reconcileMetrics.FlushesProcessed)
	if flushes == 0 {
		return 0.0
	}
	return float64(atomic.LoadInt64(&c.reconcileMetrics.QueuedOperations)) / float64(flushes)
}

func storeMax(addr *int64, v int64) {
	for {
		current := atomic.LoadInt64(addr)
		if v <= current {
			return
		}
		if atomic.CompareAndSwapInt64(addr, current, v) {
			return
		}
	}
}
