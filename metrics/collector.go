// Package metrics provides per-run metrics collection for the deployment
// pipeline.
//
// The Collector accumulates counters during a single deployment run. It is a
// leaf package with no internal dependencies. Hash workers increment counters
// concurrently; network stages record their counts once after each batched
// call completes.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all pipeline metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Scan
	FilesScanned int64
	FilesIgnored int64

	// Hash
	FilesHashed int64
	BytesHashed int64
	DedupHits   int64

	// Diff + upload
	KeysTotal        int64
	KeysMissing      int64
	PayloadsUploaded int64
	BytesUploaded    int64
	UnsuccessfulKeys int64

	// Side effects (never fail the run, still counted)
	JournalFailures  int64
	NotifierFailures int64

	// Dimensions (informational, set at construction)
	RunID   string
	Project string
	Backend string
}

// Collector accumulates metrics during a single deployment run.
// Thread-safe via sync.Mutex. All recording methods are nil-receiver safe,
// so callers may pass a nil Collector to disable metrics entirely.
type Collector struct {
	mu sync.Mutex

	filesScanned int64
	filesIgnored int64

	filesHashed int64
	bytesHashed int64
	dedupHits   int64

	keysTotal        int64
	keysMissing      int64
	payloadsUploaded int64
	bytesUploaded    int64
	unsuccessfulKeys int64

	journalFailures  int64
	notifierFailures int64

	runID   string
	project string
	backend string
}

// NewCollector creates a Collector with dimension labels.
// backend names the artifact store implementation ("api" or "s3").
func NewCollector(runID, project, backend string) *Collector {
	return &Collector{
		runID:   runID,
		project: project,
		backend: backend,
	}
}

// AddScanned records the scan stage result: n files kept, ignored files pruned.
func (c *Collector) AddScanned(kept, ignored int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesScanned += kept
	c.filesIgnored += ignored
	c.mu.Unlock()
}

// IncFileHashed records one hashed file and its size.
// Called concurrently from hash workers.
func (c *Collector) IncFileHashed(bytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesHashed++
	c.bytesHashed += bytes
	c.mu.Unlock()
}

// IncDedupHit records a file whose content key was already produced by
// another path in the same run.
func (c *Collector) IncDedupHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.dedupHits++
	c.mu.Unlock()
}

// SetKeyCounts records the diff-check result once per run.
func (c *Collector) SetKeyCounts(total, missing int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.keysTotal = total
	c.keysMissing = missing
	c.mu.Unlock()
}

// AddUploaded records the upload batch result once per run.
func (c *Collector) AddUploaded(payloads, bytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.payloadsUploaded += payloads
	c.bytesUploaded += bytes
	c.mu.Unlock()
}

// SetUnsuccessfulKeys records the number of keys the store rejected.
// Any non-zero value means the run failed.
func (c *Collector) SetUnsuccessfulKeys(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.unsuccessfulKeys = n
	c.mu.Unlock()
}

// IncJournalFailure records a failed history append.
func (c *Collector) IncJournalFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.journalFailures++
	c.mu.Unlock()
}

// IncNotifierFailure records a notifier publish failure.
func (c *Collector) IncNotifierFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.notifierFailures++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		FilesScanned: c.filesScanned,
		FilesIgnored: c.filesIgnored,

		FilesHashed: c.filesHashed,
		BytesHashed: c.bytesHashed,
		DedupHits:   c.dedupHits,

		KeysTotal:        c.keysTotal,
		KeysMissing:      c.keysMissing,
		PayloadsUploaded: c.payloadsUploaded,
		BytesUploaded:    c.bytesUploaded,
		UnsuccessfulKeys: c.unsuccessfulKeys,

		JournalFailures:  c.journalFailures,
		NotifierFailures: c.notifierFailures,

		RunID:   c.runID,
		Project: c.project,
		Backend: c.backend,
	}
}
