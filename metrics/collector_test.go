package metrics

import (
	"sync"
	"testing"
)

func TestCollector_RecordingMethods(t *testing.T) {
	c := NewCollector("run-001", "docs-site", "api")

	c.AddScanned(12, 3)
	c.IncFileHashed(100)
	c.IncFileHashed(250)
	c.IncDedupHit()
	c.SetKeyCounts(11, 4)
	c.AddUploaded(4, 350)
	c.IncJournalFailure()
	c.IncNotifierFailure()
	c.IncNotifierFailure()

	s := c.Snapshot()

	if s.FilesScanned != 12 {
		t.Errorf("FilesScanned = %d, want 12", s.FilesScanned)
	}
	if s.FilesIgnored != 3 {
		t.Errorf("FilesIgnored = %d, want 3", s.FilesIgnored)
	}
	if s.FilesHashed != 2 {
		t.Errorf("FilesHashed = %d, want 2", s.FilesHashed)
	}
	if s.BytesHashed != 350 {
		t.Errorf("BytesHashed = %d, want 350", s.BytesHashed)
	}
	if s.DedupHits != 1 {
		t.Errorf("DedupHits = %d, want 1", s.DedupHits)
	}
	if s.KeysTotal != 11 {
		t.Errorf("KeysTotal = %d, want 11", s.KeysTotal)
	}
	if s.KeysMissing != 4 {
		t.Errorf("KeysMissing = %d, want 4", s.KeysMissing)
	}
	if s.PayloadsUploaded != 4 {
		t.Errorf("PayloadsUploaded = %d, want 4", s.PayloadsUploaded)
	}
	if s.BytesUploaded != 350 {
		t.Errorf("BytesUploaded = %d, want 350", s.BytesUploaded)
	}
	if s.JournalFailures != 1 {
		t.Errorf("JournalFailures = %d, want 1", s.JournalFailures)
	}
	if s.NotifierFailures != 2 {
		t.Errorf("NotifierFailures = %d, want 2", s.NotifierFailures)
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("run-42", "marketing", "s3")
	s := c.Snapshot()

	if s.RunID != "run-42" {
		t.Errorf("RunID = %q, want %q", s.RunID, "run-42")
	}
	if s.Project != "marketing" {
		t.Errorf("Project = %q, want %q", s.Project, "marketing")
	}
	if s.Backend != "s3" {
		t.Errorf("Backend = %q, want %q", s.Backend, "s3")
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("run-001", "docs-site", "api")
	c.IncFileHashed(10)

	s1 := c.Snapshot()

	c.IncFileHashed(10)
	c.IncDedupHit()

	if s1.FilesHashed != 1 {
		t.Errorf("s1.FilesHashed = %d, want 1 (snapshot should be frozen)", s1.FilesHashed)
	}
	if s1.DedupHits != 0 {
		t.Errorf("s1.DedupHits = %d, want 0 (snapshot should be frozen)", s1.DedupHits)
	}

	s2 := c.Snapshot()
	if s2.FilesHashed != 2 {
		t.Errorf("s2.FilesHashed = %d, want 2", s2.FilesHashed)
	}
	if s2.DedupHits != 1 {
		t.Errorf("s2.DedupHits = %d, want 1", s2.DedupHits)
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	// None of these should panic
	c.AddScanned(1, 1)
	c.IncFileHashed(10)
	c.IncDedupHit()
	c.SetKeyCounts(5, 2)
	c.AddUploaded(2, 20)
	c.SetUnsuccessfulKeys(1)
	c.IncJournalFailure()
	c.IncNotifierFailure()

	s := c.Snapshot()
	if s.FilesHashed != 0 {
		t.Errorf("nil collector snapshot FilesHashed = %d, want 0", s.FilesHashed)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("run-001", "docs-site", "api")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncFileHashed(3)
				c.IncDedupHit()
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.FilesHashed != want {
		t.Errorf("FilesHashed = %d, want %d", s.FilesHashed, want)
	}
	if s.BytesHashed != want*3 {
		t.Errorf("BytesHashed = %d, want %d", s.BytesHashed, want*3)
	}
	if s.DedupHits != want {
		t.Errorf("DedupHits = %d, want %d", s.DedupHits, want)
	}
}
