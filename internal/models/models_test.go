package models

import (
	"testing"
	"time"
)

func TestSyncRunValidate(t *testing.T) {
	valid := func() *SyncRun {
		return &SyncRun{RunID: "r1", SourceID: "src", Destination: "dest", Status: RunCompleted, Processed: 3, Succeeded: 2, Failed: 1}
	}

	tt := []struct {
		name    string
		mutate  func(r *SyncRun)
		wantErr bool
	}{
		{name: "valid", mutate: func(*SyncRun) {}},
		{name: "missing id", mutate: func(r *SyncRun) { r.RunID = "" }, wantErr: true},
		{name: "missing source", mutate: func(r *SyncRun) { r.SourceID = "" }, wantErr: true},
		{name: "missing destination", mutate: func(r *SyncRun) { r.Destination = "" }, wantErr: true},
		{name: "unknown status", mutate: func(r *SyncRun) { r.Status = "paused" }, wantErr: true},
		{name: "counts overflow", mutate: func(r *SyncRun) { r.Succeeded = 5 }, wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			r := valid()
			tc.mutate(r)
			if err := r.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestSyncRunElapsed(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := &SyncRun{StartedAt: start}
	if r.Elapsed() != 0 {
		t.Errorf("running run should report zero elapsed")
	}

	end := start.Add(90 * time.Second)
	r.FinishedAt = &end
	if r.Elapsed() != 90*time.Second {
		t.Errorf("expected 90s, got %v", r.Elapsed())
	}
}
