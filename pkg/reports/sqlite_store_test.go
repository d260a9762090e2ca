package reports

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adjust/Rex/pkg/inventory"
	"github.com/adjust/Rex/pkg/tasks"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(failed bool) *tasks.Run {
	started := time.Now().Add(-time.Minute)
	run := &tasks.Run{
		ID:       uuid.New().String(),
		Task:     "deploy",
		Started:  started,
		Finished: started.Add(30 * time.Second),
		Results: []tasks.HostResult{
			{Host: inventory.Host{Name: "web1", User: "deploy"}, Status: tasks.StatusSuccess, Duration: 12 * time.Second},
			{Host: inventory.Host{Name: "web2"}, Status: tasks.StatusSuccess, Duration: 9 * time.Second},
		},
	}
	if failed {
		run.Results[1].Status = tasks.StatusFailed
		run.Results[1].Err = tasks.NewPermanentError("deploy failed", nil).WithHost("web2")
	}
	return run
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)
	run := sampleRun(true)

	if err := s.SaveRun(context.Background(), run); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	rec, hosts, err := s.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if rec.Task != "deploy" {
		t.Errorf("Task = %q", rec.Task)
	}
	if !rec.Failed {
		t.Error("Failed = false, want true")
	}
	if len(hosts) != 2 {
		t.Fatalf("host records = %d", len(hosts))
	}
	var failedHost *HostRecord
	for _, h := range hosts {
		if h.Status == string(tasks.StatusFailed) {
			failedHost = h
		}
	}
	if failedHost == nil {
		t.Fatal("no failed host record")
	}
	if failedHost.Host != "web2" {
		t.Errorf("failed host = %q", failedHost.Host)
	}
	if failedHost.Error == nil {
		t.Error("failed host has no error message")
	}
	if failedHost.DurationMS != 9000 {
		t.Errorf("DurationMS = %d, want 9000", failedHost.DurationMS)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun() error = %v, want ErrNotFound", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)

	older := sampleRun(false)
	older.Started = time.Now().Add(-2 * time.Hour)
	newer := sampleRun(false)

	if err := s.SaveRun(context.Background(), older); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRun(context.Background(), newer); err != nil {
		t.Fatal(err)
	}

	runs, err := s.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns() = %d entries", len(runs))
	}
	if runs[0].ID != newer.ID || runs[1].ID != older.ID {
		t.Errorf("ListRuns() order = [%s, %s]", runs[0].ID, runs[1].ID)
	}
}

func TestDeleteRunCascades(t *testing.T) {
	s := openTestStore(t)
	run := sampleRun(false)
	if err := s.SaveRun(context.Background(), run); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteRun(context.Background(), run.ID); err != nil {
		t.Fatalf("DeleteRun() error = %v", err)
	}
	if _, _, err := s.GetRun(context.Background(), run.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun() after delete = %v, want ErrNotFound", err)
	}
	if err := s.DeleteRun(context.Background(), run.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteRun() twice = %v, want ErrNotFound", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Error("Open(\"\") expected error")
	}
}
