package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"deadliner/internal/jobs"
	"deadliner/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type mockRunner struct {
	submitFn func(payload jobs.Payload, eta time.Time) (string, error)
	stateFn  func(jobID string) (string, error)
	revokeFn func(jobID string) error
}

func (m *mockRunner) Submit(payload jobs.Payload, eta time.Time) (string, error) {
	if m.submitFn != nil {
		return m.submitFn(payload, eta)
	}
	return "task_1", nil
}

func (m *mockRunner) State(jobID string) (string, error) {
	if m.stateFn != nil {
		return m.stateFn(jobID)
	}
	return "PENDING", nil
}

func (m *mockRunner) Revoke(jobID string) error {
	if m.revokeFn != nil {
		return m.revokeFn(jobID)
	}
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A pooled :memory: connection per conn means separate databases
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.Account{}, &models.CanvasToken{}, &models.Reminder{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func testAccount(username, email string) models.Account {
	return models.Account{Username: username, Email: email}
}

func testRequest(plannableID int64, deadline time.Time) ScheduleRequest {
	return ScheduleRequest{
		PlannableID:    plannableID,
		CourseName:     "CS 101",
		AssignmentName: "Homework 3",
		Deadline:       deadline,
		Grade:          92.5,
	}
}

func TestScheduleThenCancel(t *testing.T) {
	db := newTestDB(t)
	svc := NewReminderService(db, &mockRunner{})
	alice := testAccount("alice", "alice@example.com")

	jobID, err := svc.Schedule(alice, testRequest(42, time.Now().Add(48*time.Hour)))
	if err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if jobID == "" {
		t.Fatal("Schedule returned empty job id")
	}

	if err := svc.Cancel("alice", jobID); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	reminders, err := svc.ListPending("alice")
	if err != nil {
		t.Fatalf("ListPending returned error: %v", err)
	}
	for _, r := range reminders {
		if r.PlannableID == 42 {
			t.Errorf("cancelled reminder for plannable 42 still listed")
		}
	}
}

func TestScheduleFireTime(t *testing.T) {
	db := newTestDB(t)

	var gotETA time.Time
	runner := &mockRunner{
		submitFn: func(payload jobs.Payload, eta time.Time) (string, error) {
			gotETA = eta
			return "task_eta", nil
		},
	}
	svc := NewReminderService(db, runner)

	deadline := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	if _, err := svc.Schedule(testAccount("alice", "alice@example.com"), testRequest(7, deadline)); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	want := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	if !gotETA.Equal(want) {
		t.Errorf("fire time = %v, want %v", gotETA, want)
	}
}

func TestCancelRequiresOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := NewReminderService(db, &mockRunner{})

	jobID, err := svc.Schedule(testAccount("alice", "alice@example.com"),
		testRequest(42, time.Now().Add(48*time.Hour)))
	if err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	err = svc.Cancel("bob", jobID)
	if !errors.Is(err, ErrReminderNotFound) {
		t.Fatalf("Cancel by non-owner = %v, want ErrReminderNotFound", err)
	}

	reminders, err := svc.ListPending("alice")
	if err != nil {
		t.Fatalf("ListPending returned error: %v", err)
	}
	if len(reminders) != 1 {
		t.Errorf("owner's reminders = %d rows, want 1", len(reminders))
	}
}

func TestCancelTerminalJob(t *testing.T) {
	db := newTestDB(t)

	revoked := false
	runner := &mockRunner{
		stateFn: func(jobID string) (string, error) {
			return "SUCCESS", nil
		},
		revokeFn: func(jobID string) error {
			revoked = true
			return nil
		},
	}
	svc := NewReminderService(db, runner)

	jobID, err := svc.Schedule(testAccount("alice", "alice@example.com"),
		testRequest(42, time.Now().Add(48*time.Hour)))
	if err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	err = svc.Cancel("alice", jobID)
	var notCancelable *NotCancelableError
	if !errors.As(err, &notCancelable) {
		t.Fatalf("Cancel of terminal job = %v, want NotCancelableError", err)
	}
	if notCancelable.State != "SUCCESS" {
		t.Errorf("reported state = %q, want SUCCESS", notCancelable.State)
	}
	if revoked {
		t.Error("terminal job was revoked")
	}

	reminders, err := svc.ListPending("alice")
	if err != nil {
		t.Fatalf("ListPending returned error: %v", err)
	}
	if len(reminders) != 1 {
		t.Errorf("store row was touched: %d rows, want 1", len(reminders))
	}
}

func TestCancelProceedsWhenStateLookupFails(t *testing.T) {
	db := newTestDB(t)

	runner := &mockRunner{
		stateFn: func(jobID string) (string, error) {
			return "", errors.New("backend unavailable")
		},
	}
	svc := NewReminderService(db, runner)

	jobID, err := svc.Schedule(testAccount("alice", "alice@example.com"),
		testRequest(42, time.Now().Add(48*time.Hour)))
	if err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	if err := svc.Cancel("alice", jobID); err != nil {
		t.Fatalf("Cancel with failing state lookup = %v, want success", err)
	}
}

func TestScheduleRevokesJobOnInsertFailure(t *testing.T) {
	db := newTestDB(t)

	var revokedID string
	runner := &mockRunner{
		submitFn: func(payload jobs.Payload, eta time.Time) (string, error) {
			// Same id every time so the unique index trips on the second insert
			return "task_dup", nil
		},
		revokeFn: func(jobID string) error {
			revokedID = jobID
			return nil
		},
	}
	svc := NewReminderService(db, runner)
	alice := testAccount("alice", "alice@example.com")

	if _, err := svc.Schedule(alice, testRequest(1, time.Now().Add(48*time.Hour))); err != nil {
		t.Fatalf("first Schedule returned error: %v", err)
	}

	_, err := svc.Schedule(alice, testRequest(2, time.Now().Add(48*time.Hour)))
	if err == nil {
		t.Fatal("second Schedule succeeded, want insert failure")
	}
	if revokedID != "task_dup" {
		t.Errorf("revoked job id = %q, want task_dup", revokedID)
	}
}

func TestScheduleRejectsDuplicatePending(t *testing.T) {
	db := newTestDB(t)

	submits := 0
	runner := &mockRunner{
		submitFn: func(payload jobs.Payload, eta time.Time) (string, error) {
			submits++
			return fmt.Sprintf("task_%d", submits), nil
		},
	}
	svc := NewReminderService(db, runner)
	alice := testAccount("alice", "alice@example.com")

	jobID, err := svc.Schedule(alice, testRequest(42, time.Now().Add(48*time.Hour)))
	if err != nil {
		t.Fatalf("first Schedule returned error: %v", err)
	}

	_, err = svc.Schedule(alice, testRequest(42, time.Now().Add(72*time.Hour)))
	if !errors.Is(err, ErrDuplicateReminder) {
		t.Fatalf("second Schedule = %v, want ErrDuplicateReminder", err)
	}
	if submits != 1 {
		t.Errorf("jobs submitted = %d, want 1 (rejected request must not create a job)", submits)
	}

	reminders, err := svc.ListPending("alice")
	if err != nil {
		t.Fatalf("ListPending returned error: %v", err)
	}
	if len(reminders) != 1 {
		t.Errorf("pending reminders for (alice, 42) = %d, want 1", len(reminders))
	}

	// A different user may schedule the same assignment
	if _, err := svc.Schedule(testAccount("bob", "bob@example.com"),
		testRequest(42, time.Now().Add(48*time.Hour))); err != nil {
		t.Errorf("Schedule for other user returned error: %v", err)
	}

	// Cancelling frees the slot for rescheduling
	if err := svc.Cancel("alice", jobID); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if _, err := svc.Schedule(alice, testRequest(42, time.Now().Add(72*time.Hour))); err != nil {
		t.Errorf("Schedule after cancel returned error: %v", err)
	}
}

func TestScheduleRejectsInvalidPayload(t *testing.T) {
	db := newTestDB(t)

	submitted := false
	runner := &mockRunner{
		submitFn: func(payload jobs.Payload, eta time.Time) (string, error) {
			submitted = true
			return "task_1", nil
		},
	}
	svc := NewReminderService(db, runner)

	// Account without an email cannot receive the reminder
	_, err := svc.Schedule(testAccount("alice", ""), testRequest(42, time.Now().Add(48*time.Hour)))
	if err == nil {
		t.Fatal("Schedule without recipient email succeeded")
	}
	if submitted {
		t.Error("job was submitted despite invalid payload")
	}
}

func TestPendingPlannableIDs(t *testing.T) {
	db := newTestDB(t)

	ids := []string{"task_a", "task_b"}
	i := 0
	runner := &mockRunner{
		submitFn: func(payload jobs.Payload, eta time.Time) (string, error) {
			id := ids[i]
			i++
			return id, nil
		},
	}
	svc := NewReminderService(db, runner)
	alice := testAccount("alice", "alice@example.com")

	if _, err := svc.Schedule(alice, testRequest(42, time.Now().Add(48*time.Hour))); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if _, err := svc.Schedule(alice, testRequest(43, time.Now().Add(72*time.Hour))); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	pending, err := svc.PendingPlannableIDs("alice")
	if err != nil {
		t.Fatalf("PendingPlannableIDs returned error: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending set size = %d, want 2", len(pending))
	}
	if _, ok := pending[42]; !ok {
		t.Error("pending set missing plannable 42")
	}
	if _, ok := pending[43]; !ok {
		t.Error("pending set missing plannable 43")
	}

	// Another user's feed is unaffected
	other, err := svc.PendingPlannableIDs("bob")
	if err != nil {
		t.Fatalf("PendingPlannableIDs returned error: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("pending set for other user = %d entries, want 0", len(other))
	}
}

func TestPurgeExpired(t *testing.T) {
	db := newTestDB(t)
	ids := []string{"task_old", "task_new"}
	i := 0
	svc := NewReminderService(db, &mockRunner{
		submitFn: func(payload jobs.Payload, eta time.Time) (string, error) {
			id := ids[i]
			i++
			return id, nil
		},
	})
	alice := testAccount("alice", "alice@example.com")

	if _, err := svc.Schedule(alice, testRequest(1, time.Now().Add(-48*time.Hour))); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if _, err := svc.Schedule(alice, testRequest(2, time.Now().Add(48*time.Hour))); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	purged, err := svc.PurgeExpired(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeExpired returned error: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d rows, want 1", purged)
	}

	reminders, err := svc.ListPending("alice")
	if err != nil {
		t.Fatalf("ListPending returned error: %v", err)
	}
	if len(reminders) != 1 || reminders[0].PlannableID != 2 {
		t.Errorf("remaining reminders = %+v, want only plannable 2", reminders)
	}
}
