package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/activity"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/realtime"
	"github.com/lalith-99/hsedesk/internal/storage"
	"github.com/lalith-99/hsedesk/internal/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	scope     tenancy.Scope
	actor     Actor
	recorder  *recorder
	publisher *publisher
	dispatch  *Dispatcher
}

func newFixture() *fixture {
	rec := &recorder{}
	pub := &publisher{}
	return &fixture{
		scope:     tenancy.MustScope(uuid.New()),
		actor:     Actor{ID: uuid.New(), Name: "Dana Safety"},
		recorder:  rec,
		publisher: pub,
		dispatch:  NewDispatcher(rec, pub, zap.NewNop()),
	}
}

func date(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDispatcher_ActivityFailureBecomesWarning(t *testing.T) {
	f := newFixture()
	f.recorder.fail = true

	out := f.dispatch.After(context.Background(), f.scope, f.actor, Change{
		Table: "tasks", Type: realtime.Insert, Record: map[string]string{"title": "x"},
		Action: "Task created", ActionType: models.ActionCreate,
	})

	assert.Equal(t, []string{activity.UnavailableWarning}, out.Warnings)
	assert.Equal(t, []string{"tasks:insert"}, f.publisher.tables(), "event still published")
}

func TestDispatcher_SkipsEmptyActionAndTable(t *testing.T) {
	f := newFixture()

	out := f.dispatch.After(context.Background(), f.scope, f.actor, Change{})

	assert.Empty(t, out.Warnings)
	assert.Empty(t, f.recorder.actions())
	assert.Empty(t, f.publisher.tables())
}

func employeeService(f *fixture, cap int) (*EmployeeService, *employees) {
	emps := newEmployees(cap)
	return NewEmployeeService(emps, &notes{}, f.dispatch), emps
}

func TestEmployee_CapEnforcedOnCreateAndReactivate(t *testing.T) {
	f := newFixture()
	svc, _ := employeeService(f, 1)
	ctx := context.Background()

	first, _, err := svc.Create(ctx, f.scope, f.actor, models.EmployeeInput{EmployeeNumber: "E1", FullName: "Ann"})
	require.NoError(t, err)

	_, _, err = svc.Create(ctx, f.scope, f.actor, models.EmployeeInput{EmployeeNumber: "E2", FullName: "Ben"})
	assert.ErrorIs(t, err, apperr.ErrLimitReached)

	_, _, err = svc.SetActive(ctx, f.scope, f.actor, first.ID, false)
	require.NoError(t, err)
	second, _, err := svc.Create(ctx, f.scope, f.actor, models.EmployeeInput{EmployeeNumber: "E2", FullName: "Ben"})
	require.NoError(t, err)
	assert.True(t, second.Active)

	_, _, err = svc.SetActive(ctx, f.scope, f.actor, first.ID, true)
	assert.ErrorIs(t, err, apperr.ErrLimitReached)
}

func TestEmployee_TagChangesAreIdempotent(t *testing.T) {
	f := newFixture()
	svc, _ := employeeService(f, 10)
	ctx := context.Background()

	e, _, err := svc.Create(ctx, f.scope, f.actor, models.EmployeeInput{EmployeeNumber: "E1", FullName: "Ann"})
	require.NoError(t, err)

	e, _, err = svc.AddTag(ctx, f.scope, f.actor, e.ID, " forklift ")
	require.NoError(t, err)
	e, _, err = svc.AddTag(ctx, f.scope, f.actor, e.ID, "forklift")
	require.NoError(t, err)
	assert.Equal(t, []string{"forklift"}, e.Tags)

	e, _, err = svc.RemoveTag(ctx, f.scope, f.actor, e.ID, "night-shift")
	require.NoError(t, err)
	assert.Equal(t, []string{"forklift"}, e.Tags)

	e, _, err = svc.RemoveTag(ctx, f.scope, f.actor, e.ID, "forklift")
	require.NoError(t, err)
	assert.Empty(t, e.Tags)

	assert.Equal(t, []string{"Employee created", "Tag added", "Tag removed"}, f.recorder.actions())
}

func TestEmployee_ProfileFieldsValidated(t *testing.T) {
	f := newFixture()
	svc, _ := employeeService(f, 10)
	ctx := context.Background()
	e, _, err := svc.Create(ctx, f.scope, f.actor, models.EmployeeInput{EmployeeNumber: "E1", FullName: "Ann"})
	require.NoError(t, err)

	_, _, err = svc.SetProfileFields(ctx, f.scope, f.actor, e.ID, []models.ProfileField{{Label: "Shoe size", Type: "colour"}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, _, err := svc.SetProfileFields(ctx, f.scope, f.actor, e.ID, []models.ProfileField{{Label: "Shoe size", Type: "number", Value: "43"}})
	require.NoError(t, err)
	require.Len(t, updated.ProfileFields, 1)
	assert.NotEmpty(t, updated.ProfileFields[0].ID)
}

func TestEmployee_OtherTenantIsNotFound(t *testing.T) {
	f := newFixture()
	svc, _ := employeeService(f, 10)
	ctx := context.Background()
	e, _, err := svc.Create(ctx, f.scope, f.actor, models.EmployeeInput{EmployeeNumber: "E1", FullName: "Ann"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, tenancy.MustScope(uuid.New()), e.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTask_StaleToggleIsNotApplied(t *testing.T) {
	f := newFixture()
	svc := NewTaskService(newTasks(), f.dispatch)
	ctx := context.Background()

	task, _, err := svc.Create(ctx, f.scope, f.actor, TaskInput{Title: "Inspect ladders"})
	require.NoError(t, err)
	assert.Equal(t, models.TaskPending, task.Status)
	assert.Equal(t, models.PriorityMedium, task.Priority)

	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	got, applied, _, err := svc.SetStatus(ctx, f.scope, f.actor, task.ID, models.TaskCompleted, t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.TaskCompleted, got.Status)

	// The earlier click arrives late.
	got, applied, _, err = svc.SetStatus(ctx, f.scope, f.actor, task.ID, models.TaskPending, t0)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.TaskCompleted, got.Status)
}

func TestTask_FutureToggleDoesNotFreezeTask(t *testing.T) {
	f := newFixture()
	svc := NewTaskService(newTasks(), f.dispatch)
	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	ctx := context.Background()

	task, _, err := svc.Create(ctx, f.scope, f.actor, TaskInput{Title: "Check extinguishers"})
	require.NoError(t, err)

	// A client clock a day ahead is treated as now.
	_, applied, _, err := svc.SetStatus(ctx, f.scope, f.actor, task.ID, models.TaskCompleted, clock.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, applied)

	clock = clock.Add(time.Second)
	got, applied, _, err := svc.SetStatus(ctx, f.scope, f.actor, task.ID, models.TaskPending, time.Time{})
	require.NoError(t, err)
	assert.True(t, applied, "a later toggle must still win")
	assert.Equal(t, models.TaskPending, got.Status)
}

func checkupService(f *fixture) (*CheckupService, *checkups) {
	repo := newCheckups()
	return NewCheckupService(repo, f.dispatch, PeriodicCheckupRule()), repo
}

func TestCheckup_CompletionSchedulesFollowUpOnce(t *testing.T) {
	f := newFixture()
	svc, repo := checkupService(f)
	ctx := context.Background()

	c, _, err := svc.Create(ctx, f.scope, f.actor, CheckupInput{
		EmployeeID: uuid.New(), Investigation: "G37 screen work", AppointmentDate: date("2024-03-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.CheckupPlanned, c.Status)

	completed := date("2024-03-05")
	updated, followUps, _, err := svc.UpdateStatus(ctx, f.scope, f.actor, c.ID, CheckupUpdate{Status: models.CheckupDone, CompletedDate: &completed})
	require.NoError(t, err)
	assert.Equal(t, models.CheckupDone, updated.Status)
	require.Len(t, followUps, 1)
	assert.Equal(t, date("2027-03-05"), followUps[0].AppointmentDate)
	assert.Equal(t, models.CheckupOpen, followUps[0].Status)
	assert.Equal(t, "G37 screen work", followUps[0].Investigation)
	require.NotNil(t, followUps[0].PreviousCheckupID)
	assert.Equal(t, c.ID, *followUps[0].PreviousCheckupID)

	// A repeated "done" (double submit) must not schedule a second one.
	_, followUps, _, err = svc.UpdateStatus(ctx, f.scope, f.actor, c.ID, CheckupUpdate{Status: models.CheckupDone, CompletedDate: &completed})
	require.NoError(t, err)
	assert.Empty(t, followUps)
	assert.Equal(t, 2, repo.len())
}

func TestCheckup_DoneWithoutDateHasNoFollowUp(t *testing.T) {
	f := newFixture()
	svc, _ := checkupService(f)
	ctx := context.Background()

	c, _, err := svc.Create(ctx, f.scope, f.actor, CheckupInput{EmployeeID: uuid.New(), Investigation: "G20", AppointmentDate: date("2025-01-10")})
	require.NoError(t, err)

	_, followUps, _, err := svc.UpdateStatus(ctx, f.scope, f.actor, c.ID, CheckupUpdate{Status: models.CheckupDone})
	require.NoError(t, err)
	assert.Empty(t, followUps)
}

func TestCheckup_DateAddedAfterDoneSchedulesFollowUp(t *testing.T) {
	f := newFixture()
	svc, repo := checkupService(f)
	ctx := context.Background()

	c, _, err := svc.Create(ctx, f.scope, f.actor, CheckupInput{EmployeeID: uuid.New(), Investigation: "G26", AppointmentDate: date("2024-03-01")})
	require.NoError(t, err)

	_, followUps, _, err := svc.UpdateStatus(ctx, f.scope, f.actor, c.ID, CheckupUpdate{Status: models.CheckupDone})
	require.NoError(t, err)
	assert.Empty(t, followUps)

	completed := date("2024-03-05")
	updated, followUps, _, err := svc.UpdateStatus(ctx, f.scope, f.actor, c.ID, CheckupUpdate{Status: models.CheckupDone, CompletedDate: &completed})
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedDate)
	require.Len(t, followUps, 1)
	assert.Equal(t, date("2027-03-05"), followUps[0].AppointmentDate)
	assert.Equal(t, c.ID, *followUps[0].PreviousCheckupID)

	// Correcting the date later does not spawn another.
	corrected := date("2024-03-06")
	_, followUps, _, err = svc.UpdateStatus(ctx, f.scope, f.actor, c.ID, CheckupUpdate{CompletedDate: &corrected})
	require.NoError(t, err)
	assert.Empty(t, followUps)
	assert.Equal(t, 2, repo.len())
}

func TestCheckup_CreatedDoneSchedulesFollowUp(t *testing.T) {
	f := newFixture()
	svc, repo := checkupService(f)
	ctx := context.Background()

	completed := date("2025-02-10")
	c, _, err := svc.Create(ctx, f.scope, f.actor, CheckupInput{
		EmployeeID: uuid.New(), Investigation: "G42", AppointmentDate: date("2025-02-01"),
		Status: models.CheckupDone, CompletedDate: &completed,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.len())
	assert.Contains(t, f.recorder.actions(), "Follow-up checkup scheduled")

	// Re-submitting done on the completed row stays at one successor.
	_, followUps, _, err := svc.UpdateStatus(ctx, f.scope, f.actor, c.ID, CheckupUpdate{Status: models.CheckupDone, CompletedDate: &completed})
	require.NoError(t, err)
	assert.Empty(t, followUps)
	assert.Equal(t, 2, repo.len())

	// Done without a date on create schedules nothing.
	_, _, err = svc.Create(ctx, f.scope, f.actor, CheckupInput{
		EmployeeID: uuid.New(), Investigation: "G42", AppointmentDate: date("2025-02-01"), Status: models.CheckupDone,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.len())
}

func TestCheckup_BackwardTransitionRejected(t *testing.T) {
	f := newFixture()
	svc, _ := checkupService(f)
	ctx := context.Background()

	c, _, err := svc.Create(ctx, f.scope, f.actor, CheckupInput{EmployeeID: uuid.New(), Investigation: "G41", AppointmentDate: date("2025-06-01"), Status: models.CheckupOpen})
	require.NoError(t, err)

	_, _, _, err = svc.UpdateStatus(ctx, f.scope, f.actor, c.ID, CheckupUpdate{Status: models.CheckupPlanned})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, _, _, err = svc.UpdateStatus(ctx, f.scope, f.actor, uuid.New(), CheckupUpdate{Status: models.CheckupDone})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCheckup_DeleteNeedsConfirmation(t *testing.T) {
	f := newFixture()
	svc, repo := checkupService(f)
	ctx := context.Background()

	c, _, err := svc.Create(ctx, f.scope, f.actor, CheckupInput{EmployeeID: uuid.New(), Investigation: "G25", AppointmentDate: date("2025-06-01")})
	require.NoError(t, err)

	_, err = svc.Delete(ctx, f.scope, f.actor, c.ID, false)
	assert.ErrorIs(t, err, apperr.ErrConfirmationRequired)
	assert.Equal(t, 1, repo.len())

	_, err = svc.Delete(ctx, f.scope, f.actor, c.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.len())
}

var pdf = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func documentService(f *fixture) (*DocumentService, *documents, *storage.MemoryBucket) {
	repo := newDocuments()
	bucket := storage.NewMemoryBucket("")
	svc := NewDocumentService(repo, bucket, f.dispatch, nil, zap.NewNop(), 1<<20)
	svc.now = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }
	return svc, repo, bucket
}

func TestDocument_UploadDownloadDelete(t *testing.T) {
	f := newFixture()
	svc, _, bucket := documentService(f)
	ctx := context.Background()

	doc, _, err := svc.Upload(ctx, f.scope, f.actor, UploadInput{
		Title: "Fire safety policy", Category: models.CategoryPolicy, Filename: "Policy.PDF", Content: bytes.NewReader(pdf),
	})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.MimeType)
	assert.Equal(t, int64(len(pdf)), doc.SizeBytes)
	assert.Regexp(t, `^`+f.scope.TenantID().String()+`/policy/\d+-[0-9a-f]{8}\.pdf$`, doc.FilePath)
	assert.Equal(t, 1, bucket.Len())

	_, data, err := svc.Download(ctx, f.scope, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, pdf, data)

	_, err = svc.PublicURL(ctx, f.scope, doc.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Delete(ctx, f.scope, f.actor, doc.ID, false)
	assert.ErrorIs(t, err, apperr.ErrConfirmationRequired)

	_, err = svc.Delete(ctx, f.scope, f.actor, doc.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 0, bucket.Len())

	_, err = svc.Get(ctx, f.scope, doc.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, []string{"Document uploaded", "Document deleted"}, f.recorder.actions())
}

func TestDocument_RejectsUnsupportedAndEmpty(t *testing.T) {
	f := newFixture()
	svc, _, bucket := documentService(f)
	ctx := context.Background()

	exe := append([]byte("MZ"), make([]byte, 128)...)
	_, _, err := svc.Upload(ctx, f.scope, f.actor, UploadInput{Title: "tool", Filename: "tool.pdf", Content: bytes.NewReader(exe)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, _, err = svc.Upload(ctx, f.scope, f.actor, UploadInput{Title: "empty", Filename: "a.txt", Content: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	svc.maxBytes = 10
	_, _, err = svc.Upload(ctx, f.scope, f.actor, UploadInput{Title: "big", Filename: "a.pdf", Content: bytes.NewReader(pdf)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Equal(t, 0, bucket.Len())
}

func TestDocument_FailedInsertRemovesObject(t *testing.T) {
	f := newFixture()
	svc, repo, bucket := documentService(f)
	repo.createErr = errors.New("connection reset")

	_, _, err := svc.Upload(context.Background(), f.scope, f.actor, UploadInput{Title: "Report", Filename: "r.pdf", Content: bytes.NewReader(pdf)})
	require.Error(t, err)
	assert.Equal(t, 0, bucket.Len())
}

func TestMessage_SendPublishesWithoutActivity(t *testing.T) {
	f := newFixture()
	svc := NewMessageService(&messages{}, f.dispatch)

	_, err := svc.Send(context.Background(), f.scope, f.actor, nil, "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	m, err := svc.Send(context.Background(), f.scope, f.actor, nil, "Drill at 3pm")
	require.NoError(t, err)
	assert.Equal(t, "Drill at 3pm", m.Body)
	assert.Equal(t, []string{"messages:insert"}, f.publisher.tables())
	assert.Empty(t, f.recorder.actions())
}

func TestCompany_SetupOnlyOnce(t *testing.T) {
	svc := NewCompanyService(newCompanies())
	ctx := context.Background()

	principal := tenancy.Context{UserID: uuid.New()}
	c, err := svc.Setup(ctx, principal, " Acme GmbH ")
	require.NoError(t, err)
	assert.Equal(t, "Acme GmbH", c.Name)

	principal.TenantID = &c.ID
	_, err = svc.Setup(ctx, principal, "Second")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.UpdateSubscription(ctx, c.ID, models.Subscription{Tier: "platinum", Status: "active", EmployeeCap: 5})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := svc.UpdateSubscription(ctx, c.ID, models.Subscription{Tier: "professional", Status: "active", EmployeeCap: 200})
	require.NoError(t, err)
	assert.Equal(t, 200, updated.EmployeeCap)
}
