package service

import "github.com/lalith-99/hsedesk/internal/models"

// RecurrenceInterval is how far after completion a periodic checkup is due
// again.
const RecurrenceInterval = 3 // years

// RecurrenceRule spawns a successor when a checkup changes in a way the rule
// cares about. Rules see the locked row before and after the change; on
// create, before is the zero checkup.
type RecurrenceRule struct {
	Name    string
	Applies func(before, after models.HealthCheckup) bool
	Next    func(after models.HealthCheckup) models.HealthCheckup
}

// PeriodicCheckupRule schedules an open checkup for the same investigation
// RecurrenceInterval years after the completion date.
func PeriodicCheckupRule() RecurrenceRule {
	return RecurrenceRule{
		Name: "periodic-checkup",
		Applies: func(before, after models.HealthCheckup) bool {
			return completed(after) && !completed(before)
		},
		Next: func(after models.HealthCheckup) models.HealthCheckup {
			prev := after.ID
			return models.HealthCheckup{
				EmployeeID:        after.EmployeeID,
				Investigation:     after.Investigation,
				AppointmentDate:   after.CompletedDate.AddDate(RecurrenceInterval, 0, 0),
				Status:            models.CheckupOpen,
				PreviousCheckupID: &prev,
			}
		},
	}
}

// completed is the state a successor hangs off. A checkup enters it once,
// whether the status or the date arrives last.
func completed(c models.HealthCheckup) bool {
	return c.Status == models.CheckupDone && c.CompletedDate != nil
}
