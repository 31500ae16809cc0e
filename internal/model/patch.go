package model

import "time"

// TaskPatch is a typed partial update. Nil fields are left untouched.
type TaskPatch struct {
	Status      *TaskStatus
	DueDate     *time.Time
	CompletedAt *time.Time
	Rule        *RepetitionRule
	Risk        *bool
	DelayCount  *int
}

func (p TaskPatch) IsEmpty() bool {
	return p.Status == nil && p.DueDate == nil && p.CompletedAt == nil &&
		p.Rule == nil && p.Risk == nil && p.DelayCount == nil
}

// Apply writes the patch onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.CompletedAt != nil {
		completedAt := *p.CompletedAt
		t.CompletedAt = &completedAt
	}
	if p.Rule != nil {
		t.Rule = p.Rule.Clone()
	}
	if p.Risk != nil {
		t.Risk = *p.Risk
	}
	if p.DelayCount != nil {
		t.DelayCount = *p.DelayCount
	}
}

// Columns renders the patch as a column map for gorm's Updates.
func (p TaskPatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.DueDate != nil {
		cols["due_date"] = *p.DueDate
	}
	if p.CompletedAt != nil {
		cols["completed_at"] = *p.CompletedAt
	}
	if p.Rule != nil {
		cols["repetition_rule"] = *p.Rule
	}
	if p.Risk != nil {
		cols["risk"] = *p.Risk
	}
	if p.DelayCount != nil {
		cols["delay_count"] = *p.DelayCount
	}
	return cols
}

// TaskUpdate pairs a task with the patch to write in a batch. Version is the
// version the patch was computed from.
type TaskUpdate struct {
	TaskID  uint
	Version int
	Patch   TaskPatch
}
