package httpapi

import (
	"errors"
	"fmt"
	"time"

	"routine-planner/internal/model"
	"routine-planner/internal/recurrence"
	"routine-planner/internal/service"
)

// RepeatRequest carries exactly one recurrence mode.
type RepeatRequest struct {
	Interval     *int  `json:"interval,omitempty"`
	DaysOfWeek   []int `json:"daysOfWeek,omitempty"`
	TimesPerWeek *int  `json:"timesPerWeek,omitempty"`
}

// Mode converts the request to a recurrence mode.
func (r RepeatRequest) Mode() (model.RecurrenceMode, error) {
	var modes []model.RecurrenceMode
	if r.Interval != nil {
		modes = append(modes, model.Interval{Days: *r.Interval})
	}
	if len(r.DaysOfWeek) > 0 {
		days := make([]time.Weekday, 0, len(r.DaysOfWeek))
		for _, d := range r.DaysOfWeek {
			days = append(days, time.Weekday(d))
		}
		modes = append(modes, model.DaysOfWeek{Days: days})
	}
	if r.TimesPerWeek != nil {
		modes = append(modes, model.TimesPerWeek{Count: *r.TimesPerWeek})
	}
	if len(modes) != 1 {
		return nil, fmt.Errorf("repeat must set exactly one of interval, daysOfWeek, timesPerWeek (got %d)", len(modes))
	}
	return modes[0], nil
}

// CreateTaskRequest represents the request body for creating a task
type CreateTaskRequest struct {
	Title       string         `json:"title" binding:"required"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Points      int            `json:"points"`
	DueDate     *time.Time     `json:"dueDate"`
	Repeat      *RepeatRequest `json:"repeat"`
	StartsOn    *time.Time     `json:"startsOn"`
	DueTime     string         `json:"dueTime"`
	StartTime   string         `json:"startTime"`
}

// ToInput validates the request and converts it to the service input.
func (r CreateTaskRequest) ToInput() (service.TaskInput, error) {
	input := service.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Points:      r.Points,
		DueDate:     r.DueDate,
	}
	if r.Repeat == nil {
		if r.DueTime != "" || r.StartTime != "" || r.StartsOn != nil {
			return input, errors.New("dueTime, startTime and startsOn apply to repeating tasks only")
		}
		return input, nil
	}
	if r.DueDate != nil {
		return input, errors.New("dueDate applies to one-off tasks only")
	}

	mode, err := r.Repeat.Mode()
	if err != nil {
		return input, err
	}
	input.Repeat = mode
	if r.StartsOn != nil {
		input.StartsOn = *r.StartsOn
	}
	if r.DueTime != "" {
		if input.DueTime, err = model.ParseTimeOfDay(r.DueTime); err != nil {
			return input, err
		}
	}
	if r.StartTime != "" {
		if input.StartTime, err = model.ParseTimeOfDay(r.StartTime); err != nil {
			return input, err
		}
	}
	return input, nil
}

// RuleResponse is the public view of a repetition rule.
type RuleResponse struct {
	Mode                      model.ModeKind `json:"mode"`
	Interval                  int            `json:"interval,omitempty"`
	DaysOfWeek                []int          `json:"daysOfWeek,omitempty"`
	TimesPerWeek              int            `json:"timesPerWeek,omitempty"`
	StartDate                 time.Time      `json:"startDate"`
	Completions               int            `json:"completions"`
	LastInstanceCompletedDate *time.Time     `json:"lastInstanceCompletedDate,omitempty"`
}

// TaskResponse represents a task in API responses
type TaskResponse struct {
	ID          uint             `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	CategoryID  *uint            `json:"categoryId,omitempty"`
	Status      model.TaskStatus `json:"status"`
	DueDate     *time.Time       `json:"dueDate,omitempty"`
	StartTime   string           `json:"startTime,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	IsRepeating bool             `json:"isRepeating"`
	Rule        *RuleResponse    `json:"rule,omitempty"`
	DelayCount  int              `json:"delayCount"`
	Risk        bool             `json:"risk"`
	Points      int              `json:"points"`
	Version     int              `json:"version"`
}

func NewTaskResponse(task model.Task) TaskResponse {
	resp := TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		CategoryID:  task.CategoryID,
		Status:      task.Status,
		StartTime:   task.StartTime.String(),
		CompletedAt: task.CompletedAt,
		IsRepeating: task.IsRepeating,
		DelayCount:  task.DelayCount,
		Risk:        task.Risk,
		Points:      task.Points,
		Version:     task.Version,
	}
	if !task.DueDate.IsZero() {
		due := task.DueDate
		resp.DueDate = &due
	}
	if task.Rule.IsZero() {
		return resp
	}

	rule := &RuleResponse{
		Mode:                      task.Rule.Kind(),
		StartDate:                 task.Rule.StartDate,
		Completions:               task.Rule.Completions,
		LastInstanceCompletedDate: task.Rule.LastInstanceCompletedDate,
	}
	switch m := task.Rule.Mode.(type) {
	case model.Interval:
		rule.Interval = m.Days
	case model.DaysOfWeek:
		for _, d := range m.Days {
			rule.DaysOfWeek = append(rule.DaysOfWeek, int(d))
		}
	case model.TimesPerWeek:
		rule.TimesPerWeek = m.Count
	}
	resp.Rule = rule
	return resp
}

// EligibilityResponse mirrors recurrence.Eligibility.
type EligibilityResponse struct {
	TaskID         uint   `json:"taskId"`
	CanCompleteNow bool   `json:"canCompleteNow"`
	IsDueToday     bool   `json:"isDueToday"`
	SameWeek       bool   `json:"sameWeek"`
	Reason         string `json:"reason,omitempty"`
}

func NewEligibilityResponse(taskID uint, e recurrence.Eligibility) EligibilityResponse {
	return EligibilityResponse{
		TaskID:         taskID,
		CanCompleteNow: e.CanCompleteNow,
		IsDueToday:     e.IsDueToday,
		SameWeek:       e.SameWeek,
		Reason:         e.Reason,
	}
}

// CompletionResponse is returned by the complete endpoint.
type CompletionResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Task    *TaskResponse `json:"task,omitempty"`
}

// LoginResponse reports what the login rollover did.
type LoginResponse struct {
	RunID   string `json:"runId,omitempty"`
	Skipped bool   `json:"skipped"`
	Scanned int    `json:"scanned"`
	Updated int    `json:"updated"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
