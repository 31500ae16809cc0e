package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"routine-planner/internal/model"
	"routine-planner/internal/recurrence"
	"routine-planner/internal/repository"
)

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	taskRepo   *repository.TaskRepository
	categories *CategoryService
}

func NewReminderService(taskRepo *repository.TaskRepository, categories *CategoryService) *ReminderService {
	return &ReminderService{taskRepo: taskRepo, categories: categories}
}

// DailySummary renders today's repeating tasks, the ones at risk and open one-off tasks.
// It only reads; stale rules are normalised by the login rollover.
func (s *ReminderService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	tasks, err := s.taskRepo.ListActive(ctx, user.ID)
	if err != nil {
		return "", err
	}

	catNames, err := s.categories.Names(ctx, &user)
	if err != nil {
		return "", err
	}

	var open, dueToday, atRisk []model.Task
	for _, task := range tasks {
		if recurrence.IsAtRisk(task, now) {
			atRisk = append(atRisk, task)
		}
		if !task.IsRepeating {
			if !task.IsCompleted() {
				open = append(open, task)
			}
			continue
		}
		if recurrence.Evaluate(task, now).IsDueToday {
			dueToday = append(dueToday, task)
		}
	}

	sort.SliceStable(open, func(i, j int) bool {
		switch {
		case open[i].DueDate.IsZero() && open[j].DueDate.IsZero():
			return open[i].ID < open[j].ID
		case open[i].DueDate.IsZero():
			return false
		case open[j].DueDate.IsZero():
			return true
		default:
			return open[i].DueDate.Before(open[j].DueDate)
		}
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))

	builder.WriteString("♻️ <b>Routines for today</b>\n")
	if len(dueToday) == 0 {
		builder.WriteString("— nothing scheduled today\n")
	} else {
		for _, task := range dueToday {
			builder.WriteString(formatRoutine(task, catNames, now))
		}
	}

	builder.WriteString("\n⚠️ <b>At risk</b>\n")
	if len(atRisk) == 0 {
		builder.WriteString("— all targets are on track\n")
	} else {
		for _, task := range atRisk {
			builder.WriteString(fmt.Sprintf("• %s — %s\n", escapeTitle(task.Title), html.EscapeString(RiskNote(task, now))))
		}
	}

	builder.WriteString("\n🔥 <b>Open tasks</b>\n")
	if len(open) == 0 {
		builder.WriteString("— no open tasks\n")
	} else {
		for _, task := range open {
			builder.WriteString(formatTask(task, catNames, now))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// RiskNote explains why a task is flagged at risk.
func RiskNote(task model.Task, now time.Time) string {
	if m, ok := task.Rule.Mode.(model.TimesPerWeek); ok && task.IsRepeating {
		return fmt.Sprintf("%d more needed, %d days left this week", m.Count-task.Rule.Completions, recurrence.DaysLeftInWeek(now))
	}
	if task.DueDate.Before(now) {
		return fmt.Sprintf("overdue since %s", task.DueDate.In(now.Location()).Format("2006-01-02 15:04"))
	}
	return fmt.Sprintf("due today at %s", task.DueDate.In(now.Location()).Format("15:04"))
}

// DescribeRule renders the recurrence mode of a repeating task.
func DescribeRule(rule model.RepetitionRule) string {
	switch m := rule.Mode.(type) {
	case model.Interval:
		if m.Days == 1 {
			return "every day"
		}
		return fmt.Sprintf("every %d days", m.Days)
	case model.DaysOfWeek:
		names := make([]string, 0, len(m.Days))
		for _, d := range m.Days {
			names = append(names, d.String()[:3])
		}
		return "on " + strings.Join(names, ", ")
	case model.TimesPerWeek:
		return fmt.Sprintf("%d times a week (%d/%d done)", m.Count, rule.Completions, m.Count)
	default:
		return "no rule"
	}
}

func formatRoutine(task model.Task, catNames map[uint]string, now time.Time) string {
	var sb strings.Builder

	icon := "⏳"
	eligibility := recurrence.Evaluate(task, now)
	switch {
	case eligibility.CanCompleteNow:
		icon = "🟢"
	case eligibility.Reason == "Already completed today":
		icon = "✅"
	}
	sb.WriteString(fmt.Sprintf("%s %s%s", icon, escapeTitle(task.Title), categorySuffix(task, catNames)))
	sb.WriteString(fmt.Sprintf("\n   🔄 %s · due %s", html.EscapeString(DescribeRule(task.Rule)), task.DueDate.In(now.Location()).Format("15:04")))
	if eligibility.Reason != "" {
		sb.WriteString(fmt.Sprintf("\n   ℹ️ %s", html.EscapeString(eligibility.Reason)))
	}
	sb.WriteByte('\n')
	return sb.String()
}

func formatTask(task model.Task, catNames map[uint]string, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	if !task.DueDate.IsZero() {
		d := task.DueDate.In(now.Location())
		switch {
		case now.After(d):
			icon = "⚠️"
		case d.Sub(now) <= 48*time.Hour:
			icon = "⏳"
		}
	}
	sb.WriteString(fmt.Sprintf("%s %s%s", icon, escapeTitle(task.Title), categorySuffix(task, catNames)))

	if !task.DueDate.IsZero() {
		d := task.DueDate.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s — <b>overdue</b>", d.Format("2006-01-02")))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · ≈%d days left", d.Format("2006-01-02"), daysLeft))
		}
	}
	if task.Status == model.StatusDelayed {
		sb.WriteString(fmt.Sprintf("\n   ↪️ postponed %d×", task.DelayCount))
	}
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func categorySuffix(task model.Task, catNames map[uint]string) string {
	if task.CategoryID == nil {
		return ""
	}
	name := strings.TrimSpace(catNames[*task.CategoryID])
	if name == "" {
		return ""
	}
	return fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(name))
}

func escapeTitle(title string) string {
	return html.EscapeString(strings.TrimSpace(title))
}
