package bot

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"routine-planner/internal/model"
	"routine-planner/internal/recurrence"
	"routine-planner/internal/service"
)

const (
	noCategory    = "No category"
	noCategoryKey = "__no_category__"
	iconDefault   = "🟢"
	iconDue       = "⏳"
	iconOverdue   = "⚠️"
	iconRecurring = "♻️"
	iconDoneToday = "✅"
)

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizedCategory(categoryID *uint, catNames map[uint]string) (string, string) {
	if categoryID == nil {
		return noCategoryKey, categoryLabel(noCategory)
	}
	if name, ok := catNames[*categoryID]; ok {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return noCategoryKey, categoryLabel(noCategory)
		}
		return strings.ToLower(trimmed), categoryLabel(trimmed)
	}
	return noCategoryKey, categoryLabel(noCategory)
}

func formatTask(task model.Task, now time.Time) string {
	var b strings.Builder
	icon := iconDefault
	if !task.DueDate.IsZero() {
		d := task.DueDate.In(now.Location())
		if now.After(d) {
			icon = iconOverdue
		} else if d.Sub(now) <= 48*time.Hour {
			icon = iconDue
		}
	}
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s\n", icon, task.ID, escape(normalizeTitle(task.Title))))
	if !task.DueDate.IsZero() {
		d := task.DueDate.In(now.Location())
		if now.After(d) {
			b.WriteString(fmt.Sprintf("   ⏰ Due: %s — <b>overdue</b>\n", d.Format("2006-01-02 15:04")))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			b.WriteString(fmt.Sprintf("   ⏰ Due: %s · ≈%d days left\n", d.Format("2006-01-02 15:04"), daysLeft))
		}
	}
	if task.Status == model.StatusDelayed {
		b.WriteString(fmt.Sprintf("   ↪️ Postponed %d×\n", task.DelayCount))
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	b.WriteByte('\n')
	return b.String()
}

func formatRecurringTask(task model.Task, now time.Time) string {
	var b strings.Builder
	eligibility := recurrence.Evaluate(task, now)

	icon := iconRecurring
	switch {
	case eligibility.CanCompleteNow:
		icon = iconDefault
	case eligibility.IsDueToday && completedToday(task, now):
		icon = iconDoneToday
	case task.Risk:
		icon = iconOverdue
	}
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s\n", icon, task.ID, escape(normalizeTitle(task.Title))))
	b.WriteString(fmt.Sprintf("   🔄 %s · due %s\n", escape(service.DescribeRule(task.Rule)), task.DueDate.In(now.Location()).Format("Mon 15:04")))
	if task.StartTime.Valid {
		b.WriteString(fmt.Sprintf("   🕘 From %s\n", task.StartTime))
	}
	if eligibility.Reason != "" {
		b.WriteString(fmt.Sprintf("   ℹ️ %s\n", escape(eligibility.Reason)))
	}
	if task.Risk {
		b.WriteString(fmt.Sprintf("   ⚠️ At risk: %s\n", escape(service.RiskNote(task, now))))
	}
	b.WriteByte('\n')
	return b.String()
}

// formatCreated summarises a freshly stored task.
func formatCreated(task model.Task, loc *time.Location) string {
	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(task.Description)))
	}
	if task.IsRepeating {
		summary.WriteString(fmt.Sprintf("• <b>Repeats:</b> %s\n", escape(service.DescribeRule(task.Rule))))
		summary.WriteString(fmt.Sprintf("• <b>First due:</b> %s\n", task.DueDate.In(loc).Format("Mon 2006-01-02 15:04")))
		if task.StartTime.Valid {
			summary.WriteString(fmt.Sprintf("• <b>Available from:</b> %s\n", task.StartTime))
		}
	} else if !task.DueDate.IsZero() {
		summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueDate.In(loc).Format("2006-01-02 15:04")))
	}
	return strings.TrimSpace(summary.String())
}

func completedToday(task model.Task, now time.Time) bool {
	last := task.Rule.LastInstanceCompletedDate
	if last == nil {
		return false
	}
	ly, lm, ld := last.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return ly == ny && lm == nm && ld == nd
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func categoryLabel(name string) string {
	base := strings.TrimSpace(name)
	var icon string
	switch strings.ToLower(base) {
	case "study":
		icon = "🎓"
	case "work":
		icon = "💼"
	case "home":
		icon = "🏠"
	case "health":
		icon = "🩺"
	case strings.ToLower(noCategory):
		icon = "📁"
	default:
		icon = "🏷️"
	}
	return fmt.Sprintf("%s %s", icon, escape(normalizeTitle(base)))
}
