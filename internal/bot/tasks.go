package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"routine-planner/internal/model"
	"routine-planner/internal/service"
)

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.taskSvc.ListActive(ctx, user)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}

	catNames, err := b.categorySvc.Names(ctx, user)
	if err != nil {
		b.log.Warn("load categories", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	text, buttons := renderTaskList(tasks, catNames, b.clock())
	if len(buttons) == 0 {
		return b.sendText(chatID, text)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

type categoryGroup struct {
	name  string
	tasks []model.Task
}

// renderTaskList groups active tasks by category and builds one button row per task.
func renderTaskList(tasks []model.Task, catNames map[uint]string, now time.Time) (string, [][]tgbotapi.InlineKeyboardButton) {
	groups := make(map[string]*categoryGroup)
	order := make([]string, 0, len(tasks))

	for _, task := range tasks {
		if !task.IsRepeating && task.IsCompleted() {
			continue
		}
		key, display := normalizedCategory(task.CategoryID, catNames)
		group, ok := groups[key]
		if !ok {
			group = &categoryGroup{name: display}
			groups[key] = group
			order = append(order, key)
		}
		group.tasks = append(group.tasks, task)
	}

	if len(groups) == 0 {
		return "You have no active tasks. Add one with /newtask.", nil
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i] == noCategoryKey {
			return false
		}
		if order[j] == noCategoryKey {
			return true
		}
		return strings.Compare(groups[order[i]].name, groups[order[j]].name) < 0
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Active tasks</b>\n")
	builder.WriteString("Tap a button to complete or delete a task.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, key := range order {
		section := groups[key]
		sort.SliceStable(section.tasks, func(i, j int) bool {
			a, c := section.tasks[i], section.tasks[j]
			if a.IsRepeating != c.IsRepeating {
				return !a.IsRepeating
			}
			if !a.DueDate.Equal(c.DueDate) {
				return a.DueDate.Before(c.DueDate)
			}
			return a.ID < c.ID
		})

		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", section.name))
		for _, task := range section.tasks {
			if task.IsRepeating {
				builder.WriteString(formatRecurringTask(task, now))
			} else {
				builder.WriteString(formatTask(task, now))
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 20)), fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)),
				tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
			))
		}
	}

	return strings.TrimSpace(builder.String()), buttons
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn("callback ack", zap.Error(err))
	}

	data := cb.Data
	var (
		prefix string
		action confirmationAction
	)
	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		prefix, action = cbCompletePrefix, actionComplete
	case strings.HasPrefix(data, cbDeletePrefix):
		prefix, action = cbDeletePrefix, actionDelete
	default:
		return nil
	}

	taskID, err := parseTaskID(data, prefix)
	if err != nil {
		return nil
	}
	b.log.Debug("callback", zap.Int64("from", cb.From.ID), zap.String("data", data))

	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		return err
	}
	if action == actionDelete {
		return b.askDeleteConfirmation(ctx, cb.Message.Chat.ID, user, taskID)
	}
	return b.askCompleteConfirmation(ctx, cb.Message.Chat.ID, user, taskID)
}

// askCompleteConfirmation checks eligibility first so the user is never asked to
// confirm something that would be refused.
func (b *Bot) askCompleteConfirmation(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, eligibility, err := b.taskSvc.Eligibility(ctx, user, taskID, b.clock())
	if err != nil {
		return b.sendText(chatID, escape(service.UserMessage(err)))
	}

	if task.IsRepeating && !eligibility.CanCompleteNow {
		return b.sendText(chatID, fmt.Sprintf("⏳ «%s»: %s", escape(normalizeTitle(task.Title)), escape(eligibility.Reason)))
	}
	if !task.IsRepeating && task.IsCompleted() {
		return b.sendText(chatID, "The task is already completed.")
	}

	text := fmt.Sprintf("Mark «%s» (#%d) as done?", escape(normalizeTitle(task.Title)), task.ID)
	b.setConfirmation(user.TelegramID, confirmationRequest{taskID: task.ID, action: actionComplete})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		if notFound(err) {
			return b.sendText(chatID, "Task not found.")
		}
		return err
	}

	text := fmt.Sprintf("Delete «%s» (#%d)?", escape(normalizeTitle(task.Title)), task.ID)
	b.setConfirmation(user.TelegramID, confirmationRequest{taskID: task.ID, action: actionDelete})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	result := b.taskSvc.CompleteTask(ctx, user, taskID, b.clock())
	if err := b.sendText(chatID, completionText(result)); err != nil {
		return err
	}
	if !result.Success {
		return nil
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		return b.sendText(chatID, escape(service.UserMessage(err)))
	}
	if err := b.taskSvc.DeleteTask(ctx, user, taskID); err != nil {
		return b.sendText(chatID, escape(service.UserMessage(err)))
	}

	b.log.Info("task deleted", zap.Uint("task_id", task.ID), zap.Uint("user_id", user.ID))
	if err := b.sendText(chatID, fmt.Sprintf("🗑 «%s» deleted.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}
