package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"routine-planner/internal/model"
	"routine-planner/internal/repository"
	"routine-planner/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
)

type confirmationAction int

const (
	actionComplete confirmationAction = iota
	actionDelete
)

type confirmationRequest struct {
	taskID uint
	action confirmationAction
}

// Services groups what the bot talks to.
type Services struct {
	Users      *repository.UserRepository
	Categories *service.CategoryService
	Tasks      *service.TaskService
	Reminders  *service.ReminderService
	Rollover   *service.RolloverService
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           *tgbotapi.BotAPI
	userRepo      *repository.UserRepository
	categorySvc   *service.CategoryService
	taskSvc       *service.TaskService
	reminderSvc   *service.ReminderService
	rolloverSvc   *service.RolloverService
	clock         func() time.Time
	log           *zap.Logger
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, svc Services, clock func() time.Time, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	if clock == nil {
		clock = time.Now
	}
	log = log.Named("bot")
	log.Info("bot authorized", zap.String("account", api.Self.UserName))

	return &Bot{
		api:           api,
		userRepo:      svc.Users,
		categorySvc:   svc.Categories,
		taskSvc:       svc.Tasks,
		reminderSvc:   svc.Reminders,
		rolloverSvc:   svc.Rollover,
		clock:         clock,
		log:           log,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error("handle callback", zap.Error(err))
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error("handle message", zap.Error(err))
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled. Start again whenever you like.")
	}

	if msg.IsCommand() {
		b.log.Debug("command", zap.Int64("from", msg.From.ID), zap.String("command", msg.Command()), zap.String("args", msg.CommandArguments()))
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Send /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "complete":
		return b.handleComplete(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "postpone":
		return b.handlePostpone(ctx, msg)
	case "categories":
		return b.handleCategories(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep your routines on schedule.</b>\n\n%s", escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

const helpText = "Commands:\n" +
	"• /newtask — add a one-off or repeating task step by step\n" +
	"• /tasks — show active tasks with complete and delete buttons\n" +
	"• /complete &lt;id&gt; — complete a task, e.g. /complete 3\n" +
	"• /postpone &lt;id&gt; &lt;YYYY-MM-DD&gt; — move a one-off task\n" +
	"• /delete &lt;id&gt; — delete a task\n" +
	"• /categories — list your categories\n" +
	"• /report — today's report\n" +
	"• /cancel — stop the current input"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Help</b>\n"+helpText)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.reminderSvc.DailySummary(ctx, *user, b.clock())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the report: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok, err := b.commandTaskID(msg, "/complete 12")
	if !ok {
		return err
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	result := b.taskSvc.CompleteTask(ctx, user, taskID, b.clock())
	return b.sendText(msg.Chat.ID, completionText(result))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok, err := b.commandTaskID(msg, "/delete 12")
	if !ok {
		return err
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.askDeleteConfirmation(ctx, msg.Chat.ID, user, taskID)
}

func (b *Bot) handlePostpone(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		return b.sendText(msg.Chat.ID, "Send the task ID and the new date: /postpone 12 2025-11-30")
	}
	taskID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return b.sendText(msg.Chat.ID, "The task ID must be a number.")
	}
	now := b.clock()
	dueDate, err := parseDeadline(strings.Join(args[1:], " "), now.Location())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Use the date format <code>2025-11-30</code> or <code>2025-11-30 18:00</code>.")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.PostponeTask(ctx, user, uint(taskID), dueDate, now)
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(service.UserMessage(err)))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("↪️ «%s» moved to %s.", escape(normalizeTitle(task.Title)), task.DueDate.In(now.Location()).Format("2006-01-02 15:04")))
}

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	categories, err := b.categorySvc.List(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load categories: %s", escape(err.Error())))
	}
	if len(categories) == 0 {
		return b.sendText(msg.Chat.ID, "No categories yet. Add one while creating a task.")
	}
	var builder strings.Builder
	builder.WriteString("📂 <b>Categories</b>\n")
	for _, cat := range categories {
		builder.WriteString(fmt.Sprintf("• %s\n", categoryLabel(cat.Name)))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return err
		}
		if req.action == actionDelete {
			return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, user, req.taskID)
		}
		return b.completeTaskAndRefresh(ctx, msg.Chat.ID, user, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "🔹 Main menu")
	default:
		prompt := "Confirm or cancel completing the task."
		if req.action == actionDelete {
			prompt = "Confirm or cancel deleting the task."
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, prompt, confirmKeyboard())
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelReport):
		return true, b.handleReport(ctx, msg)
	case strings.ToLower(menuLabelCategories):
		return true, b.handleCategories(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

// SendDailyReports sends a summary to every user known to Telegram.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := b.clock()
	for _, user := range users {
		if user.TelegramID == 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.reminderSvc.DailySummary(ctx, user, now)
		if err != nil {
			b.log.Error("build summary", zap.Uint("user_id", user.ID), zap.Error(err))
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			b.log.Error("send summary", zap.Int64("telegram_id", user.TelegramID), zap.Error(err))
		}
	}
	return nil
}

// ensureUser resolves the Telegram user and treats the message as a login: the
// first one of the day brings stale repeating tasks up to date.
func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	user, err := b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
	if err != nil {
		return nil, err
	}
	if b.rolloverSvc != nil {
		if _, err := b.rolloverSvc.HandleLogin(ctx, user.ID, b.clock()); err != nil {
			// The batch is retried on the next message; the user can still work.
			b.log.Warn("login rollover failed", zap.Uint("user_id", user.ID), zap.Error(err))
		}
	}
	return user, nil
}

func (b *Bot) commandTaskID(msg *tgbotapi.Message, example string) (uint, bool, error) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return 0, false, b.sendText(msg.Chat.ID, "Send the task ID: "+example)
	}
	taskID, err := strconv.ParseUint(args, 10, 64)
	if err != nil {
		return 0, false, b.sendText(msg.Chat.ID, "The task ID must be a number.")
	}
	return uint(taskID), true, nil
}

func completionText(result service.CompletionResult) string {
	if !result.Success {
		return "🚫 " + escape(result.Message)
	}
	title := ""
	if result.Task != nil {
		title = normalizeTitle(result.Task.Title)
	}
	if result.Task != nil && result.Task.IsRepeating {
		return fmt.Sprintf("♻️ «%s» done. %s", escape(title), escape(result.Message))
	}
	return fmt.Sprintf("✅ «%s» done.", escape(title))
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}
