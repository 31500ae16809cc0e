package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"routine-planner/internal/model"
	"routine-planner/internal/recurrence"
	"routine-planner/internal/repository"
	"routine-planner/internal/service"
)

// Handler handles HTTP requests
type Handler struct {
	users    *repository.UserRepository
	tasks    *service.TaskService
	rollover *service.RolloverService
	clock    func() time.Time
	log      *zap.Logger
}

// NewHandler creates a new HTTP handler. clock supplies "now" for every request.
func NewHandler(users *repository.UserRepository, tasks *service.TaskService, rollover *service.RolloverService, clock func() time.Time, log *zap.Logger) *Handler {
	if clock == nil {
		clock = time.Now
	}
	return &Handler{users: users, tasks: tasks, rollover: rollover, clock: clock, log: log.Named("http")}
}

// Health handles GET /healthz
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Login handles POST /users/:id/login and runs the daily rollover when it is due.
func (h *Handler) Login(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}
	report, err := h.rollover.HandleLogin(c.Request.Context(), user.ID, h.clock())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{
		RunID:   report.RunID,
		Skipped: report.Skipped,
		Scanned: report.Scanned,
		Updated: report.Updated,
	})
}

// ListTasks handles GET /users/:id/tasks
func (h *Handler) ListTasks(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}
	tasks, err := h.tasks.ListActive(c.Request.Context(), user)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, NewTaskResponse(task))
	}
	c.JSON(http.StatusOK, resp)
}

// CreateTask handles POST /users/:id/tasks
func (h *Handler) CreateTask(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	input, err := req.ToInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	task, err := h.tasks.CreateTask(c.Request.Context(), user, input, h.clock())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewTaskResponse(*task))
}

// Eligibility handles GET /users/:id/tasks/:taskID/eligibility
func (h *Handler) Eligibility(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}
	taskID, ok := h.taskID(c)
	if !ok {
		return
	}
	_, eligibility, err := h.tasks.Eligibility(c.Request.Context(), user, taskID, h.clock())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewEligibilityResponse(taskID, eligibility))
}

// CompleteTask handles POST /users/:id/tasks/:taskID/complete
func (h *Handler) CompleteTask(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}
	taskID, ok := h.taskID(c)
	if !ok {
		return
	}

	result := h.tasks.CompleteTask(c.Request.Context(), user, taskID, h.clock())
	resp := CompletionResponse{Success: result.Success, Message: result.Message}
	if result.Task != nil {
		task := NewTaskResponse(*result.Task)
		resp.Task = &task
	}
	if !result.Success {
		c.JSON(statusFor(result.Err), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteTask handles DELETE /users/:id/tasks/:taskID
func (h *Handler) DeleteTask(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}
	taskID, ok := h.taskID(c)
	if !ok {
		return
	}
	if err := h.tasks.DeleteTask(c.Request.Context(), user, taskID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) user(c *gin.Context) (*model.User, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_user_id", Message: "user id must be a positive integer"})
		return nil, false
	}
	user, err := h.users.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return user, true
}

func (h *Handler) taskID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("taskID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_task_id", Message: "task id must be a positive integer"})
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Error: codeFor(status), Message: service.UserMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, recurrence.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, recurrence.ErrNotDue),
		errors.Is(err, service.ErrAlreadyCompleted),
		errors.Is(err, repository.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, recurrence.ErrNotRepeating),
		errors.Is(err, recurrence.ErrNoRepetitionRule),
		errors.Is(err, recurrence.ErrModeMismatch),
		errors.Is(err, service.ErrRepeatingPostpone):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "unprocessable"
	default:
		return "internal_error"
	}
}
