// Package taskmanager управляет асинхронными прогонами генерации.
// Вместимость настраивается; сервер книг работает с вместимостью 1,
// сериализуя прогоны (в один момент времени выполняется не больше одного).
package taskmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrTooManyTasks возвращается, когда вместимость менеджера исчерпана.
// HTTP слой превращает ее в 409.
var ErrTooManyTasks = errors.New("превышено максимальное количество активных задач")

// ITaskManager определяет интерфейс для управления задачами.
type ITaskManager interface {
	SubmitTask(ctx context.Context, taskFunc TaskFunc) (uuid.UUID, error)
	GetTask(taskID uuid.UUID) (*TaskSnapshot, error)
	AppendTrace(taskID uuid.UUID, line string)
	CancelTask(taskID uuid.UUID) error
	CleanupTasks(age time.Duration)
	SetWebSocketNotifier(notifier WebSocketNotifier)
	Close()
	Shutdown(ctx context.Context) error
}

// WebSocketNotifier - хук для рассылки обновлений задач подключенным клиентам.
type WebSocketNotifier interface {
	Broadcast(messageType, topic string, payload interface{})
}

// TaskStatus представляет статус задачи.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// ProgressFunc сообщает ход выполнения изнутри задачи. Прогресс монотонный:
// значение меньше текущего игнорируется.
type ProgressFunc func(progress int, message string)

// TaskFunc - функция, выполняемая в задаче. Задача получает свой
// идентификатор и через report публикует промежуточный прогресс.
type TaskFunc func(ctx context.Context, taskID uuid.UUID, report ProgressFunc) (interface{}, error)

// Task представляет асинхронную задачу.
type Task struct {
	ID        uuid.UUID
	Status    TaskStatus
	Progress  int
	Message   string
	Trace     []string
	Result    interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
	Cancel    context.CancelFunc
}

// TaskSnapshot - копия состояния задачи для чтения снаружи без гонок.
type TaskSnapshot struct {
	ID        uuid.UUID   `json:"task_id"`
	Status    TaskStatus  `json:"status"`
	Progress  int         `json:"progress"`
	Message   string      `json:"message"`
	Trace     []string    `json:"trace,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Config содержит конфигурацию для TaskManager.
type Config struct {
	MaxTasks int
}

// TaskManager управляет асинхронными задачами.
type TaskManager struct {
	tasks      map[uuid.UUID]*Task
	mu         sync.RWMutex
	maxTasks   int
	closing    chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
	wsNotifier WebSocketNotifier
	logger     *zap.Logger
}

// New создает новый экземпляр TaskManager.
func New(cfg Config, logger *zap.Logger) *TaskManager {
	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 1
	}

	return &TaskManager{
		tasks:    make(map[uuid.UUID]*Task),
		maxTasks: maxTasks,
		closing:  make(chan struct{}),
		logger:   logger,
	}
}

// SubmitTask создает и запускает новую задачу. Если активных задач уже
// maxTasks, возвращает ErrTooManyTasks.
func (tm *TaskManager) SubmitTask(ctx context.Context, taskFunc TaskFunc) (uuid.UUID, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	select {
	case <-tm.closing:
		return uuid.UUID{}, errors.New("менеджер задач останавливается")
	default:
	}

	activeTasks := 0
	for _, task := range tm.tasks {
		if task.Status == TaskStatusPending || task.Status == TaskStatusRunning {
			activeTasks++
		}
	}
	if activeTasks >= tm.maxTasks {
		return uuid.UUID{}, ErrTooManyTasks
	}

	taskID := uuid.New()

	// Контекст задачи независим от контекста HTTP запроса
	taskCtx, cancel := context.WithCancel(context.Background())

	task := &Task{
		ID:        taskID,
		Status:    TaskStatusPending,
		Progress:  0,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Cancel:    cancel,
	}
	tm.tasks[taskID] = task

	tm.wg.Add(1)
	go func() {
		defer tm.wg.Done()
		defer cancel()
		tm.runTask(taskCtx, task, taskFunc)
	}()

	return taskID, nil
}

// runTask выполняет задачу и обновляет ее статус.
func (tm *TaskManager) runTask(ctx context.Context, task *Task, taskFunc TaskFunc) {
	tm.updateTask(task, TaskStatusRunning, 0, "Задача запущена", nil)

	report := func(progress int, message string) {
		tm.updateTask(task, TaskStatusRunning, progress, message, nil)
	}

	result, err := taskFunc(ctx, task.ID, report)

	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			tm.logger.Info("Контекст задачи был отменен", zap.String("task_id", task.ID.String()))
			tm.updateTask(task, TaskStatusCancelled, 0, "Задача отменена", nil)
		} else {
			tm.logger.Error("Ошибка контекста задачи",
				zap.String("task_id", task.ID.String()), zap.Error(ctx.Err()))
			tm.updateTask(task, TaskStatusFailed, 0, fmt.Sprintf("Ошибка контекста: %v", ctx.Err()), nil)
		}
		return
	}

	if err != nil {
		tm.logger.Error("Задача завершилась с ошибкой",
			zap.String("task_id", task.ID.String()), zap.Error(err))
		tm.updateTask(task, TaskStatusFailed, 0, fmt.Sprintf("Ошибка: %v", err), nil)
		return
	}

	tm.logger.Info("Задача успешно выполнена", zap.String("task_id", task.ID.String()))
	tm.updateTask(task, TaskStatusCompleted, 100, "Задача успешно выполнена", result)
}

// AppendTrace добавляет строку в трассу задачи. Трасса информационная
// и на статус не влияет.
func (tm *TaskManager) AppendTrace(taskID uuid.UUID, line string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if task, ok := tm.tasks[taskID]; ok {
		task.Trace = append(task.Trace, line)
	}
}

// updateTask обновляет состояние задачи и рассылает уведомление.
// Прогресс не убывает, финальные статусы не перезаписываются.
// 100% означает успешное завершение: при ошибке или отмене прогресс
// замораживается на последнем значении.
func (tm *TaskManager) updateTask(task *Task, status TaskStatus, progress int, message string, result interface{}) {
	tm.mu.Lock()

	if task.Status == TaskStatusCompleted || task.Status == TaskStatusFailed || task.Status == TaskStatusCancelled {
		tm.mu.Unlock()
		return
	}
	if status == TaskStatusFailed || status == TaskStatusCancelled {
		progress = task.Progress
	} else if progress < task.Progress {
		progress = task.Progress
	}

	task.Status = status
	task.Progress = progress
	task.Message = message
	task.UpdatedAt = time.Now()
	if result != nil {
		task.Result = result
	}

	notifier := tm.wsNotifier
	payload := map[string]interface{}{
		"task_id":    task.ID,
		"status":     task.Status,
		"progress":   task.Progress,
		"message":    task.Message,
		"updated_at": task.UpdatedAt,
	}
	if task.Status == TaskStatusCompleted && task.Result != nil {
		payload["result"] = task.Result
	}
	tm.mu.Unlock()

	if notifier != nil {
		notifier.Broadcast("task_update", "tasks", payload)
	}

	tm.logger.Debug("Статус задачи обновлен",
		zap.String("task_id", task.ID.String()),
		zap.String("status", string(status)),
		zap.Int("progress", progress),
		zap.String("message", message))
}

// GetTask возвращает снимок состояния задачи по ID.
func (tm *TaskManager) GetTask(taskID uuid.UUID) (*TaskSnapshot, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	task, ok := tm.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("задача с ID %s не найдена", taskID)
	}

	snapshot := &TaskSnapshot{
		ID:        task.ID,
		Status:    task.Status,
		Progress:  task.Progress,
		Message:   task.Message,
		Trace:     append([]string(nil), task.Trace...),
		Result:    task.Result,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
	return snapshot, nil
}

// CancelTask отменяет выполнение задачи.
func (tm *TaskManager) CancelTask(taskID uuid.UUID) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task, ok := tm.tasks[taskID]
	if !ok {
		return fmt.Errorf("задача с ID %s не найдена", taskID)
	}

	if task.Status != TaskStatusPending && task.Status != TaskStatusRunning {
		return fmt.Errorf("невозможно отменить задачу в статусе %s", task.Status)
	}

	if task.Cancel != nil {
		task.Cancel()
	}

	task.Status = TaskStatusCancelled
	task.Message = "Задача отменена пользователем"
	task.UpdatedAt = time.Now()
	return nil
}

// CleanupTasks удаляет завершенные задачи старше указанного возраста.
func (tm *TaskManager) CleanupTasks(age time.Duration) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	now := time.Now()
	for id, task := range tm.tasks {
		if (task.Status == TaskStatusCompleted || task.Status == TaskStatusFailed || task.Status == TaskStatusCancelled) &&
			now.Sub(task.UpdatedAt) > age {
			delete(tm.tasks, id)
		}
	}
}

// SetWebSocketNotifier устанавливает хук рассылки обновлений.
func (tm *TaskManager) SetWebSocketNotifier(notifier WebSocketNotifier) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.wsNotifier = notifier
}

// Close закрывает менеджер задач и отменяет все незавершенные задачи.
// Close и Shutdown можно вызывать в любом порядке и повторно.
func (tm *TaskManager) Close() {
	tm.closeOnce.Do(func() { close(tm.closing) })
	tm.mu.Lock()
	for _, task := range tm.tasks {
		if task.Status == TaskStatusPending || task.Status == TaskStatusRunning {
			if task.Cancel != nil {
				task.Cancel()
			}
		}
	}
	tm.mu.Unlock()

	tm.wg.Wait()
}

// Shutdown ожидает завершения всех задач с таймаутом.
func (tm *TaskManager) Shutdown(ctx context.Context) error {
	tm.closeOnce.Do(func() { close(tm.closing) })

	done := make(chan struct{})
	go func() {
		tm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("таймаут при ожидании завершения задач")
	}
}
