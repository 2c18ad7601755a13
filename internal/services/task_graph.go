package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nocturne-lab/projecthub/internal/models"
	"gorm.io/gorm"
)

var (
	ErrSelfDependency           = errors.New("a task cannot depend on itself")
	ErrDependencyTargetNotFound = errors.New("dependency target task not found")
	ErrDependencyExists         = errors.New("dependency already exists")
	ErrDependencyNotFound       = errors.New("dependency not found")
	ErrInvalidDependencyType    = errors.New("invalid dependency type")
	ErrCycleDetected            = errors.New("adding this dependency would create a circular reference")
)

// BlockingTask identifies an unfinished dependency that blocks a status
// transition.
type BlockingTask struct {
	ID    uint64 `json:"id"`
	Title string `json:"title"`
}

// BlockedError is returned when a status transition is rejected because
// dependency targets are unfinished. It carries the blocking tasks so
// the UI can display them.
type BlockedError struct {
	Blockers []BlockingTask
}

func (e *BlockedError) Error() string {
	titles := make([]string, len(e.Blockers))
	for i, b := range e.Blockers {
		titles[i] = b.Title
	}
	return fmt.Sprintf("task is blocked by unfinished dependencies: %s", strings.Join(titles, ", "))
}

// AddDependency records that taskID depends on dependsOnID. The edge is
// rejected when it is a self-dependency, the target does not exist, the
// edge is already present, or it would close a cycle.
func (s *TaskService) AddDependency(taskID, dependsOnID uint64, depType models.DependencyType) (*models.TaskDependency, error) {
	if taskID == dependsOnID {
		return nil, ErrSelfDependency
	}

	if depType == "" {
		depType = models.DependencyFinishToStart
	}
	if !models.ValidDependencyType(depType) {
		return nil, ErrInvalidDependencyType
	}

	if _, err := s.taskRepo.FindByID(taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if _, err := s.taskRepo.FindByID(dependsOnID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDependencyTargetNotFound
		}
		return nil, fmt.Errorf("failed to find dependency target: %w", err)
	}

	existing, err := s.taskRepo.ListDependencies(taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}
	for _, dep := range existing {
		if dep.DependsOnTaskID == dependsOnID {
			return nil, ErrDependencyExists
		}
	}

	reachable, err := s.isReachable(dependsOnID, taskID)
	if err != nil {
		return nil, err
	}
	if reachable {
		return nil, ErrCycleDetected
	}

	dep := &models.TaskDependency{
		TaskID:          taskID,
		DependsOnTaskID: dependsOnID,
		Type:            depType,
	}
	if err := s.taskRepo.AddDependency(dep); err != nil {
		return nil, fmt.Errorf("failed to add dependency: %w", err)
	}
	return dep, nil
}

// isReachable reports whether target is reachable from start by
// following dependency edges. Depth-first with an explicit stack and a
// visited set, so diamonds terminate and deep chains cannot overflow.
func (s *TaskService) isReachable(start, target uint64) (bool, error) {
	visited := make(map[uint64]struct{})
	stack := []uint64{start}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if id == target {
			return true, nil
		}
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}

		deps, err := s.taskRepo.ListDependencies(id)
		if err != nil {
			return false, fmt.Errorf("failed to traverse dependencies of %d: %w", id, err)
		}
		for _, dep := range deps {
			if _, ok := visited[dep.DependsOnTaskID]; !ok {
				stack = append(stack, dep.DependsOnTaskID)
			}
		}
	}
	return false, nil
}

// RemoveDependency deletes the edge taskID -> dependsOnID. Removal needs
// no validation beyond existence.
func (s *TaskService) RemoveDependency(taskID, dependsOnID uint64) error {
	affected, err := s.taskRepo.RemoveDependency(taskID, dependsOnID)
	if err != nil {
		return fmt.Errorf("failed to remove dependency: %w", err)
	}
	if affected == 0 {
		return ErrDependencyNotFound
	}
	return nil
}

// CanTransition checks whether a task may move to newStatus. Moving to
// in_progress or completed requires every dependency target to be
// completed or closed; other transitions are unrestricted. On rejection
// the returned *BlockedError lists the blocking tasks.
func (s *TaskService) CanTransition(task *models.Task, newStatus models.TaskStatus) error {
	if newStatus != models.TaskStatusInProgress && newStatus != models.TaskStatusCompleted {
		return nil
	}

	deps, err := s.taskRepo.ListDependencies(task.ID)
	if err != nil {
		return fmt.Errorf("failed to list dependencies: %w", err)
	}
	if len(deps) == 0 {
		return nil
	}

	targetIDs := make([]uint64, len(deps))
	for i, dep := range deps {
		targetIDs[i] = dep.DependsOnTaskID
	}

	targets, err := s.taskRepo.FindByIDs(targetIDs)
	if err != nil {
		return fmt.Errorf("failed to load dependency targets: %w", err)
	}

	var blockers []BlockingTask
	for _, target := range targets {
		if !target.Status.IsFinished() {
			blockers = append(blockers, BlockingTask{ID: target.ID, Title: target.Title})
		}
	}

	if len(blockers) > 0 {
		return &BlockedError{Blockers: blockers}
	}
	return nil
}

// ListDependencies returns the outgoing edges of a task with target
// tasks loaded.
func (s *TaskService) ListDependencies(taskID uint64) ([]models.TaskDependency, error) {
	if _, err := s.taskRepo.FindByID(taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	deps, err := s.taskRepo.ListDependencies(taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}

	ids := make([]uint64, len(deps))
	for i, dep := range deps {
		ids[i] = dep.DependsOnTaskID
	}
	targets, err := s.taskRepo.FindByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load dependency targets: %w", err)
	}
	byID := make(map[uint64]models.Task, len(targets))
	for _, t := range targets {
		byID[t.ID] = t
	}
	for i := range deps {
		if t, ok := byID[deps[i].DependsOnTaskID]; ok {
			deps[i].DependsOn = t
		}
	}
	return deps, nil
}
