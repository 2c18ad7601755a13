package models

import "time"

type DependencyType string

const (
	DependencyFinishToStart  DependencyType = "finish_to_start"
	DependencyStartToStart   DependencyType = "start_to_start"
	DependencyFinishToFinish DependencyType = "finish_to_finish"
	DependencyStartToFinish  DependencyType = "start_to_finish"
)

// ValidDependencyType reports whether t is one of the known dependency types.
func ValidDependencyType(t DependencyType) bool {
	switch t {
	case DependencyFinishToStart, DependencyStartToStart, DependencyFinishToFinish, DependencyStartToFinish:
		return true
	}
	return false
}

// TaskDependency is an edge in the dependency graph: TaskID depends on
// DependsOnTaskID.
type TaskDependency struct {
	TaskID          uint64         `gorm:"primarykey" json:"task_id"`
	DependsOnTaskID uint64         `gorm:"primarykey" json:"depends_on_task_id"`
	Type            DependencyType `gorm:"type:varchar(20);not null;default:'finish_to_start'" json:"type"`
	CreatedAt       time.Time      `json:"created_at"`

	// Relations
	Task      Task `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	DependsOn Task `gorm:"foreignKey:DependsOnTaskID" json:"depends_on,omitempty"`
}
