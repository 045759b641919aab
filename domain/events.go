package domain

// StatusChange announces that a task's completion flag changed. It is a
// process-local notification only; the store remains the source of truth.
type StatusChange struct {
	TaskID string `json:"taskId"`
	Done   bool   `json:"done"`
}
