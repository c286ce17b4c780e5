package models

import "time"

// Task kinds.
const (
	KindTask  = "task"
	KindEvent = "event"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GlobalOwnerID marks the shared AiSettings row.
const GlobalOwnerID int64 = 0

// Project groups tasks. A nil OwnerID means the project is shared.
type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   *int64    `gorm:"index" json:"owner_id"`
	Name      string    `json:"name"`
	Color     string    `gorm:"default:#BBF7D0" json:"color"`
	CreatedAt time.Time `json:"created_at"`

	Tasks []Task `gorm:"foreignKey:ProjectID" json:"-"`
}

// Task is a unit of work or a calendar event (Kind). A nil OwnerID means the
// task is visible to everyone.
type Task struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	OwnerID       *int64     `gorm:"index" json:"owner_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Deadline      *time.Time `gorm:"index" json:"deadline"`
	DurationHours float64    `gorm:"default:1" json:"duration_hours"`
	Priority      string     `gorm:"default:medium" json:"priority"`   // low|medium|high
	Importance    string     `gorm:"default:medium" json:"importance"` // low|medium|high
	Kind          string     `gorm:"default:task" json:"kind"`         // task|event
	EventStart    *time.Time `json:"event_start"`
	EventEnd      *time.Time `json:"event_end"`
	ProjectID     *uint      `json:"project_id"`
	CreatedAt     time.Time  `json:"created_at"`
}

// UserSettings holds per-weekday capacity hours.
type UserSettings struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   int64     `gorm:"index" json:"owner_id"`
	HoursMon  int       `gorm:"default:9" json:"hours_mon"`
	HoursTue  int       `gorm:"default:9" json:"hours_tue"`
	HoursWed  int       `gorm:"default:9" json:"hours_wed"`
	HoursThu  int       `gorm:"default:9" json:"hours_thu"`
	HoursFri  int       `gorm:"default:9" json:"hours_fri"`
	HoursSat  int       `gorm:"default:9" json:"hours_sat"`
	HoursSun  int       `gorm:"default:9" json:"hours_sun"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AiSettings holds the OpenAI credentials used by the assistant. The row with
// OwnerID == GlobalOwnerID is the shared fallback.
type AiSettings struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OwnerID      int64     `gorm:"index" json:"owner_id"`
	OpenAIAPIKey string    `gorm:"column:openai_api_key" json:"openai_api_key"`
	OpenAIModel  string    `gorm:"column:openai_model;default:gpt-5" json:"openai_model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName keeps the table aligned with the column prefix.
func (AiSettings) TableName() string { return "ai_settings" }

// ChatMessage is one turn of the assistant conversation. Rows are append-only
// and removed only in bulk when the owner clears their context.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   int64     `gorm:"index" json:"owner_id"`
	Role      string    `json:"role"` // system|user|assistant
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
