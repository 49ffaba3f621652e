package walk

import "time"

// Walk modes. A wait walk runs its steps through the task queue with
// delays between them; a bypass walk executes every step inline.
const (
	ModeWait   = "wait"
	ModeBypass = "bypass"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is the persisted cursor of one lifecycle walk. Step records the last
// completed step, so a crash mid-walk is visible and resumable instead of
// silently abandoning the booking.
type Run struct {
	ID          string     `gorm:"column:id;primaryKey"`
	BookingID   string     `gorm:"column:booking_id;index;not null"`
	Mode        string     `gorm:"column:mode;not null"`
	Step        int        `gorm:"column:step;not null;default:0"`
	Status      string     `gorm:"column:status;index;not null"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Run) TableName() string {
	return "walk_runs"
}
