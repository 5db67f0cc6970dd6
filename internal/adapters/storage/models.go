package storage

import "time"

// ActiveTrackingModel is the GORM model for the live tracking row.
// UpdatedAt holds the event-time watermark, so the domain owns it; GORM
// must never stamp wall-clock time into it.
type ActiveTrackingModel struct {
	CooldownExpiresAt *time.Time
	CreatedAt         time.Time
	EnterAt           *time.Time
	ExitAt            *time.Time
	LocationID        string    `gorm:"default:''"`
	LocationName      string    `gorm:"default:''"`
	PauseSeconds      int64     `gorm:"not null;default:0"`
	SessionID         string    `gorm:"default:''"`
	Status            string    `gorm:"not null;default:'IDLE';check:status IN ('IDLE','TRACKING','EXIT_PENDING')"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime:false"`
	UserID            string    `gorm:"primaryKey"`
}

// TableName specifies the table name for GORM
func (ActiveTrackingModel) TableName() string { return "active_tracking" }

// WorkSessionModel is the GORM model for work sessions
type WorkSessionModel struct {
	BreakSeconds    int64      `gorm:"not null;default:0"`
	Confidence      float64    `gorm:"not null;default:0"`
	CreatedAt       time.Time
	DeletedAt       *time.Time `gorm:"index:idx_sessions_deleted;default:null"`
	DurationMinutes int64      `gorm:"not null;default:0"`
	EnterAt         time.Time  `gorm:"not null;index:idx_sessions_enter"`
	ExitAt          *time.Time `gorm:"default:null"`
	FieldSources    string     `gorm:"default:''"`
	ID              string     `gorm:"primaryKey"`
	LocationID      string     `gorm:"default:''"`
	LocationName    string     `gorm:"default:''"`
	Notes           string     `gorm:"default:''"`
	Source          string     `gorm:"not null;default:'sdk'"`
	SyncedAt        *time.Time `gorm:"default:null"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime:false"`
	UserID          string     `gorm:"not null;index:idx_sessions_user"`
}

// TableName specifies the table name for GORM
func (WorkSessionModel) TableName() string { return "work_sessions" }

// DaySummaryModel is the GORM model for derived day summaries
type DaySummaryModel struct {
	BreakMinutes    int64      `gorm:"not null;default:0"`
	CreatedAt       time.Time
	Date            string     `gorm:"primaryKey"`
	FirstEntry      *time.Time `gorm:"default:null"`
	Flags           string     `gorm:"default:''"`
	LastExit        *time.Time `gorm:"default:null"`
	Notes           string     `gorm:"default:''"`
	PrimaryLocation string     `gorm:"default:''"`
	SessionsCount   int        `gorm:"not null;default:0"`
	SourceMix       string     `gorm:"default:''"`
	SyncedAt        *time.Time `gorm:"default:null"`
	TotalMinutes    int64      `gorm:"not null;default:0"`
	Type            string     `gorm:"not null;default:'off'"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime:false"`
	UserID          string     `gorm:"primaryKey"`
}

// TableName specifies the table name for GORM
func (DaySummaryModel) TableName() string { return "day_summaries" }

// GeofenceLocationModel is the GORM model for worker-owned fences
type GeofenceLocationModel struct {
	Active    bool    `gorm:"not null;default:true"`
	Color     string  `gorm:"default:''"`
	CreatedAt time.Time
	ID        string  `gorm:"primaryKey"`
	Latitude  float64 `gorm:"not null;default:0"`
	Longitude float64 `gorm:"not null;default:0"`
	Name      string  `gorm:"not null;default:''"`
	RadiusM   float64 `gorm:"not null;default:0"`
	UpdatedAt time.Time
	UserID    string  `gorm:"not null;index:idx_fences_user"`
}

// TableName specifies the table name for GORM
func (GeofenceLocationModel) TableName() string { return "geofence_locations" }

// AICorrectionModel is the GORM model for the correction audit log
type AICorrectionModel struct {
	CorrectedValue string `gorm:"default:''"`
	CreatedAt      time.Time
	Date           string `gorm:"not null;index:idx_corrections_date"`
	Field          string `gorm:"not null"`
	ID             string `gorm:"primaryKey"`
	OriginalValue  string `gorm:"default:''"`
	Reason         string `gorm:"default:''"`
	Reverted       bool   `gorm:"not null;default:false"`
	SessionID      string `gorm:"not null;index:idx_corrections_session"`
	Source         string `gorm:"not null"`
	UserID         string `gorm:"not null;index:idx_corrections_user"`
}

// TableName specifies the table name for GORM
func (AICorrectionModel) TableName() string { return "ai_corrections" }

// QueuedEffectModel is the GORM model for the durable effects queue
type QueuedEffectModel struct {
	CreatedAt  time.Time
	DedupKey   string    `gorm:"not null;index:idx_effects_dedup"`
	EffectType string    `gorm:"not null"`
	ID         string    `gorm:"primaryKey"`
	NextRunAt  time.Time `gorm:"not null;index:idx_effects_next_run"`
	Payload    string    `gorm:"default:''"`
	Priority   string    `gorm:"not null;default:'normal';check:priority IN ('critical','normal')"`
	RetryCount int       `gorm:"not null;default:0"`
	Status     string    `gorm:"not null;default:'pending';index:idx_effects_status;check:status IN ('pending','done','failed')"`
	UpdatedAt  time.Time
}

// TableName specifies the table name for GORM
func (QueuedEffectModel) TableName() string { return "queued_effects" }

// SyncStateModel is the GORM model for per-user sync watermarks
type SyncStateModel struct {
	CreatedAt    time.Time
	LastSyncedAt time.Time
	UpdatedAt    time.Time
	UserID       string `gorm:"primaryKey"`
}

// TableName specifies the table name for GORM
func (SyncStateModel) TableName() string { return "sync_states" }
