package models

import "time"

// Participation statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentConfirmed = "confirmed"
	PaymentCancelled = "cancelled"
)

// Attendance statuses.
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
	AttendanceExcused = "excused"
)

// Weather conditions.
const (
	ConditionSunny  = "sunny"
	ConditionCloudy = "cloudy"
	ConditionRainy  = "rainy"
	ConditionSnowy  = "snowy"
)

// UV index buckets.
const (
	UVLow      = "low"
	UVModerate = "moderate"
	UVHigh     = "high"
	UVVeryHigh = "very-high"
)

// WeatherFreshness is how long a per-event snapshot stays valid.
const WeatherFreshness = 24 * time.Hour

type Event struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Date            time.Time        `json:"date"`
	Location        string           `json:"location"`
	MaxParticipants int              `json:"maxParticipants"`
	Cost            string           `json:"cost"` // free text, e.g. "60,000원"
	IsSpecial       bool             `json:"isSpecial"`
	IsDraft         bool             `json:"isDraft"`
	IsPublished     bool             `json:"isPublished"`
	Status          string           `json:"status,omitempty"`
	Weather         *WeatherSnapshot `json:"weather,omitempty"`
	Schedule        []string         `json:"schedule,omitempty"`
	Courses         []string         `json:"courses,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`

	// CurrentParticipants is a display counter. Never read it as the truth;
	// events.CountActive is.
	CurrentParticipants int `json:"currentParticipants"`
}

type Participation struct {
	ID                 string     `json:"id"`
	EventID            string     `json:"eventId"`
	UserID             string     `json:"userId"`
	UserName           string     `json:"userName"`
	UserEmail          string     `json:"userEmail"`
	IsGuest            bool       `json:"isGuest"`
	Status             string     `json:"status"` // pending/confirmed/cancelled
	TeamID             string     `json:"teamId,omitempty"`
	TeamName           string     `json:"teamName,omitempty"`
	RegisteredAt       time.Time  `json:"registeredAt"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Active reports whether the participation still holds a seat.
func (p Participation) Active() bool { return p.Status != StatusCancelled }

type Payment struct {
	ID              string     `json:"id"`
	ParticipationID string     `json:"participationId"`
	EventID         string     `json:"eventId"`
	UserID          string     `json:"userId"`
	Amount          int64      `json:"amount"` // smallest currency unit
	Status          string     `json:"paymentStatus"`
	PaymentDate     *time.Time `json:"paymentDate,omitempty"`
	Memo            string     `json:"memo"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// TeamMember is captured at assignment time, not a live reference.
type TeamMember struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
}

type Team struct {
	ID         string       `json:"id"`
	EventID    string       `json:"eventId"`
	Number     int          `json:"number"`
	LeaderID   string       `json:"leaderId,omitempty"`
	LeaderName string       `json:"leaderName,omitempty"`
	Members    []TeamMember `json:"members"`
}

type AttendanceRecord struct {
	ID          string     `json:"id"`
	EventID     string     `json:"eventId"`
	UserID      string     `json:"userId"`
	UserName    string     `json:"userName"`
	Status      string     `json:"attendanceStatus"`
	CheckInTime *time.Time `json:"checkInTime,omitempty"`
	RecordedBy  string     `json:"recordedBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type WeatherSnapshot struct {
	Temperature   float64   `json:"temperature"`
	FeelsLike     float64   `json:"feelsLike"`
	Condition     string    `json:"condition"`
	Precipitation int       `json:"precipitation"` // percent
	WindSpeed     float64   `json:"windSpeed"`     // m/s
	Humidity      int       `json:"humidity"`      // percent
	UVIndex       string    `json:"uvIndex"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// IsFresh reports whether the snapshot is younger than WeatherFreshness.
func (w *WeatherSnapshot) IsFresh(now time.Time) bool {
	if w == nil || w.LastUpdated.IsZero() {
		return false
	}
	return now.Sub(w.LastUpdated) < WeatherFreshness
}

// ValidParticipationStatus reports whether s is a known participation status.
func ValidParticipationStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// ValidAttendanceStatus reports whether s is a known attendance status.
func ValidAttendanceStatus(s string) bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}
