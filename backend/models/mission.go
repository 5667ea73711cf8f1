package models

import "time"

// Mission status values.
const (
	MissionPlanned    = "Planned"
	MissionInProgress = "In Progress"
	MissionCompleted  = "Completed"
	MissionAlert      = "Alert"
)

// ValidMissionStatus reports whether s is an accepted mission status.
func ValidMissionStatus(s string) bool {
	switch s {
	case MissionPlanned, MissionInProgress, MissionCompleted, MissionAlert:
		return true
	}
	return false
}

// Mission is a fleet test route tracked on the missions page.
type Mission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Status    string    `gorm:"default:'Planned'" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SeedDefaultMissions returns the starter missions shown on first run.
func SeedDefaultMissions() []Mission {
	return []Mission{
		{Title: "Alpha-7 Urban Route", Status: MissionInProgress},
		{Title: "Bravo-3 Highway Test", Status: MissionCompleted},
		{Title: "Charlie-9 Night Run", Status: MissionAlert},
		{Title: "Delta-1 Logistics", Status: MissionCompleted},
		{Title: "Echo-5 Suburban Path", Status: MissionPlanned},
		{Title: "Foxtrot-2 Rain Test", Status: MissionInProgress},
	}
}
