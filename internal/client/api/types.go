package api

import (
	"encoding/json"
	"time"
)

// Challenge categories known to the EcoTrack API.
const (
	CategoryWasteReduction       = "Waste Reduction"
	CategoryEnergyConservation   = "Energy Conservation"
	CategoryWaterConservation    = "Water Conservation"
	CategorySustainableTransport = "Sustainable Transport"
	CategoryGreenLiving          = "Green Living"
)

// Categories lists the challenge categories in display order.
var Categories = []string{
	CategoryWasteReduction,
	CategoryEnergyConservation,
	CategoryWaterConservation,
	CategorySustainableTransport,
	CategoryGreenLiving,
}

// Status is the progress state of a joined challenge.
type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusOngoing    Status = "Ongoing"
	StatusFinished   Status = "Finished"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusOngoing, StatusFinished:
		return true
	default:
		return false
	}
}

type Challenge struct {
	ID           string      `json:"_id"`
	Title        string      `json:"title"`
	Category     string      `json:"category"`
	Description  string      `json:"description"`
	Duration     json.Number `json:"duration,omitempty"`
	Target       string      `json:"target"`
	ImpactMetric string      `json:"impactMetric"`
	Participants int         `json:"participants"`
	StartDate    string      `json:"startDate,omitempty"`
	EndDate      string      `json:"endDate,omitempty"`
	ImageURL     string      `json:"imageUrl,omitempty"`
	CreatedBy    string      `json:"createdBy,omitempty"`
}

// ChallengeFilter narrows ListChallenges. Zero fields are not sent.
type ChallengeFilter struct {
	Categories      []string
	StartDate       string
	EndDate         string
	MinParticipants int
	MaxParticipants int
}

// NewChallenge is the body of CreateChallenge.
type NewChallenge struct {
	Title        string `json:"title"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	Duration     string `json:"duration"`
	Target       string `json:"target"`
	ImpactMetric string `json:"impactMetric"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	ImageURL     string `json:"imageUrl"`
	CreatedBy    string `json:"createdBy"`
}

// UserChallenge is one challenge a user joined, with its progress.
type UserChallenge struct {
	ID        string     `json:"_id"`
	UserID    string     `json:"userId"`
	Challenge *Challenge `json:"challenge,omitempty"`
	Progress  int        `json:"progress"`
	Status    Status     `json:"status"`
	JoinDate  *time.Time `json:"joinDate,omitempty"`
}

// StatusOrDefault reports Not Started for a record with no status yet.
func (uc UserChallenge) StatusOrDefault() Status {
	if uc.Status == "" {
		return StatusNotStarted
	}
	return uc.Status
}

type Event struct {
	ID                  string   `json:"_id"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	ShortDesc           string   `json:"shortDesc,omitempty"`
	Date                string   `json:"date"`
	Location            string   `json:"location"`
	Organizer           string   `json:"organizer"`
	MaxParticipants     int      `json:"maxParticipants"`
	CurrentParticipants int      `json:"currentParticipants"`
	Attendees           []string `json:"attendees,omitempty"`
}

// Full reports whether the event has no seats left.
func (e Event) Full() bool {
	return e.MaxParticipants > 0 && e.CurrentParticipants >= e.MaxParticipants
}

type Tip struct {
	ID         string `json:"_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Category   string `json:"category"`
	AuthorName string `json:"authorName"`
	Upvotes    int    `json:"upvotes"`
}

// Statistics is the community-wide summary shown on the home screen.
type Statistics struct {
	TotalParticipants int     `json:"totalParticipants"`
	TotalChallenges   int     `json:"totalChallenges"`
	CO2Saved          float64 `json:"co2Saved"`
	PlasticReduced    float64 `json:"plasticReduced"`
	WaterSaved        float64 `json:"waterSaved"`
	TreesPlanted      float64 `json:"treesPlanted"`
}
