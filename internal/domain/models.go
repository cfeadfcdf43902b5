package domain

import (
	"time"
)

// Gender is the normalized character gender across catalogs.
type Gender string

const (
	GenderMale      Gender = "Male"
	GenderFemale    Gender = "Female"
	GenderNonBinary Gender = "Non-binary"
	GenderUnknown   Gender = "Unknown"
)

// Role is the character's role within its series.
type Role string

const (
	RoleMain       Role = "Main"
	RoleSupporting Role = "Supporting"
	RoleBackground Role = "Background"
)

// ReleaseStatus is the normalized series release status.
type ReleaseStatus string

const (
	StatusNotYetReleased ReleaseStatus = "NotYetReleased"
	StatusReleasing      ReleaseStatus = "Releasing"
	StatusFinished       ReleaseStatus = "Finished"
	StatusCancelled      ReleaseStatus = "Cancelled"
	StatusHiatus         ReleaseStatus = "Hiatus"
)

// Format is the normalized series format.
type Format string

const (
	FormatTV      Format = "TV"
	FormatMovie   Format = "Movie"
	FormatOVA     Format = "OVA"
	FormatONA     Format = "ONA"
	FormatTVShort Format = "TVShort"
	FormatSpecial Format = "Special"
)

// Source identifies which catalog produced a record. The tag is set at
// ingestion by each adapter, never inferred afterwards.
type Source string

const (
	SourceAniList Source = "anilist"
	SourceJikan   Source = "jikan"
	SourceLocal   Source = "local"
)

// Character is the canonical character record shared by every source.
// Immutable within a scoring pass; refreshed on the next fetch cycle.
type Character struct {
	ID          string // source-qualified, e.g. "anilist:40882"
	Name        string
	SeriesID    string
	SeriesTitle string
	Gender      Gender
	Favourites  int
	Role        Role
	Source      Source
	FetchedAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Series is the contextual series metadata used by the scorer and the
// lifecycle manager.
type Series struct {
	ID             string
	Title          string
	Status         ReleaseStatus
	Format         Format
	SeasonYear     int // 0 when unknown
	Popularity     int
	Favourites     int
	Trending       float64
	CharacterCount int
	StartDate      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TrendScore is one point-in-time scoring snapshot for a character.
// Rows are append-only; a new run supersedes, never overwrites.
type TrendScore struct {
	ID               string // nanoid
	CharacterID      string
	BaseScore        float64
	TotalMultiplier  float64 // post-clamp
	FinalScore       float64
	AlgorithmVersion string
	ComputedAt       time.Time
}

// LifecycleStage is the tracking stage of a series.
type LifecycleStage string

const (
	StageActive           LifecycleStage = "active"
	StageGracePeriod      LifecycleStage = "grace_period"
	StageArchived         LifecycleStage = "archived"
	StageReadyForDeletion LifecycleStage = "ready_for_deletion"
)

// LifecycleState tracks one series through the lifecycle state machine.
// Only the lifecycle manager mutates it.
type LifecycleState struct {
	SeriesID        string
	Stage           LifecycleStage
	StageEnteredAt  time.Time
	CompositeScore  float64
	NeverArchive    bool
	HighPriority    bool
	LastEvaluatedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Decision is the outcome of one lifecycle evaluation.
type Decision string

const (
	DecisionKeepActive  Decision = "KEEP_ACTIVE"
	DecisionExtendGrace Decision = "EXTEND_GRACE"
	DecisionArchive     Decision = "ARCHIVE"
)
