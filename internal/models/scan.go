package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScanStatus is the lifecycle state of a scan.
type ScanStatus string

const (
	ScanStatusPending    ScanStatus = "pending"
	ScanStatusProcessing ScanStatus = "processing"
	ScanStatusComplete   ScanStatus = "complete"
	ScanStatusRejected   ScanStatus = "rejected"
)

// Angle identifies one of the five fixed camera poses captured per scan.
type Angle string

const (
	AngleFront   Angle = "front"
	AngleLeft    Angle = "left"
	AngleRight   Angle = "right"
	AngleLeft45  Angle = "left45"
	AngleRight45 Angle = "right45"
)

// RequiredAngles returns the full angle set in canonical order. Callers must
// not mutate the returned slice.
func RequiredAngles() []Angle {
	return []Angle{AngleFront, AngleLeft, AngleRight, AngleLeft45, AngleRight45}
}

// ParseAngle validates a client-supplied angle name.
func ParseAngle(s string) (Angle, error) {
	for _, a := range RequiredAngles() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown angle: %q", s)
}

// MissingAngles returns the required angles absent from present, in canonical
// order. Duplicates in present are harmless.
func MissingAngles(present []Angle) []Angle {
	have := make(map[Angle]bool, len(present))
	for _, a := range present {
		have[a] = true
	}
	missing := []Angle{}
	for _, a := range RequiredAngles() {
		if !have[a] {
			missing = append(missing, a)
		}
	}
	return missing
}

// Scan represents one capture session of five facial angles.
type Scan struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PatientID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"patient_id"`
	CapturedAt    time.Time  `json:"captured_at"`
	Status        ScanStatus `gorm:"type:varchar(16);default:'pending'" json:"status"`
	QualityFlags  StringList `gorm:"type:jsonb" json:"quality_flags"`
	MissingAngles AngleList  `gorm:"type:jsonb" json:"missing_angles"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Images []ScanImage `gorm:"foreignKey:ScanID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

// ScanImage is the metadata row for one angle's photograph. A scan holds at
// most one row per angle; re-issuing an upload target overwrites the row.
type ScanImage struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ScanID      uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_scan_images_scan_angle;not null" json:"scan_id"`
	Angle       Angle     `gorm:"type:varchar(16);uniqueIndex:idx_scan_images_scan_angle;not null" json:"angle"`
	StorageKey  string    `json:"storage_key"`
	DisplayURL  string    `json:"display_url"`
	ContentType string    `json:"content_type"`
	Checksum    string    `json:"checksum,omitempty"`

	// Quality-analysis outputs, nil until an ingestion pass has scored the image.
	BlurScore  *float64     `json:"blur_score,omitempty"`
	LightScore *float64     `json:"light_score,omitempty"`
	PoseOK     *bool        `json:"pose_ok,omitempty"`
	Landmarks  *LandmarkSet `gorm:"type:jsonb" json:"landmarks,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Landmark is a single named facial point in pixel coordinates.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LandmarkSet holds the five named facial points. Estimated is always true for
// points produced by the proportional placeholder; nothing downstream should
// treat these as measured geometry.
type LandmarkSet struct {
	LeftEye    Landmark `json:"left_eye"`
	RightEye   Landmark `json:"right_eye"`
	Nose       Landmark `json:"nose"`
	MouthLeft  Landmark `json:"mouth_left"`
	MouthRight Landmark `json:"mouth_right"`
	Estimated  bool     `json:"estimated"`
}

// Value implements driver.Valuer so GORM can store the set as jsonb.
func (l LandmarkSet) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *LandmarkSet) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// StringList is a JSON-backed string slice column.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		s = StringList{}
	}
	return json.Marshal(s)
}

func (s *StringList) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// AngleList is a JSON-backed angle slice column.
type AngleList []Angle

func (a AngleList) Value() (driver.Value, error) {
	if a == nil {
		a = AngleList{}
	}
	return json.Marshal(a)
}

func (a *AngleList) Scan(value interface{}) error {
	return scanJSON(value, a)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}
