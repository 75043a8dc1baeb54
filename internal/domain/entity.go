package domain

import (
	"time"
)

// DateLayout is the portal's date format.
const DateLayout = "02/01/2006"

// Sex values accepted by the portal.
const (
	SexMale   = "Laki-laki"
	SexFemale = "Perempuan"
)

// Address is a resolved administrative address.
type Address struct {
	Line     string `json:"line,omitempty"`
	Province string `json:"province"`
	Regency  string `json:"regency"`
	District string `json:"district"`
	Village  string `json:"village,omitempty"`
}

// NormalizedEntity is the canonical record submitted to the portal.
type NormalizedEntity struct {
	NIK        string    `json:"nik"`
	Name       string    `json:"name"`
	Sex        string    `json:"sex"`
	BirthDate  time.Time `json:"birth_date"`
	Age        int       `json:"age"`
	Occupation string    `json:"occupation"`
	Address    Address   `json:"address"`
	HeightCM   int       `json:"height_cm"`
	WeightKG   int       `json:"weight_kg"`
	ExamDate   time.Time `json:"exam_date"`
	Cough      string    `json:"cough,omitempty"`
	Fever      string    `json:"fever,omitempty"`
	Notes      string    `json:"notes,omitempty"`

	// Observed holds values read back from the portal during submission.
	Observed map[string]string `json:"observed,omitempty"`
}

// ExamDateString renders the exam date in the portal format.
func (e *NormalizedEntity) ExamDateString() string {
	return e.ExamDate.Format(DateLayout)
}

// BirthDateString renders the birth date in the portal format.
func (e *NormalizedEntity) BirthDateString() string {
	return e.BirthDate.Format(DateLayout)
}

// AgeAt returns whole years between the birth date and now, never negative.
func (e *NormalizedEntity) AgeAt(now time.Time) int {
	return AgeAt(e.BirthDate, now)
}

// Observe records a value read from the portal for audit.
func (e *NormalizedEntity) Observe(key, value string) {
	if e.Observed == nil {
		e.Observed = make(map[string]string)
	}
	e.Observed[key] = value
}

// AgeAt computes whole years from birth to now, clamped at zero.
func AgeAt(birth, now time.Time) int {
	if birth.IsZero() || now.Before(birth) {
		return 0
	}
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
