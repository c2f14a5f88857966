package clinicaldocument

import (
	"time"

	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
)

// PersonalAccount links an HDID to the PHSA patient identifier (PID).
type PersonalAccount struct {
	ID              string           `json:"id"`
	PatientIdentity *PatientIdentity `json:"patientIdentity"`
}

type PatientIdentity struct {
	PID  string `json:"pid"`
	HDID string `json:"hdid"`
}

// PID returns the account's patient identifier, or "" when absent.
func (a PersonalAccount) PID() string {
	if a.PatientIdentity == nil {
		return ""
	}
	return a.PatientIdentity.PID
}

type PhsaHealthDataResponse struct {
	Data []*PhsaHealthDataEntry `json:"data"`
}

type PhsaHealthDataEntry struct {
	ID           string    `json:"id"`
	FileID       string    `json:"fileId"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	FacilityName string    `json:"facilityName"`
	Discipline   string    `json:"discipline"`
	ServiceDate  phsa.Time `json:"serviceDate"`
}

// ClinicalDocument describes one document; the file is fetched separately.
type ClinicalDocument struct {
	ID           string     `json:"id"`
	FileID       string     `json:"fileId"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	FacilityName string     `json:"facilityName"`
	Discipline   string     `json:"discipline"`
	ServiceDate  *time.Time `json:"serviceDate"`
}

// EncodedMedia is a document file as PHSA returns it.
type EncodedMedia struct {
	MediaType string `json:"mediaType"`
	Encoding  string `json:"encoding"`
	Data      string `json:"data"`
}
