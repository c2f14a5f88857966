package encounter

import (
	"time"

	"github.com/google/uuid"

	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
)

// PhsaHospitalVisit is one PHSA hospital visit record.
type PhsaHospitalVisit struct {
	EncounterID     string    `json:"encounterId"`
	FacilityName    string    `json:"facilityName"`
	HealthService   string    `json:"healthService"`
	VisitType       string    `json:"visitType"`
	HealthAuthority string    `json:"healthAuthority"`
	AdmitDateTime   phsa.Time `json:"admitDateTime"`
	EndDateTime     phsa.Time `json:"endDateTime"`
	Provider        string    `json:"provider"`
}

// HospitalVisit is the caller-facing visit.
type HospitalVisit struct {
	EncounterID     string     `json:"encounterId"`
	Facility        string     `json:"facility"`
	HealthService   string     `json:"healthService"`
	VisitType       string     `json:"visitType"`
	HealthAuthority string     `json:"healthAuthority"`
	AdmitDateTime   *time.Time `json:"admitDateTime"`
	EndDateTime     *time.Time `json:"endDateTime"`
	Provider        string     `json:"provider"`
}

// HospitalVisitResult carries the visits and PHSA's load progress.
type HospitalVisitResult struct {
	Loaded         bool            `json:"loaded"`
	Queued         bool            `json:"queued"`
	RetryIn        int             `json:"retryin"`
	HospitalVisits []HospitalVisit `json:"hospitalVisits"`
}

// OdrHistoryQuery selects a window of MSP claims for one PHN.
type OdrHistoryQuery struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	PHN       string `json:"phn"`
	PageSize  int    `json:"pageSize"`
}

// MspVisitHistory is the ODR request envelope. ODR echoes it back with
// Response filled in.
type MspVisitHistory struct {
	ID            uuid.UUID                `json:"id"`
	RequestorHDID string                   `json:"requestorHDID"`
	RequestorIP   string                   `json:"requestorIP"`
	Query         OdrHistoryQuery          `json:"mspVisitHistoryQuery"`
	Response      *MspVisitHistoryResponse `json:"mspVisitHistoryResponse,omitempty"`
}

type MspVisitHistoryResponse struct {
	ID           string     `json:"id"`
	Pages        int        `json:"pages"`
	TotalRecords int        `json:"totalRecords"`
	Claims       []MspClaim `json:"claims"`
}

// MspClaim is one billed practitioner visit.
type MspClaim struct {
	ServiceDate      phsa.Time `json:"serviceDate"`
	FeeDesc          string    `json:"feeDesc"`
	SpecialtyDesc    string    `json:"specialtyDesc"`
	PractitionerName string    `json:"practitionerName"`
	LocationName     string    `json:"locationName"`
}

type Clinic struct {
	Name string `json:"name"`
}

// Encounter is the caller-facing MSP visit.
type Encounter struct {
	ID                   string     `json:"id"`
	EncounterDate        *time.Time `json:"encounterDate"`
	SpecialtyDescription string     `json:"specialtyDescription"`
	PractitionerName     string     `json:"practitionerName"`
	Clinic               Clinic     `json:"clinic"`
}
