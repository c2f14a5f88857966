package encounter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
)

func MapHospitalVisits(r phsa.Result[[]*PhsaHospitalVisit]) HospitalVisitResult {
	visits := make([]HospitalVisit, 0, len(r.Result))
	for _, v := range r.Result {
		if v == nil {
			continue
		}
		visits = append(visits, MapHospitalVisit(*v))
	}
	return HospitalVisitResult{
		Loaded:         r.LoadState.Loaded(),
		Queued:         r.LoadState.Queued,
		RetryIn:        r.LoadState.RetryIn(),
		HospitalVisits: visits,
	}
}

func MapHospitalVisit(v PhsaHospitalVisit) HospitalVisit {
	return HospitalVisit{
		EncounterID:     v.EncounterID,
		Facility:        v.FacilityName,
		HealthService:   v.HealthService,
		VisitType:       v.VisitType,
		HealthAuthority: v.HealthAuthority,
		AdmitDateTime:   v.AdmitDateTime.Ptr(),
		EndDateTime:     v.EndDateTime.Ptr(),
		Provider:        v.Provider,
	}
}

// MapMspVisits turns ODR claims into encounters, newest first. Claims that
// describe the same visit collapse into one encounter.
func MapMspVisits(r *MspVisitHistoryResponse) []Encounter {
	out := []Encounter{}
	if r == nil {
		return out
	}
	seen := make(map[string]bool, len(r.Claims))
	for _, c := range r.Claims {
		e := MapMspClaim(c)
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return encounterTime(out[i]).After(encounterTime(out[j]))
	})
	return out
}

func MapMspClaim(c MspClaim) Encounter {
	e := Encounter{
		EncounterDate:        c.ServiceDate.Ptr(),
		SpecialtyDescription: c.SpecialtyDesc,
		PractitionerName:     c.PractitionerName,
		Clinic:               Clinic{Name: c.LocationName},
	}
	e.ID = encounterID(e)
	return e
}

// encounterID is stable across calls so clients can key on it.
func encounterID(e Encounter) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s", encounterTime(e).Format("2006-01-02"), e.SpecialtyDescription, e.PractitionerName, e.Clinic.Name)
	return hex.EncodeToString(h.Sum(nil))
}

func encounterTime(e Encounter) time.Time {
	if e.EncounterDate == nil {
		return time.Time{}
	}
	return *e.EncounterDate
}
