package clinicaldocument

func MapHealthData(r PhsaHealthDataResponse) []ClinicalDocument {
	docs := make([]ClinicalDocument, 0, len(r.Data))
	for _, d := range r.Data {
		if d == nil {
			continue
		}
		docs = append(docs, MapEntry(*d))
	}
	return docs
}

func MapEntry(d PhsaHealthDataEntry) ClinicalDocument {
	return ClinicalDocument{
		ID:           d.ID,
		FileID:       d.FileID,
		Name:         d.Name,
		Type:         d.Type,
		FacilityName: d.FacilityName,
		Discipline:   d.Discipline,
		ServiceDate:  d.ServiceDate.Ptr(),
	}
}
