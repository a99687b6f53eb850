package consultation

import "strings"

// MergeStats counts what one ApplyPatch call changed.
type MergeStats struct {
	ScalarsSet int
	ItemsAdded int
	Skipped    int
}

// ApplyPatch merges p into rec in place. Present scalars overwrite, list
// items are appended only when not already present (exact match), and
// absent fields are left alone. A nil patch is a no-op.
func ApplyPatch(rec *PatientRecord, p *Patch) MergeStats {
	var st MergeStats
	if rec == nil || p == nil {
		return st
	}
	st.Skipped = len(p.Anomalies)

	setScalar(&rec.BasicInfo.Name, p.Name, &st)
	setScalar(&rec.BasicInfo.Age, p.Age, &st)
	setScalar(&rec.BasicInfo.Gender, p.Gender, &st)
	setScalar(&rec.ChiefComplaint, p.ChiefComplaint, &st)

	setScalar(&rec.SymptomDetails.Onset, p.Onset, &st)
	setScalar(&rec.SymptomDetails.Duration, p.Duration, &st)
	setScalar(&rec.SymptomDetails.Severity, p.Severity, &st)
	setScalar(&rec.SymptomDetails.AffectedSide, p.AffectedSide, &st)
	setScalar(&rec.SymptomDetails.Progression, p.Progression, &st)

	setScalar(&rec.Lifestyle.NoiseExposure, p.NoiseExposure, &st)
	setScalar(&rec.Lifestyle.Occupation, p.Occupation, &st)

	rec.Symptoms = appendUnique(rec.Symptoms, p.Symptoms, &st)
	rec.AdditionalSymptoms = appendUnique(rec.AdditionalSymptoms, p.AdditionalSymptoms, &st)
	rec.MedicalHistory = appendUnique(rec.MedicalHistory, p.MedicalHistory, &st)
	rec.FamilyHistory = appendUnique(rec.FamilyHistory, p.FamilyHistory, &st)
	rec.Medications = appendUnique(rec.Medications, p.Medications, &st)
	rec.SuspectedDiagnosis = appendUnique(rec.SuspectedDiagnosis, p.SuspectedDiagnosis, &st)
	rec.DifferentialDiagnosis = appendUnique(rec.DifferentialDiagnosis, p.DifferentialDiagnosis, &st)

	return st
}

// setScalar never stores a blank value, so a set field cannot be nulled.
func setScalar(dst **string, v *string, st *MergeStats) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return
	}
	val := *v
	*dst = &val
	st.ScalarsSet++
}

func appendUnique(dst []string, items []string, st *MergeStats) []string {
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			st.Skipped++
			continue
		}
		if contains(dst, item) {
			continue
		}
		dst = append(dst, item)
		st.ItemsAdded++
	}
	return dst
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
