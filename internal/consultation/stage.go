package consultation

type Stage string

const (
	StageIntake       Stage = "intake"
	StageDifferential Stage = "differential"
)

const (
	minSymptomsForDiagnosis = 2
	minTurnsForDifferential = 3
)

// Decision is the outcome of one stage evaluation. Transition is true only
// on the INTAKE to DIFFERENTIAL edge.
type Decision struct {
	Stage      Stage
	Transition bool
}

// StageController is the one-way intake/differential latch of a session.
type StageController struct {
	stage Stage
}

func NewStageController() *StageController {
	return &StageController{stage: StageIntake}
}

func (c *StageController) Stage() Stage { return c.stage }

// Evaluate reports whether the session should enter the differential stage
// now. turnCount is the number of completed turns before the current one.
// It does not move the latch; call Advance once grounding succeeded.
func (c *StageController) Evaluate(rec *PatientRecord, turnCount int) Decision {
	if c.stage == StageDifferential {
		return Decision{Stage: StageDifferential}
	}
	ready := hasChiefComplaint(rec) &&
		len(rec.Symptoms) >= minSymptomsForDiagnosis &&
		turnCount >= minTurnsForDifferential
	return Decision{Stage: StageIntake, Transition: ready}
}

// Advance moves the latch to DIFFERENTIAL. There is no way back.
func (c *StageController) Advance() {
	c.stage = StageDifferential
}

// ReportEligible reports whether a diagnostic report may be generated. It
// ignores the stage and the turn count, so it can hold while the session is
// still in intake.
func ReportEligible(rec *PatientRecord) bool {
	return rec != nil && hasChiefComplaint(rec) && len(rec.Symptoms) >= minSymptomsForDiagnosis
}

func hasChiefComplaint(rec *PatientRecord) bool {
	return rec != nil && rec.ChiefComplaint != nil && *rec.ChiefComplaint != ""
}
