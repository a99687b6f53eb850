package consultation

import "errors"

var (
	ErrSessionNotFound  = errors.New("consultation not found")
	ErrChartNotFound    = errors.New("patient chart not found")
	ErrEmptyInput       = errors.New("patient message is empty")
	ErrReportIneligible = errors.New("report requires a chief complaint and at least two symptoms")
	ErrGrounding        = errors.New("diagnostic grounding failed")
	ErrGeneration       = errors.New("clinician reply generation failed")
	ErrReportsDisabled  = errors.New("report generation is not configured")
)
