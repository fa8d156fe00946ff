package domain

// Stage is a client's position in the sales and onboarding pipeline.
type Stage string

const (
	StageLead                 Stage = "lead"
	StageContacted            Stage = "contacted"
	StageQualified            Stage = "qualified"
	StageDocsPending          Stage = "docs_pending"
	StageDocsReceived         Stage = "docs_received"
	StageApplicationStarted   Stage = "application_started"
	StageApplicationSubmitted Stage = "application_submitted"
	StageApplicationInProcess Stage = "application_in_process"
	StageApplicationApproved  Stage = "application_approved"
	StageDisbursed            Stage = "disbursed"
	StageActive               Stage = "active"
	StageLost                 Stage = "lost"
	StageClosed               Stage = "closed"
	StageRejected             Stage = "rejected"

	// DefaultStage is assigned to new clients that do not name one.
	DefaultStage = StageLead
)

type stageInfo struct {
	stage Stage
	label string
}

// Pipeline order. Ordering is presentational only; any stage may follow any other.
var stages = []stageInfo{
	{StageLead, "Lead"},
	{StageContacted, "Contacted"},
	{StageQualified, "Qualified"},
	{StageDocsPending, "Docs Pending"},
	{StageDocsReceived, "Docs Received"},
	{StageApplicationStarted, "Application Started"},
	{StageApplicationSubmitted, "Application Submitted"},
	{StageApplicationInProcess, "Application In Process"},
	{StageApplicationApproved, "Application Approved"},
	{StageDisbursed, "Disbursed"},
	{StageActive, "Active"},
	{StageLost, "Lost"},
	{StageClosed, "Closed"},
	{StageRejected, "Rejected"},
}

var stageLabels = func() map[Stage]string {
	m := make(map[Stage]string, len(stages))
	for _, s := range stages {
		m[s.stage] = s.label
	}
	return m
}()

// ParseStage returns the Stage for value and whether it is one of the known stages.
func ParseStage(value string) (Stage, bool) {
	s := Stage(value)
	_, ok := stageLabels[s]
	return s, ok
}

// IsValid reports whether s is one of the known stages.
func (s Stage) IsValid() bool {
	_, ok := stageLabels[s]
	return ok
}

// Label is the human-readable name, or the raw value for unknown stages.
func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

func (s Stage) String() string { return string(s) }

// AllStages returns every stage in pipeline order.
func AllStages() []Stage {
	out := make([]Stage, len(stages))
	for i, s := range stages {
		out[i] = s.stage
	}
	return out
}

// StageChoices maps stage values to labels.
func StageChoices() map[string]string {
	out := make(map[string]string, len(stages))
	for _, s := range stages {
		out[string(s.stage)] = s.label
	}
	return out
}
