package email

const (
	subjectClientAssignedFmt = "New client assigned: %s"
)
