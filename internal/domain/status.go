package domain

// JobStatusCase is the one-of case of a Status message
type JobStatusCase int

const (
	StatusCaseNone JobStatusCase = iota
	StatusCaseAccepted
	StatusCaseWorking
	StatusCaseCompleted
)

func (c JobStatusCase) String() string {
	switch c {
	case StatusCaseAccepted:
		return "accepted"
	case StatusCaseWorking:
		return "working"
	case StatusCaseCompleted:
		return "completed"
	default:
		return "none"
	}
}

// Status is the server's reply to every client message except a delivered output
type Status struct {
	Busy        bool
	Case        JobStatusCase
	JobDir      string
	JobScrDir   string
	ServerJobID int32
}

// BusyStatus is the availability reply with no job fields
func BusyStatus(busy bool) Status {
	return Status{Busy: busy}
}

// JobStatus builds an accepted/working/completed reply
func JobStatus(c JobStatusCase, jobDir, scrDir string, jobID int32) Status {
	return Status{Case: c, JobDir: jobDir, JobScrDir: scrDir, ServerJobID: jobID}
}
