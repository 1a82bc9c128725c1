package jobs

import "github.com/mtzgroup/tcpb-go/internal/domain"

// ListJobsResponse is the body of GET /api/jobs
type ListJobsResponse struct {
	Jobs    []*domain.JobRecord `json:"jobs"`
	Dropped int64               `json:"dropped"`
}
