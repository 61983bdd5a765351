package studentapi

import (
	"context"

	"github.com/mmcampusware/scholarship_backend/models"
)

// StudentSnapshot is the registry's view of the student at verification time.
type StudentSnapshot struct {
	StudentId        string `json:"student_id"`
	StudentName      string `json:"student_name"`
	NationalId       string `json:"national_id"`
	EnrollmentStatus string `json:"enrollment_status"`
	Department       string `json:"department"`
}

type VerificationResult struct {
	Status   models.VerificationStatus `json:"status"`
	Message  string                    `json:"message"`
	Snapshot *StudentSnapshot          `json:"snapshot"`
}

// Verifier is the external student-status collaborator. The HTTP
// implementation is network-bound and treated as unreliable; callers must
// isolate per-student failures.
type Verifier interface {
	Verify(ctx context.Context, studentId string) (VerificationResult, error)
}
