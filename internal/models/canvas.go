package models

// GradingType enumerates the grading schemes Canvas supports for an assignment.
type GradingType string

const (
	GradingTypePassFail    GradingType = "pass_fail"
	GradingTypePercent     GradingType = "percent"
	GradingTypeLetterGrade GradingType = "letter_grade"
	GradingTypeGPAScale    GradingType = "gpa_scale"
	GradingTypePoints      GradingType = "points"
)

// SubmissionType enumerates the Canvas submission delivery mechanisms.
type SubmissionType string

const (
	SubmissionTypeOnlineTextEntry SubmissionType = "online_text_entry"
	SubmissionTypeOnlineURL       SubmissionType = "online_url"
	SubmissionTypeOnlineUpload    SubmissionType = "online_upload"
	SubmissionTypeOnlineQuiz      SubmissionType = "online_quiz"
	SubmissionTypeMediaRecording  SubmissionType = "media_recording"
)

// WorkflowState enumerates the lifecycle states of a Canvas submission.
type WorkflowState string

const (
	WorkflowStateSubmitted     WorkflowState = "submitted"
	WorkflowStateUnsubmitted   WorkflowState = "unsubmitted"
	WorkflowStateGraded        WorkflowState = "graded"
	WorkflowStatePendingReview WorkflowState = "pending_review"
)

// EnrollmentType enumerates the roles a user can hold within a course.
type EnrollmentType string

const (
	EnrollmentTypeTeacher  EnrollmentType = "teacher"
	EnrollmentTypeStudent  EnrollmentType = "student"
	EnrollmentTypeTA       EnrollmentType = "ta"
	EnrollmentTypeObserver EnrollmentType = "observer"
	EnrollmentTypeDesigner EnrollmentType = "designer"
)

// EnrollmentState enumerates the activation states of a course enrollment.
type EnrollmentState string

const (
	EnrollmentStateActive            EnrollmentState = "active"
	EnrollmentStateInvitedOrPending  EnrollmentState = "invited_or_pending"
	EnrollmentStateCompleted         EnrollmentState = "completed"
)

// Enrollment links a user to a course with a role.
type Enrollment struct {
	Type            EnrollmentType  `json:"type" validate:"required,oneof=teacher student ta observer designer"`
	UserID          int64           `json:"user_id" validate:"required"`
	EnrollmentState EnrollmentState `json:"enrollment_state" validate:"required,oneof=active invited_or_pending completed"`
}

// Course mirrors a course record fetched from the Canvas LMS.
type Course struct {
	ID                int64        `json:"id" validate:"required"`
	Name              string       `json:"name" validate:"required"`
	AccountID         int64        `json:"account_id"`
	EndAt             *string      `json:"end_at,omitempty"`
	UUID              string       `json:"uuid"`
	CourseCode        string       `json:"course_code"`
	CreatedAt         string       `json:"created_at"`
	Enrollments       []Enrollment `json:"enrollments" validate:"dive"`
	NeedsGradingCount *int         `json:"needs_grading_count,omitempty"`
}

// Assignment mirrors an assignment record fetched from the Canvas LMS.
// Description carries the grading criteria as HTML; it is stripped to plain
// text before being embedded in a prompt.
type Assignment struct {
	ID                       int64            `json:"id" validate:"required"`
	Name                     string           `json:"name" validate:"required"`
	Description              string           `json:"description"`
	CourseID                 int64            `json:"course_id"`
	CreatedAt                string           `json:"created_at"`
	UpdatedAt                string           `json:"updated_at"`
	DueAt                    *string          `json:"due_at,omitempty"`
	HTMLURL                  string           `json:"html_url"`
	PointsPossible           float64          `json:"points_possible" validate:"gt=0"`
	GradingType              GradingType      `json:"grading_type" validate:"required,oneof=pass_fail percent letter_grade gpa_scale points"`
	SubmissionsDownloadURL   string           `json:"submissions_download_url"`
	AssignmentGroupID        int64            `json:"assignment_group_id"`
	SubmissionTypes          []SubmissionType `json:"submission_types"`
	HasSubmittedSubmissions  bool             `json:"has_submitted_submissions"`
	NeedsGradingCount        *int             `json:"needs_grading_count,omitempty"`
}

// Submission mirrors a student submission fetched from the Canvas LMS.
type Submission struct {
	ID                            int64           `json:"id" validate:"required"`
	Body                          string          `json:"body"`
	URL                           string          `json:"url"`
	AssignmentID                  int64           `json:"assignment_id"`
	UserID                        int64           `json:"user_id"`
	SubmissionType                *SubmissionType `json:"submission_type,omitempty"`
	WorkflowState                 WorkflowState   `json:"workflow_state" validate:"required,oneof=submitted unsubmitted graded pending_review"`
	GradeMatchesCurrentSubmission bool            `json:"grade_matches_current_submission"`
	Late                          bool            `json:"late"`
	Missing                       bool            `json:"missing"`
	PreviewURL                    string          `json:"preview_url"`
}
