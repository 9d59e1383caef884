// Package editorial holds the data model shared by every portal scraper.
// Each portal emits its own spelling of referee statuses and date formats,
// everything is folded into these types before it leaves a scraper.
package editorial

import (
	"fmt"
	"strings"
	"time"
)

type RefereeStatus string

const (
	StatusUnknown         RefereeStatus = "unknown"
	StatusInvited         RefereeStatus = "invited"
	StatusAccepted        RefereeStatus = "accepted"
	StatusDeclined        RefereeStatus = "declined"
	StatusReportSubmitted RefereeStatus = "report_submitted"
	StatusOverdue         RefereeStatus = "overdue"
)

// NormalizeStatus folds the free-text status strings the portals emit into
// the canonical enum. Matching is case-insensitive and substring based
// because ScholarOne, EditFlow and the SIAM CGI each invented their own set.
func NormalizeStatus(raw string) RefereeStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return StatusUnknown
	case strings.Contains(s, "report") && (strings.Contains(s, "submit") || strings.Contains(s, "receiv")):
		return StatusReportSubmitted
	case strings.Contains(s, "overdue") || strings.Contains(s, "late"):
		return StatusOverdue
	case strings.Contains(s, "declin") || strings.Contains(s, "refus"):
		return StatusDeclined
	case strings.Contains(s, "accept") || strings.Contains(s, "agree"):
		return StatusAccepted
	case strings.Contains(s, "invit") || strings.Contains(s, "request") || strings.Contains(s, "contact"):
		return StatusInvited
	}
	return StatusUnknown
}

type Referee struct {
	Name         string        `json:"name"`
	Email        string        `json:"email,omitempty"`
	Status       RefereeStatus `json:"status"`
	RawStatus    string        `json:"raw_status,omitempty"`
	InvitedDate  string        `json:"invited_date,omitempty"`
	DueDate      string        `json:"due_date,omitempty"`
	ResponseDate string        `json:"response_date,omitempty"`
}

type DocumentKind string

const (
	DocManuscript    DocumentKind = "manuscript"
	DocRefereeReport DocumentKind = "referee_report"
	DocCoverLetter   DocumentKind = "cover_letter"
	DocOther         DocumentKind = "other"
)

type Document struct {
	Name  string       `json:"name"`
	Kind  DocumentKind `json:"kind"`
	URL   string       `json:"url,omitempty"`
	Pages int          `json:"pages,omitempty"`
}

type Manuscript struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Authors        []string   `json:"authors,omitempty"`
	Status         string     `json:"status,omitempty"`
	SubmissionDate string     `json:"submission_date,omitempty"`
	Editors        []string   `json:"editors,omitempty"`
	Referees       []Referee  `json:"referees,omitempty"`
	Documents      []Document `json:"documents,omitempty"`
}

// EmailMessage is the slice of a mailbox message the correlator cares about.
type EmailMessage struct {
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Date    time.Time `json:"date"`
	To      string    `json:"to"`
	From    string    `json:"from"`
}

// Baseline is an expected-count validation check. The original system used
// baselines as fill targets and padded results with fabricated rows to hit
// them; here a shortfall is a loud, typed failure.
type Baseline struct {
	Manuscripts int `json:"manuscripts"`
	Referees    int `json:"referees"`
	Documents   int `json:"documents"`
}

type BaselineError struct {
	Field    string
	Expected int
	Got      int
}

func (e *BaselineError) Error() string {
	return fmt.Sprintf("baseline check failed: expected %d %s, scraped %d", e.Expected, e.Field, e.Got)
}

// Validate compares scraped counts against the baseline. A zero baseline
// field disables the check for that field. Counts above the baseline pass,
// a baseline is a floor, not a target.
func (b Baseline) Validate(manuscripts []Manuscript) error {
	if b.Manuscripts > 0 && len(manuscripts) < b.Manuscripts {
		return &BaselineError{Field: "manuscripts", Expected: b.Manuscripts, Got: len(manuscripts)}
	}

	referees := 0
	documents := 0
	for _, m := range manuscripts {
		referees += len(m.Referees)
		documents += len(m.Documents)
	}
	if b.Referees > 0 && referees < b.Referees {
		return &BaselineError{Field: "referees", Expected: b.Referees, Got: referees}
	}
	if b.Documents > 0 && documents < b.Documents {
		return &BaselineError{Field: "documents", Expected: b.Documents, Got: documents}
	}
	return nil
}
