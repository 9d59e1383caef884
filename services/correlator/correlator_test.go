package correlator

import (
	"testing"

	"refassist-backend/lib/editorial"

	"github.com/stretchr/testify/require"
)

func TestMatchEmailsAcceptanceScenario(t *testing.T) {
	req := Request{
		RefereeName:  "Ferrari, Marco",
		ManuscriptID: "M172838",
		JournalCode:  "sicon",
		Emails: []editorial.EmailMessage{
			{
				Subject: "Re: M172838 review",
				Body:    "I have agreed to review M172838. Contact: marco.ferrari@univ.it",
			},
		},
	}

	acceptance, contact := MatchEmails(req)
	require.NotNil(t, acceptance)
	require.Nil(t, contact)
	require.Equal(t, "marco.ferrari@univ.it", acceptance.Address)
	// 20 (verbatim id) + 15 (last name) + 5 (first name) + 10 (keyword)
	require.Equal(t, 50, acceptance.Score)
}

func TestMatchEmailsNoCandidateAboveThreshold(t *testing.T) {
	req := Request{
		RefereeName:  "Ferrari, Marco",
		ManuscriptID: "M172838",
		Emails: []editorial.EmailMessage{
			{Subject: "newsletter", Body: "unrelated content entirely"},
		},
	}

	acceptance, contact := MatchEmails(req)
	require.Nil(t, acceptance)
	require.Nil(t, contact)
}

func TestMatchEmailsIsDeterministic(t *testing.T) {
	req := Request{
		RefereeName:  "Smith, John",
		ManuscriptID: "MF-2025-0123",
		JournalCode:  "mf",
		Emails: []editorial.EmailMessage{
			{Subject: "MF-2025-0123", Body: "john smith agreed to review", To: "john.smith@uni.edu"},
			{Subject: "MF-2025-0123", Body: "invitation sent to smith", To: "john.smith@uni.edu"},
		},
	}

	first1, second1 := MatchEmails(req)
	first2, second2 := MatchEmails(req)
	require.Equal(t, first1, first2)
	require.Equal(t, second1, second2)
}

func TestBaseScoreExactIdAndName(t *testing.T) {
	req := Request{
		RefereeName:  "Ferrari, Marco",
		ManuscriptID: "M172838",
	}
	text := "re: m172838 please note ferrari, marco has responded"
	score := baseScore(text, req)
	require.GreaterOrEqual(t, score, 40)
}

func TestBaseScoreDehyphenatedPartial(t *testing.T) {
	req := Request{
		RefereeName:  "Nobody, Relevant",
		ManuscriptID: "MF-2025-0123",
	}
	// id appears with hyphens stripped only
	score := baseScore("regarding mf20250123 status", req)
	require.Equal(t, 15, score)
}

func TestBaseScoreJournalCodePartial(t *testing.T) {
	req := Request{
		RefereeName:  "Nobody, Relevant",
		ManuscriptID: "MF-2025-0123",
		JournalCode:  "mf",
	}
	score := baseScore("your mf submission 0123 is in review", req)
	require.Equal(t, 8, score)
}

func TestInvitationVsAcceptanceSelection(t *testing.T) {
	req := Request{
		RefereeName:  "Okafor, Ada",
		ManuscriptID: "M172838",
		Emails: []editorial.EmailMessage{
			{
				Subject: "M172838: invitation to review",
				Body:    "Dear Ada Okafor, you are invited to review M172838.",
				To:      "ada.okafor@inst.edu",
			},
			{
				Subject: "Re: M172838",
				Body:    "Ada Okafor has accepted the review assignment for M172838.",
				To:      "editor@journal.org",
			},
		},
	}

	acceptance, contact := MatchEmails(req)
	require.NotNil(t, acceptance)
	require.NotNil(t, contact)
	require.Equal(t, "M172838: invitation to review", contact.Email.Subject)
	require.Equal(t, "Re: M172838", acceptance.Email.Subject)
	require.Equal(t, "ada.okafor@inst.edu", contact.Address)
}

func TestExtractAddressPrefersToFieldSurname(t *testing.T) {
	msg := editorial.EmailMessage{
		To:   "jane.smith@uni.edu, admin@uni.edu",
		Body: "also mentions other@elsewhere.org",
	}
	require.Equal(t, "jane.smith@uni.edu", ExtractAddress(msg, "smith", "jane"))
}

func TestExtractAddressFallsBackToFirstToAddress(t *testing.T) {
	msg := editorial.EmailMessage{
		To: "admin@uni.edu, office@uni.edu",
	}
	require.Equal(t, "admin@uni.edu", ExtractAddress(msg, "ferrari", "marco"))
}

func TestExtractAddressFallsBackToBody(t *testing.T) {
	msg := editorial.EmailMessage{
		Body: "reach me at marco.ferrari@univ.it",
	}
	require.Equal(t, "marco.ferrari@univ.it", ExtractAddress(msg, "ferrari", "marco"))
	require.Equal(t, "", ExtractAddress(editorial.EmailMessage{}, "ferrari", "marco"))
}
