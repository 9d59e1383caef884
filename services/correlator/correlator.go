// Package correlator finds, for a referee on a manuscript, the mailbox
// message most likely to be their acceptance and the one most likely to be
// the invitation/contact. This is a best-effort heuristic: it scores
// candidates and can return nothing, callers get the score back so they
// can apply their own confidence cutoffs instead of trusting a bare nil.
package correlator

import (
	"regexp"
	"strings"

	"refassist-backend/lib/editorial"
	"refassist-backend/lib/textutil"
)

// MinScore is the relevance floor, candidates under it are discarded
// before keyword classification.
const MinScore = 10

var acceptanceKeywords = []string{
	"agreed",
	"accepted",
	"will review",
	"happy to review",
	"glad to review",
	"i accept",
}

var invitationKeywords = []string{
	"invited",
	"invitation",
	"request to review",
	"would you be willing",
	"asking you to review",
}

type Request struct {
	RefereeName  string
	ManuscriptID string
	JournalCode  string
	Emails       []editorial.EmailMessage
}

// Match is a selected email plus the extracted address and the score that
// selected it. Score lets callers distinguish a confident match from one
// that barely cleared MinScore.
type Match struct {
	Email   editorial.EmailMessage
	Address string
	Score   int
}

var nonDigitRegex = regexp.MustCompile(`\D+`)

// baseScore computes the relevance of one email for the referee and
// manuscript. Manuscript-id evidence and name evidence are scored
// independently, each on its strongest tier.
func baseScore(text string, req Request) int {
	score := 0

	msId := strings.ToLower(strings.TrimSpace(req.ManuscriptID))
	dehyphenatedText := strings.ReplaceAll(text, "-", "")
	switch {
	case msId != "" && strings.Contains(text, msId):
		score += 20
	case msId != "" && strings.Contains(dehyphenatedText, strings.ReplaceAll(msId, "-", "")):
		score += 15
	case journalPartialMatch(text, msId, req.JournalCode):
		score += 8
	}

	last, first := textutil.SplitName(req.RefereeName)
	fullName := textutil.Normalize(req.RefereeName)
	switch {
	case fullName != "" && strings.Contains(text, fullName):
		score += 20
	case last != "" && strings.Contains(text, last):
		score += 15
		if first != "" && strings.Contains(text, first) {
			score += 5
		}
	}

	return score
}

// journalPartialMatch reports whether the text mentions the journal code
// together with a numeric fragment of the manuscript id.
func journalPartialMatch(text, msId, journalCode string) bool {
	journalCode = strings.ToLower(strings.TrimSpace(journalCode))
	if journalCode == "" || !strings.Contains(text, journalCode) {
		return false
	}
	for _, part := range nonDigitRegex.Split(msId, -1) {
		if len(part) >= 3 && strings.Contains(text, part) {
			return true
		}
	}
	return false
}

// MatchEmails returns the best acceptance and contact/invitation matches,
// either of which may be nil. Deterministic: identical inputs produce
// identical outputs, ties keep the earliest email.
func MatchEmails(req Request) (acceptance, contact *Match) {
	last, first := textutil.SplitName(req.RefereeName)

	for _, msg := range req.Emails {
		text := textutil.Normalize(msg.Subject + " " + msg.Body)

		score := baseScore(text, req)
		if score < MinScore {
			continue
		}

		if textutil.MatchKeyword(text, acceptanceKeywords) {
			candidate := score + 10
			if acceptance == nil || candidate > acceptance.Score {
				acceptance = &Match{
					Email:   msg,
					Address: ExtractAddress(msg, last, first),
					Score:   candidate,
				}
			}
		}
		if textutil.MatchKeyword(text, invitationKeywords) {
			candidate := score + 10
			if contact == nil || candidate > contact.Score {
				contact = &Match{
					Email:   msg,
					Address: ExtractAddress(msg, last, first),
					Score:   candidate,
				}
			}
		}
	}

	return acceptance, contact
}
