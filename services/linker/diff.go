package linker

import (
	"refassist-backend/lib/editorial"
)

// minDiffCorrelation is the similarity floor for treating two referee
// spellings as the same person when diffing runs.
const minDiffCorrelation = 0.9

type StatusChange struct {
	Manuscript string
	Referee    string
	From       editorial.RefereeStatus
	To         editorial.RefereeStatus
}

type RunDiff struct {
	AddedManuscripts   []string
	RemovedManuscripts []string
	StatusChanges      []StatusChange
}

// DiffManuscripts reports what changed between two harvests of the same
// journal. Referees are paired by name linking so a respelled name does
// not show up as one referee vanishing and another appearing.
func DiffManuscripts(before, after []editorial.Manuscript) RunDiff {
	var diff RunDiff

	beforeById := make(map[string]editorial.Manuscript, len(before))
	for _, m := range before {
		beforeById[m.ID] = m
	}
	afterById := make(map[string]editorial.Manuscript, len(after))
	for _, m := range after {
		afterById[m.ID] = m
	}

	for _, m := range before {
		if _, ok := afterById[m.ID]; !ok {
			diff.RemovedManuscripts = append(diff.RemovedManuscripts, m.ID)
		}
	}

	for _, m := range after {
		old, ok := beforeById[m.ID]
		if !ok {
			diff.AddedManuscripts = append(diff.AddedManuscripts, m.ID)
			continue
		}

		oldByName := make(map[string]editorial.Referee, len(old.Referees))
		var oldNames []string
		for _, r := range old.Referees {
			oldByName[r.Name] = r
			oldNames = append(oldNames, r.Name)
		}
		newByName := make(map[string]editorial.Referee, len(m.Referees))
		var newNames []string
		for _, r := range m.Referees {
			newByName[r.Name] = r
			newNames = append(newNames, r.Name)
		}

		for _, link := range LinkNames(oldNames, newNames) {
			if link.Correlation < minDiffCorrelation {
				continue
			}
			oldRef := oldByName[link.Left]
			newRef := newByName[link.Right]
			if oldRef.Status != newRef.Status {
				diff.StatusChanges = append(diff.StatusChanges, StatusChange{
					Manuscript: m.ID,
					Referee:    newRef.Name,
					From:       oldRef.Status,
					To:         newRef.Status,
				})
			}
		}
	}

	return diff
}
