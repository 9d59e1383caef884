// Package linker pairs referee names coming from two different sources
// (a portal listing on one side, mailbox senders or another portal on the
// other) when their spellings do not line up exactly.
package linker

import (
	"refassist-backend/lib/textutil"

	"github.com/antzucaro/matchr"
)

type Link struct {
	Left        string
	Right       string
	Correlation float64
}

// LinkNames matches every left name to at most one right name. Exact
// matches (after normalization) pair first at correlation 1, the rest pair
// greedily by Jaro-Winkler similarity.
func LinkNames(leftList, rightList []string) []Link {
	swapped := false
	if len(rightList) < len(leftList) {
		originalLeftList := leftList
		leftList = rightList
		rightList = originalLeftList
		swapped = true
	}

	var result []Link
	matchedLeft := make(map[string]struct{})
	matchedRight := make(map[string]struct{})

	for _, left := range leftList {
		for _, right := range rightList {
			_, isMatchedRight := matchedRight[right]
			if isMatchedRight {
				continue
			}
			if textutil.NormalizeName(left) == textutil.NormalizeName(right) {
				link := Link{
					Left:        left,
					Right:       right,
					Correlation: 1,
				}
				if swapped {
					link.Left = right
					link.Right = left
				}

				result = append(result, link)
				matchedLeft[left] = struct{}{}
				matchedRight[right] = struct{}{}
				break
			}
		}
	}

	for _, left := range leftList {
		_, isMatchedLeft := matchedLeft[left]
		if isMatchedLeft {
			continue
		}

		var mostSimilarity float64
		var mostSimilarRight string

		for _, right := range rightList {
			_, isMatchedRight := matchedRight[right]
			if isMatchedRight {
				continue
			}

			similarity := matchr.JaroWinkler(
				textutil.NormalizeName(left),
				textutil.NormalizeName(right),
				false,
			)
			if similarity > mostSimilarity {
				mostSimilarity = similarity
				mostSimilarRight = right
			}
		}

		if mostSimilarity > 0 {
			link := Link{
				Left:        left,
				Right:       mostSimilarRight,
				Correlation: mostSimilarity,
			}
			if swapped {
				link.Left = mostSimilarRight
				link.Right = left
			}

			result = append(result, link)
			matchedLeft[left] = struct{}{}
			matchedRight[mostSimilarRight] = struct{}{}
		}
	}

	return result
}
