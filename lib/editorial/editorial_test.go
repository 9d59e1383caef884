package editorial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	testCases := []struct {
		raw      string
		expected RefereeStatus
	}{
		{"Agreed", StatusAccepted},
		{"ACCEPTED", StatusAccepted},
		{"Invited", StatusInvited},
		{"Contacted", StatusInvited},
		{"review requested", StatusInvited},
		{"Declined", StatusDeclined},
		{"refused invitation", StatusDeclined},
		{"Report Submitted", StatusReportSubmitted},
		{"report received", StatusReportSubmitted},
		{"Overdue", StatusOverdue},
		{"response late", StatusOverdue},
		{"", StatusUnknown},
		{"something else entirely", StatusUnknown},
		// report wins over the embedded "submit"-less accept
		{"accepted, report received", StatusReportSubmitted},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			require.Equal(t, tc.expected, NormalizeStatus(tc.raw))
		})
	}
}

func TestBaselineValidate(t *testing.T) {
	manuscripts := []Manuscript{
		{
			ID: "M172838",
			Referees: []Referee{
				{Name: "Ferrari, Marco"},
				{Name: "Smith, Jane"},
			},
			Documents: []Document{
				{Name: "main.pdf", Kind: DocManuscript},
			},
		},
		{
			ID:       "M172900",
			Referees: []Referee{{Name: "Okafor, Ada"}},
		},
	}

	require.NoError(t, Baseline{}.Validate(manuscripts))
	require.NoError(t, Baseline{Manuscripts: 2, Referees: 3, Documents: 1}.Validate(manuscripts))
	// above baseline passes, it is a floor
	require.NoError(t, Baseline{Manuscripts: 1}.Validate(manuscripts))

	err := Baseline{Manuscripts: 3}.Validate(manuscripts)
	var berr *BaselineError
	require.ErrorAs(t, err, &berr)
	require.Equal(t, "manuscripts", berr.Field)
	require.Equal(t, 3, berr.Expected)
	require.Equal(t, 2, berr.Got)

	err = Baseline{Referees: 4}.Validate(manuscripts)
	require.ErrorAs(t, err, &berr)
	require.Equal(t, "referees", berr.Field)

	err = Baseline{Documents: 2}.Validate(manuscripts)
	require.ErrorAs(t, err, &berr)
	require.Equal(t, "documents", berr.Field)
}
