package report

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInspectRejectsNonPdf(t *testing.T) {
	_, err := Inspect([]byte("<html>not a report</html>"))
	require.Error(t, err)
}

func TestInspectRejectsEmpty(t *testing.T) {
	_, err := Inspect(nil)
	require.Error(t, err)
}
