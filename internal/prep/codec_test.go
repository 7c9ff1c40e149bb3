package prep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mun_dashboard/internal/models"
)

func TestDocumentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpdateActive(ConferencePatch{Name: strPtr("HMUN"), Country: strPtr("Brazil")}))
	require.NoError(t, s.AddMatrixEntry(models.MatrixEntry{Committee: "WHO", FirstName: "Ana"}))
	require.NoError(t, s.ToggleChecklist("positionPaper"))
	_, err := s.AddConference()
	require.NoError(t, err)

	want := s.Snapshot()
	data, err := EncodeDocument(want)
	require.NoError(t, err)

	got, err := DecodeDocument(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeLegacyCommitteeMatrix(t *testing.T) {
	input := `{"conferences":[{"id":"c1","name":"Old","committeeMatrix":{"WHO":"Ana","DISEC":"Ben"},"checklist":{"knowRules":true,"bogus":true}}],"activeConferenceId":"c1"}`

	st, err := DecodeDocument([]byte(input))
	require.NoError(t, err)
	require.Len(t, st.Conferences, 1)

	c := st.Conferences[0]
	assert.Equal(t, []models.MatrixEntry{
		{Committee: "DISEC", FirstName: "Ben"},
		{Committee: "WHO", FirstName: "Ana"},
	}, c.CommitteeMatrix)
	assert.True(t, c.Checklist["knowRules"])
	assert.NotContains(t, c.Checklist, "bogus")
	assert.Len(t, c.Checklist, len(models.ChecklistKeys))
}

func TestDecodeDefensive(t *testing.T) {
	input := `{"schemaVersion":1,"conferences":[{"id":"c1","committeeCount":99,"trustedSources":"x"},7,{"name":"no id"},{"id":"c1"}],"activeConferenceId":"gone"}`

	st, err := DecodeDocument([]byte(input))
	require.NoError(t, err)
	require.Len(t, st.Conferences, 1)
	assert.Equal(t, "c1", st.ActiveConferenceID)
	assert.Equal(t, models.MaxCommitteeCount, st.Conferences[0].CommitteeCount)
	assert.Equal(t, []string{}, st.Conferences[0].TrustedSources)
	assert.Equal(t, models.DefaultConferenceName, st.Conferences[0].Name)
}

func TestDecodeNotAnObject(t *testing.T) {
	st, err := DecodeDocument([]byte(`[1,2]`))
	assert.Error(t, err)
	require.Len(t, st.Conferences, 1)
	assert.Equal(t, st.Conferences[0].ID, st.ActiveConferenceID)
}
