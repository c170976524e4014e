package ordering

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agencydesk/mdconsole/pkg/model"
)

func scheme(id, agencyID, seq int64) model.Record {
	return model.Record{ID: id, Status: model.StatusActive, CompID: 1, Fields: map[string]interface{}{
		"agency_id": agencyID,
		"seq_no":    seq,
	}}
}

func TestSiblingsFilterAndSort(t *testing.T) {
	records := []model.Record{scheme(1, 1, 1), scheme(2, 1, 0), scheme(3, 2, 0)}
	got := Siblings(records, "agency_id", 1, "seq_no")
	require.Len(t, got, 2)
	require.Equal(t, int64(2), got[0].ID)
	require.Equal(t, int64(1), got[1].ID)
	require.Equal(t, int64(2), Next(got))
}

func TestPlanReorderOnlyMovedRecords(t *testing.T) {
	siblings := []model.Record{scheme(1, 1, 0), scheme(2, 1, 1), scheme(3, 1, 2)}
	changes, err := PlanReorder(siblings, []int64{1, 3, 2}, "seq_no")
	require.NoError(t, err)
	require.Equal(t, []Change{{ID: 3, Seq: 1}, {ID: 2, Seq: 2}}, changes)
}

func TestPlanReorderRejectsBadOrders(t *testing.T) {
	siblings := []model.Record{scheme(1, 1, 0), scheme(2, 1, 1)}

	_, err := PlanReorder(siblings, []int64{1}, "seq_no")
	require.ErrorIs(t, err, ErrNotPermutation)

	_, err = PlanReorder(siblings, []int64{1, 1}, "seq_no")
	require.ErrorIs(t, err, ErrNotPermutation)

	_, err = PlanReorder(siblings, []int64{1, 9}, "seq_no")
	require.ErrorIs(t, err, ErrNotPermutation)
}

func TestCompactAndDense(t *testing.T) {
	siblings := []model.Record{scheme(4, 1, 0), scheme(5, 1, 3), scheme(6, 1, 7)}
	require.False(t, Dense(siblings, "seq_no"))
	require.Equal(t, []Change{{ID: 5, Seq: 1}, {ID: 6, Seq: 2}}, Compact(siblings, "seq_no"))

	require.True(t, Dense([]model.Record{scheme(1, 1, 1), scheme(2, 1, 0)}, "seq_no"))
}
