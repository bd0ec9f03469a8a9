package labelevents

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/angelmondragon/labeltrack-backend/pkg/enums"
)

func TestEncodeDecodePreservesConcreteType(t *testing.T) {
	loc := "Back bar"
	batch := uuid.New()
	snapshots := []Snapshot{
		CreatedSnapshot{Code: "BTL-ABCD2345", SKUID: uuid.New(), BatchID: &batch, Status: enums.LabelStatusUnassigned},
		ReplacementSource{LabelID: uuid.New(), Code: "BTL-ZZZZ9999", Reason: "FADED"},
		LocationSnapshot{Status: enums.LabelStatusAssigned, Location: &loc},
		ScanSnapshot{Status: enums.LabelStatusRetired, Warning: "This label has been retired"},
		RetiredSnapshot{Status: enums.LabelStatusRetired, Reason: "LOST", RetiredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		ReprintSnapshot{Status: enums.LabelStatusAssigned, Code: "BTL-ZZZZ9999", Location: &loc},
		SuccessorSnapshot{LabelID: uuid.New(), Code: "BTL-NEWW2345", Reason: "REPRINTED: FADED"},
	}

	for _, snap := range snapshots {
		t.Run(string(snap.Kind()), func(t *testing.T) {
			raw, err := Encode(snap)
			require.NoError(t, err)
			assert.Contains(t, string(raw), `"kind":"`+string(snap.Kind())+`"`)

			decoded, err := Decode(raw)
			require.NoError(t, err)
			assert.Equal(t, snap, decoded)
		})
	}
}

func TestEncodeNil(t *testing.T) {
	raw, err := Encode(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)

	snap, err := Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, snap)

	snap, err = Decode(datatypes.JSON("null"))
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := Decode(datatypes.JSON(`{"kind":"mystery","data":{}}`))
	require.Error(t, err)

	_, err = Decode(datatypes.JSON(`not json`))
	require.Error(t, err)
}
