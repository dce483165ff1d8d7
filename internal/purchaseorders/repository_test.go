package purchaseorders

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

func TestProvenanceParamEncodesEmptyArrayNotNull(t *testing.T) {
	m := pgtype.NewMap()

	// Direct creates carry no provenance; the parameter must still encode as
	// an empty array because original_po_ids is NOT NULL.
	buf, err := m.Encode(pgtype.Int8ArrayOID, pgx.TextFormatCode, provenanceParam(nil), nil)
	require.NoError(t, err)
	require.NotNil(t, buf)
	require.Equal(t, "{}", string(buf))

	buf, err = m.Encode(pgtype.Int8ArrayOID, pgx.TextFormatCode, provenanceParam([]int64{4, 9}), nil)
	require.NoError(t, err)
	require.Equal(t, "{4,9}", string(buf))
}
