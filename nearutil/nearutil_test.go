package nearutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShadowTableName(t *testing.T) {
	assert.Equal(t, "_near_poi", ShadowTableName("poi"))
	cases := map[string]string{
		"_near_poi":      "poi",
		"main._near_poi": "poi",
		"aux._near_x_y":  "x_y",
		"poi":            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, TableNameFromShadow(in), in)
	}
}

func TestInvalidateTriggers(t *testing.T) {
	trigs := InvalidateTriggers("main._near_poi")
	require.Len(t, trigs, 3)
	assert.Contains(t, trigs[0], "CREATE TRIGGER IF NOT EXISTS trg_near_main__near_poi_ins AFTER INSERT ON main._near_poi")
	assert.Contains(t, trigs[1], "NEW.dataset_id", "update trigger must invalidate the new dataset")
	assert.Contains(t, trigs[1], "OLD.dataset_id", "update trigger must invalidate the old dataset")
	assert.Contains(t, trigs[2], "near_invalidate('main._near_poi', OLD.dataset_id)")
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "'it''s'", QuoteLiteral("it's"))
	assert.Equal(t, "main_a_b_c", SanitizeIdentifier("main.a-b c"))
}
