package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/insightlab/insightengine/domain/models"
)

func fingerprintQuery() models.ChartQuery {
	return models.ChartQuery{
		Chart: models.ChartBar,
		X:     models.FieldSpec{Column: "region", Role: models.RoleCategory},
		Y:     measure("amount", models.AggSum),
		Filters: []models.ChartFilter{
			{Column: "region", Operator: models.OpEq, Values: []string{"North"}},
			{Column: "amount", Operator: models.OpGt, Values: []string{"10"}},
		},
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("d1", fingerprintQuery())
	b := Fingerprint("d1", fingerprintQuery())
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestFingerprintIgnoresFilterOrder(t *testing.T) {
	q1 := fingerprintQuery()
	q2 := fingerprintQuery()
	q2.Filters[0], q2.Filters[1] = q2.Filters[1], q2.Filters[0]
	assert.Equal(t, Fingerprint("d1", q1), Fingerprint("d1", q2))
}

func TestFingerprintIgnoresExtrasOrder(t *testing.T) {
	q := fingerprintQuery()
	assert.Equal(t,
		Fingerprint("d1", q, "percentile=p95", "mode=bucket"),
		Fingerprint("d1", q, "mode=bucket", "percentile=p95"))
}

func TestFingerprintSensitivity(t *testing.T) {
	q := fingerprintQuery()
	base := Fingerprint("d1", q)

	assert.NotEqual(t, base, Fingerprint("d2", q))

	q2 := fingerprintQuery()
	q2.TopN = 5
	assert.NotEqual(t, base, Fingerprint("d1", q2))

	q3 := fingerprintQuery()
	q3.Filters[0].Values = []string{"South"}
	assert.NotEqual(t, base, Fingerprint("d1", q3))

	assert.NotEqual(t, base, Fingerprint("d1", q, "percentile=p95"))
}

func TestFingerprintValueJoinNotAmbiguous(t *testing.T) {
	// ["ab","c"] and ["a","bc"] must not collide
	q1 := fingerprintQuery()
	q1.Filters[0].Values = []string{"ab", "c"}
	q2 := fingerprintQuery()
	q2.Filters[0].Values = []string{"a", "bc"}
	assert.NotEqual(t, Fingerprint("d1", q1), Fingerprint("d1", q2))
}
