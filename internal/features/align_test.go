package features

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-predictor/internal/common"
)

func placementSchema() Schema {
	return Schema(append([]string(nil), common.DefaultFeatures...))
}

func TestAlign_MissingFeatureDefaultsToZero(t *testing.T) {
	schema := Schema{"Maths", "Python"}

	vec, report, err := Align(Record{"Maths": 80}, schema, IdentityScaler(2), common.DroppedColumns)
	require.NoError(t, err)

	if diff := cmp.Diff(Vector{80, 0}, vec); diff != "" {
		t.Errorf("aligned vector mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Python"}, report.Missing)
	assert.True(t, report.Defaulted())
}

func TestAlign_ExtraFieldsIgnored(t *testing.T) {
	schema := Schema{"Maths", "Python"}
	scaler := IdentityScaler(2)

	base, _, err := Align(Record{"Maths": 70, "Python": 65}, schema, scaler, common.DroppedColumns)
	require.NoError(t, err)

	withExtra, report, err := Align(Record{"Maths": 70, "Python": 65, "Foo": 999}, schema, scaler, common.DroppedColumns)
	require.NoError(t, err)

	if diff := cmp.Diff(base, withExtra); diff != "" {
		t.Errorf("extra field changed vector (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Foo"}, report.Ignored)
	assert.False(t, report.Defaulted())
}

func TestAlign_DroppedColumnsNeverContribute(t *testing.T) {
	// Schema deliberately contains an identifier name to prove dropping
	// happens before alignment.
	schema := Schema{"Maths", "Student_ID"}
	scaler := IdentityScaler(2)

	for _, id := range []any{1, 42.5, "S-0099", nil} {
		vec, report, err := Align(Record{"Maths": 50, "Student_ID": id, "Name": "Asha"}, schema, scaler, common.DroppedColumns)
		require.NoError(t, err)
		assert.Equal(t, Vector{50, 0}, vec)
		assert.Equal(t, []string{"Name", "Student_ID"}, report.Dropped)
		assert.Equal(t, []string{"Student_ID"}, report.Missing)
	}
}

func TestAlign_NonNumericCoercedToZero(t *testing.T) {
	schema := Schema{"Maths", "Python", "SQL"}

	vec, report, err := Align(Record{"Maths": "abc", "Python": "72", "SQL": nil}, schema, IdentityScaler(3), nil)
	require.NoError(t, err)

	assert.Equal(t, Vector{0, 72, 0}, vec)
	assert.Equal(t, []string{"Maths", "SQL"}, report.Invalid)
	assert.Empty(t, report.Missing)
}

func TestAlign_InputOrderIrrelevant(t *testing.T) {
	schema := placementSchema()
	scaler, err := NewScaler(
		[]float64{60, 55, 58, 80, 2, 6, 62},
		[]float64{12, 15, 14, 9, 1.5, 2, 11},
	)
	require.NoError(t, err)

	var a, b Record
	require.NoError(t, json.Unmarshal([]byte(`{"Maths":60,"Python":61,"SQL":62,"Attendance":75,"Mini_Projects":1,"Communication_Score":6,"Placement_Readiness_Score":65}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"Placement_Readiness_Score":65,"Communication_Score":6,"Mini_Projects":1,"Attendance":75,"SQL":62,"Python":61,"Maths":60}`), &b))

	va, _, err := Align(a, schema, scaler, common.DroppedColumns)
	require.NoError(t, err)
	vb, _, err := Align(b, schema, scaler, common.DroppedColumns)
	require.NoError(t, err)

	if diff := cmp.Diff(va, vb); diff != "" {
		t.Errorf("permuted record changed vector (-a +b):\n%s", diff)
	}
}

func TestAlign_FollowsSchemaOrder(t *testing.T) {
	schema := Schema{"SQL", "Maths", "Python"}
	scaler, err := NewScaler([]float64{10, 20, 30}, []float64{1, 2, 5})
	require.NoError(t, err)

	vec, _, err := Align(Record{"Maths": 40, "Python": 80, "SQL": 15}, schema, scaler, nil)
	require.NoError(t, err)

	// (15-10)/1, (40-20)/2, (80-30)/5
	assert.Equal(t, Vector{5, 10, 10}, vec)
}

func TestAlign_EmptyRecord(t *testing.T) {
	schema := Schema{"Maths", "Python"}
	scaler, err := NewScaler([]float64{50, 40}, []float64{10, 20})
	require.NoError(t, err)

	vec, report, err := Align(Record{}, schema, scaler, common.DroppedColumns)
	require.NoError(t, err)
	assert.Equal(t, Vector{-5, -2}, vec)
	assert.Equal(t, []string{"Maths", "Python"}, report.Missing)

	vecNil, _, err := Align(nil, schema, scaler, common.DroppedColumns)
	require.NoError(t, err)
	assert.Equal(t, vec, vecNil)
}

func TestAlign_OutOfRangeValuesPassThrough(t *testing.T) {
	vec, report, err := Align(Record{"Maths": 1e6, "Python": -300}, Schema{"Maths", "Python"}, IdentityScaler(2), nil)
	require.NoError(t, err)
	assert.Equal(t, Vector{1e6, -300}, vec)
	assert.False(t, report.Defaulted())
}

func TestAlign_ScalerMismatch(t *testing.T) {
	_, _, err := Align(Record{"Maths": 1}, Schema{"Maths", "Python"}, IdentityScaler(3), nil)
	assert.ErrorIs(t, err, ErrScalerMismatch)

	_, _, err = Align(Record{"Maths": 1}, Schema{"Maths"}, nil, nil)
	assert.ErrorIs(t, err, ErrScalerMismatch)
}

func TestAlign_Deterministic(t *testing.T) {
	schema := placementSchema()
	scaler := IdentityScaler(len(schema))
	rec := Record{"Maths": 60, "Python": "60", "SQL": 60.0, "Attendance": int64(75), "Foo": 1, "Name": "x"}

	first, firstReport, err := Align(rec, schema, scaler, common.DroppedColumns)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		vec, report, err := Align(rec, schema, scaler, common.DroppedColumns)
		require.NoError(t, err)
		require.Equal(t, first, vec)
		require.Equal(t, firstReport, report)
	}
	for _, v := range first {
		assert.False(t, math.IsNaN(v))
	}
}
