package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "1", want: ProductionType},
		{in: " 2 ", want: Unit},
		{in: "generation_mix_15min_time_scale", want: Mix15Min},
		{in: "4", wantErr: true},
		{in: "solar", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			k, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, k)
		})
	}
}

func TestKindConstants(t *testing.T) {
	assert.Equal(t, 155*24*time.Hour, ProductionType.MaxSpan())
	assert.Equal(t, 7*24*time.Hour, Unit.MaxSpan())
	assert.Equal(t, 14*24*time.Hour, Mix15Min.MaxSpan())

	assert.Equal(t, time.Hour, ProductionType.Step())
	assert.Equal(t, time.Hour, Unit.Step())
	assert.Equal(t, 15*time.Minute, Mix15Min.Step())

	assert.Equal(t, 23*time.Hour+45*time.Minute, Mix15Min.DefaultSpan())
	assert.Equal(t, []string{ColEICCode, ColUnitName}, Unit.UnitColumns())
	assert.Equal(t, "kind(9)", Kind(9).String())
}

func TestCanonical(t *testing.T) {
	f := Filter{EICCode: "17W100P100P0344D", ProductionType: "NUCLEAR", ProductionSubtype: "TOTAL"}

	got, dropped := ProductionType.Canonical(f)
	assert.Equal(t, Filter{ProductionType: "NUCLEAR"}, got)
	assert.Equal(t, []string{ColEICCode, ColProductionSubtype}, dropped)

	got, dropped = Unit.Canonical(f)
	assert.Equal(t, Filter{EICCode: "17W100P100P0344D"}, got)
	assert.Equal(t, []string{ColProductionType, ColProductionSubtype}, dropped)

	got, dropped = Mix15Min.Canonical(f)
	assert.Equal(t, Filter{ProductionType: "NUCLEAR", ProductionSubtype: "TOTAL"}, got)
	assert.Equal(t, []string{ColEICCode}, dropped)

	_, dropped = Mix15Min.Canonical(Filter{ProductionType: "NUCLEAR"})
	assert.Empty(t, dropped)
}

func TestParams(t *testing.T) {
	params := Unit.Params(Filter{EICCode: "ABC"})
	assert.Equal(t, "ABC", params.Get("unit_eic_code"))

	params = Mix15Min.Params(Filter{ProductionType: "WIND", ProductionSubtype: "OFFSHORE"})
	assert.Equal(t, "WIND", params.Get("production_type"))
	assert.Equal(t, "OFFSHORE", params.Get("production_subtype"))

	assert.Empty(t, ProductionType.Params(Filter{}))
	assert.Equal(t, []string{"WIND", "OFFSHORE"}, Mix15Min.FilterValues(Filter{ProductionType: "WIND", ProductionSubtype: "OFFSHORE"}))
}
