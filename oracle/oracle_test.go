package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestNoopOracle_AlwaysNoChange(t *testing.T) {
	o := NoopOracle{}
	d, err := o.Propose(context.Background(), Context{Phase: "refine"})
	require.NoError(t, err)
	assert.Equal(t, KindNoChange, d.Kind)
}

func TestScriptedOracle_PlaysBackInOrder(t *testing.T) {
	o := &ScriptedOracle{Decisions: []Decision{
		{Kind: KindParamChange, Overrides: map[string]float64{"atrMult": 2.5}},
		{Kind: KindNoChange},
	}}

	d1, err := o.Propose(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, KindParamChange, d1.Kind)
	assert.Equal(t, 2.5, d1.Overrides["atrMult"])

	d2, err := o.Propose(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, KindNoChange, d2.Kind)

	// Queue exhausted: further calls decline.
	d3, err := o.Propose(context.Background(), Context{})
	require.NoError(t, err)
	assert.Equal(t, KindNoChange, d3.Kind)
	assert.Equal(t, 2, o.Calls())
}

func TestMockOracle_SatisfiesInterface(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockOracle(ctrl)

	want := Decision{Kind: KindSourceEdit, NewText: "// edited"}
	m.EXPECT().Propose(gomock.Any(), gomock.Any()).Return(want, nil)

	var o Oracle = m
	got, err := o.Propose(context.Background(), Context{Phase: "restructure"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
