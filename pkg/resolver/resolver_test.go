package resolver

import (
	"testing"

	"github.com/soundprediction/conceptgraph/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodes(pairs ...string) []*types.Node {
	out := make([]*types.Node, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, &types.Node{ID: pairs[i], Name: pairs[i+1], UserID: "u1"})
	}
	return out
}

func TestResolveExactMatch(t *testing.T) {
	ix := NewIndex(nodes("n1", "Acid"))

	m, err := ix.Resolve("Acid")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "n1", m.Node.ID)
	assert.Equal(t, 1.0, m.Score)
}

func TestResolveNormalisesCaseAndWhitespace(t *testing.T) {
	ix := NewIndex(nodes("n1", "Machine Learning"))

	m, err := ix.Resolve("  machine   LEARNING ")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "n1", m.Node.ID)
}

func TestResolveFuzzy(t *testing.T) {
	ix := NewIndex(nodes("n1", "Neural Network", "n2", "Photosynthesis"))

	tests := []struct {
		label  string
		wantID string
	}{
		{"Neural Networks", "n1"},
		{"neural netwrk", "n1"},
		{"Photosynthesys", "n2"},
		{"Quantum Mechanics", ""},
		{"Acid", ""},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			m, err := ix.Resolve(tt.label)
			require.NoError(t, err)
			if tt.wantID == "" {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.wantID, m.Node.ID)
			assert.GreaterOrEqual(t, m.Score, DefaultThreshold)
		})
	}
}

func TestResolveEmptyIndex(t *testing.T) {
	ix := NewIndex(nil)

	m, err := ix.Resolve("Base")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, 0, ix.Len())
}

func TestResolveEmptyLabel(t *testing.T) {
	ix := NewIndex(nodes("n1", "Acid"))

	for _, label := range []string{"", "   ", "\t\n"} {
		_, err := ix.Resolve(label)
		assert.ErrorIs(t, err, ErrEmptyLabel)
	}
}

func TestResolveTieBreakIsDeterministic(t *testing.T) {
	// "cat" is one edit from both "bat" and "hat"
	ix := NewIndex(nodes("n2", "hat", "n1", "bat"), WithThreshold(0.5))

	for i := 0; i < 10; i++ {
		m, err := ix.Resolve("cat")
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "bat", m.Node.Name)
	}
}

func TestResolveDuplicateExistingNamesPicksLowestID(t *testing.T) {
	ix := NewIndex(nodes("n9", "Acid", "n3", "acid", "n5", "Acid"))

	m, err := ix.Resolve("acid")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Acid", m.Node.Name)
	assert.Equal(t, "n5", m.Node.ID)
}

func TestResolvePrefersHigherScore(t *testing.T) {
	ix := NewIndex(nodes("n1", "Neural Nets", "n2", "Neural Networks"))

	m, err := ix.Resolve("Neural Network")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "n2", m.Node.ID)
}

func TestWithThreshold(t *testing.T) {
	strict := NewIndex(nodes("n1", "Neural Network"), WithThreshold(0.99))
	m, err := strict.Resolve("Neural Networks")
	require.NoError(t, err)
	assert.Nil(t, m)

	ignored := NewIndex(nil, WithThreshold(1.5))
	assert.Equal(t, DefaultThreshold, ignored.Threshold())
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Acid", "acid"))
	assert.InDelta(t, 0.8, Similarity("Acid", "Acids"), 1e-9)
	assert.Equal(t, 0.0, Similarity("", ""))
	assert.Less(t, Similarity("Acid", "Base"), DefaultThreshold)
}
