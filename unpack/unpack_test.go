package unpack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/rawpack/analyzer"
	"github.com/arloliu/rawpack/errs"
	"github.com/arloliu/rawpack/token"
	"github.com/arloliu/rawpack/unpack"
)

func mustAnalyze(t *testing.T, format string) *token.Tree {
	t.Helper()
	tree, err := token.Tokenize(format)
	require.NoError(t, err)
	require.NoError(t, analyzer.Analyze(tree, false))

	return tree
}

func TestRun_ScenarioS3_AbsoluteReferencesIndexIndependentSlots(t *testing.T) {
	// "3B /0s /1s /2s" -> [4, 3, 4, "spam", "ham", "eggs"], each /N pinned
	// to one of the three B slots independently.
	tree := mustAnalyze(t, "3B /0s /1s /2s")
	data := append([]byte{4, 3, 4}, []byte("spamhameggs")...)

	vals, cursor, err := unpack.Run(tree, data, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, len(data), cursor)
	require.Len(t, vals, 6)

	b0, _ := vals[0].AsInt64()
	b1, _ := vals[1].AsInt64()
	b2, _ := vals[2].AsInt64()
	assert.Equal(t, int64(4), b0)
	assert.Equal(t, int64(3), b1)
	assert.Equal(t, int64(4), b2)

	s0, _ := vals[3].Text()
	s1, _ := vals[4].Text()
	s2, _ := vals[5].Text()
	assert.Equal(t, "spam", s0)
	assert.Equal(t, "ham", s1)
	assert.Equal(t, "eggs", s2)
}

func TestRun_ScenarioS7_UnsafeModeChainedReference(t *testing.T) {
	tree, err := token.Tokenize("B /0B /p1c")
	require.NoError(t, err)
	require.NoError(t, analyzer.Analyze(tree, true))

	data := []byte{2, 5, 1, 'x'}
	vals, cursor, err := unpack.Run(tree, data, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, cursor)
	require.Len(t, vals, 4)
}

func TestRun_FixedRecord(t *testing.T) {
	tree := mustAnalyze(t, "<Bh")
	data := []byte{0x2a, 0x01, 0x00}

	vals, cursor, err := unpack.Run(tree, data, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cursor)

	b, _ := vals[0].AsInt64()
	h, _ := vals[1].AsInt64()
	assert.Equal(t, int64(0x2a), b)
	assert.Equal(t, int64(1), h)
}

func TestRun_NullTerminatedString(t *testing.T) {
	tree := mustAnalyze(t, "n")
	data := []byte("hello\x00world")

	vals, cursor, err := unpack.Run(tree, data, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, cursor)

	s, ok := vals[0].Text()
	require.True(t, ok)
	assert.Equal(t, "hello", s)
}

func TestRun_NullTerminatedStringMissingTerminatorIsDataError(t *testing.T) {
	tree := mustAnalyze(t, "n")
	data := []byte("hello")

	_, _, err := unpack.Run(tree, data, 0, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrUnterminatedString)
}

func TestRun_RestOfStream(t *testing.T) {
	tree := mustAnalyze(t, "B $")
	data := []byte{1, 2, 3, 4}

	vals, cursor, err := unpack.Run(tree, data, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, cursor)

	rest, ok := vals[1].Bytes()
	require.True(t, ok)
	assert.Equal(t, []byte{2, 3, 4}, rest)
}

func TestRun_GroupFlattensRepeatsIntoOneSequence(t *testing.T) {
	tree := mustAnalyze(t, "2(BB)")
	data := []byte{1, 2, 3, 4}

	vals, cursor, err := unpack.Run(tree, data, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, cursor)

	seq, ok := vals[0].Seq()
	require.True(t, ok)
	require.Len(t, seq, 4)
}

func TestRun_IteratorNestsEachRepetition(t *testing.T) {
	tree := mustAnalyze(t, "2[BB]")
	data := []byte{1, 2, 3, 4}

	vals, cursor, err := unpack.Run(tree, data, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, cursor)

	seq, ok := vals[0].Seq()
	require.True(t, ok)
	require.Len(t, seq, 2)

	inner, ok := seq[0].Seq()
	require.True(t, ok)
	require.Len(t, inner, 2)
}

func TestRun_UnboundedIteratorConsumesAllRemainingBytes(t *testing.T) {
	tree := mustAnalyze(t, "{B}")
	data := []byte{1, 2, 3}

	vals, cursor, err := unpack.Run(tree, data, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cursor)

	seq, ok := vals[0].Seq()
	require.True(t, ok)
	require.Len(t, seq, 3)
}

func TestRun_ExternalReferenceCountFromRefdata(t *testing.T) {
	tree := mustAnalyze(t, "#0B")
	data := []byte{1, 2, 3}

	vals, cursor, err := unpack.Run(tree, data, 0, []int64{3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cursor)
	assert.Len(t, vals, 3)
}

func TestRun_AlignmentPadsToBoundary(t *testing.T) {
	tree := mustAnalyze(t, "QB| BB 4a B")
	data := make([]byte, 8+1+2+2+1)
	for i := range data {
		data[i] = byte(i)
	}

	_, cursor, err := unpack.Run(tree, data, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, len(data), cursor)
}

func TestRun_ShortReadIsDataError(t *testing.T) {
	tree := mustAnalyze(t, "I")
	data := []byte{1, 2}

	_, _, err := unpack.Run(tree, data, 0, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrShortRead)
}
