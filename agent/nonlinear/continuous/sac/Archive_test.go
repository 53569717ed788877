package sac

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestArchiveRoundTrip(t *testing.T) {
	c := testConfig()
	c.Tau = 0.3
	c.Gamma = 0.9
	saved := newAgent(t, 1, c)
	require.NoError(t, saved.Learn(3, 0, 0))

	var buf bytes.Buffer
	require.NoError(t, saved.SaveArchive(&buf))

	other := testConfig()
	other.AutoEntCoef = false
	other.EntCoef = 0.05
	loaded := newAgent(t, 1, other)
	require.False(t, loaded.Metrics().Has(EntCoefLoss))

	require.NoError(t, loaded.LoadArchive(&buf, All))

	if diff := cmp.Diff(saved.hparams(), loaded.hparams()); diff != "" {
		t.Errorf("hparams mismatch (-saved +loaded):\n%v", diff)
	}
	assert.True(t, loaded.EntropyCoefficient().Auto())
	assert.InDelta(t, saved.EntropyCoefficient().Value(),
		loaded.EntropyCoefficient().Value(), 1e-12)
	assert.True(t, loaded.Metrics().Has(EntCoefLoss))
	assert.Equal(t, 0.3, loaded.Config().Tau)

	assert.Equal(t, paramData(saved.Actor().Parameters()),
		paramData(loaded.Actor().Parameters()))
	assert.Equal(t, paramData(saved.Critic().Parameters()),
		paramData(loaded.Critic().Parameters()))
	assert.Equal(t, paramData(saved.CriticTarget().Parameters()),
		paramData(loaded.CriticTarget().Parameters()))
	assert.True(t, loaded.CriticTarget().IsEval())

	// The loaded agent keeps learning
	require.NoError(t, loaded.Learn(2, 0, 0))
}

func TestArchiveSubset(t *testing.T) {
	saved := newAgent(t, 1, testConfig())
	require.NoError(t, saved.Learn(2, 0, 0))

	var buf bytes.Buffer
	require.NoError(t, saved.SaveArchive(&buf, CriticSection, HParamsSection))

	var archive map[string][]byte
	require.NoError(t, gob.NewDecoder(bytes.NewReader(buf.Bytes())).
		Decode(&archive))
	assert.Len(t, archive, 2)
	assert.Contains(t, archive, CriticSection)
	assert.Contains(t, archive, HParamsSection)

	c := testConfig()
	c.Gamma = 0.5
	loaded := newAgent(t, 1, c)
	actor := paramData(loaded.Actor().Parameters())
	target := paramData(loaded.CriticTarget().Parameters())

	// Only the critic is selected; the missing actor section is skipped
	require.NoError(t, loaded.LoadArchive(bytes.NewReader(buf.Bytes()),
		CriticSection, ActorSection))

	assert.Equal(t, paramData(saved.Critic().Parameters()),
		paramData(loaded.Critic().Parameters()))
	assert.Equal(t, actor, paramData(loaded.Actor().Parameters()))
	assert.Equal(t, target, paramData(loaded.CriticTarget().Parameters()))
	assert.Equal(t, 0.5, loaded.Config().Gamma)
}

func TestArchiveFixedEntCoef(t *testing.T) {
	c := testConfig()
	c.AutoEntCoef = false
	c.EntCoef = 0.2
	saved := newAgent(t, 1, c)

	h := saved.hparams()
	assert.Nil(t, h.LogEntCoef)
	require.NotNil(t, h.EntCoefTensor)
	assert.Equal(t, 0.2, *h.EntCoefTensor)

	var buf bytes.Buffer
	require.NoError(t, saved.SaveArchive(&buf))

	var archive map[string][]byte
	require.NoError(t, gob.NewDecoder(bytes.NewReader(buf.Bytes())).
		Decode(&archive))
	assert.NotContains(t, archive, EntOptSection)

	loaded := newAgent(t, 1, testConfig())
	require.NoError(t, loaded.LoadArchive(&buf))
	assert.False(t, loaded.EntropyCoefficient().Auto())
	assert.Equal(t, 0.2, loaded.EntropyCoefficient().Value())
	assert.False(t, loaded.Metrics().Has(EntCoefLoss))
}

func TestArchiveCorrupt(t *testing.T) {
	s := newAgent(t, 1, testConfig())
	actor := s.Actor()
	before := s.hparams()

	err := s.LoadArchive(bytes.NewReader([]byte("not an archive")))
	assert.Error(t, err)

	// A valid hparams section must not be loaded if another selected
	// section is corrupt
	h := before
	h.Gamma = 0.1
	data, err := yaml.Marshal(h)
	require.NoError(t, err)
	archive := map[string][]byte{
		HParamsSection: data,
		ActorSection:   []byte("garbage"),
	}
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(archive))

	err = s.LoadArchive(&buf)
	assert.Error(t, err)
	assert.Same(t, actor, s.Actor())
	if diff := cmp.Diff(before, s.hparams()); diff != "" {
		t.Errorf("hparams changed (-before +after):\n%v", diff)
	}
}

func TestArchiveInvalidHParams(t *testing.T) {
	s := newAgent(t, 1, testConfig())

	h := s.hparams()
	h.BatchSize = 0
	data, err := yaml.Marshal(h)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(map[string][]byte{
		HParamsSection: data,
	}))
	err = s.LoadArchive(&buf)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, testConfig().BatchSize, s.Config().BatchSize)

	buf.Reset()
	require.NoError(t, gob.NewEncoder(&buf).Encode(map[string][]byte{
		HParamsSection: []byte("unknown_key: 3\n"),
	}))
	assert.Error(t, s.LoadArchive(&buf))
}

func TestArchiveNotReset(t *testing.T) {
	s, err := New(&constEnv{numEnvs: 1}, testConfig(), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.Error(t, s.SaveArchive(&buf))
	assert.Error(t, s.LoadArchive(&buf))
}

func TestArchiveArchitectureMismatch(t *testing.T) {
	wide := testConfig()
	wide.HiddenSizes = []int{16}
	saved := newAgent(t, 1, wide)

	var buf bytes.Buffer
	require.NoError(t, saved.SaveArchive(&buf))
	data := buf.Bytes()

	s := newAgent(t, 1, testConfig())
	actor, critic, target := s.Actor(), s.Critic(), s.CriticTarget()
	for _, section := range []string{ActorSection, CriticSection,
		TargetSection} {
		err := s.LoadArchive(bytes.NewReader(data), section)
		assert.Error(t, err, section)
	}
	assert.Same(t, actor, s.Actor())
	assert.Same(t, critic, s.Critic())
	assert.Same(t, target, s.CriticTarget())

	twin := testConfig()
	twin.NumCritics = 3
	saved = newAgent(t, 1, twin)
	buf.Reset()
	require.NoError(t, saved.SaveArchive(&buf, CriticSection))
	assert.Error(t, s.LoadArchive(&buf))
	assert.Same(t, critic, s.Critic())

	require.NoError(t, s.Learn(2, 0, 0))
}
