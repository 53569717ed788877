package expreplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// addEntry adds a batched transition for two environments whose
// observations, actions, and rewards all equal value (+0.5 for the
// second environment)
func addEntry(t *testing.T, buffer ExperienceReplayer, value float64) {
	obs := mat.NewDense(2, 3, []float64{
		value, value, value,
		value + 0.5, value + 0.5, value + 0.5,
	})
	next := mat.NewDense(2, 3, nil)
	next.Scale(2, obs)
	act := mat.NewDense(2, 1, []float64{value, value + 0.5})
	reward := mat.NewVecDense(2, []float64{value, value + 0.5})
	done := mat.NewVecDense(2, []float64{0, 1})

	require.NoError(t, buffer.Add(obs, act, next, reward, done))
}

func TestRingEviction(t *testing.T) {
	buffer, err := Config{Capacity: 2, Seed: 1}.Create(2, 3, []int{1})
	require.NoError(t, err)
	assert.Equal(t, 0, buffer.Len())

	addEntry(t, buffer, 1)
	addEntry(t, buffer, 2)
	assert.Equal(t, 2, buffer.Len())

	addEntry(t, buffer, 3)
	assert.Equal(t, 2, buffer.Len())
	assert.Equal(t, 2, buffer.Capacity())

	batch, err := buffer.Sample(200)
	require.NoError(t, err)
	assert.Equal(t, 200, batch.Size())

	seen := map[float64]bool{}
	for i := 0; i < batch.Size(); i++ {
		r := batch.Reward.AtVec(i)
		seen[r] = true
		assert.NotContains(t, []float64{1, 1.5}, r,
			"oldest entry should have been evicted")

		// Components of a sampled row belong to the same transition
		assert.Equal(t, r, batch.Observation.At(i, 0))
		assert.Equal(t, 2*r, batch.NextObservation.At(i, 2))
		assert.Equal(t, r, batch.Action.At(i, 0))
		if r == 2 || r == 3 {
			assert.Equal(t, 0.0, batch.Done.AtVec(i))
		} else {
			assert.Equal(t, 1.0, batch.Done.AtVec(i))
		}
	}
	assert.Len(t, seen, 4, "all rows of the two newest entries sampled")
}

func TestSampleErrors(t *testing.T) {
	buffer, err := Config{Capacity: 4, Seed: 1}.Create(2, 3, []int{1})
	require.NoError(t, err)

	_, err = buffer.Sample(1)
	assert.True(t, IsEmptyBuffer(err))

	addEntry(t, buffer, 1)
	_, err = buffer.Sample(0)
	assert.True(t, IsInvalidBatchSize(err))

	_, err = buffer.Sample(1)
	assert.NoError(t, err)
}

func TestAddShapeMismatch(t *testing.T) {
	buffer, err := Config{Capacity: 4, Seed: 1}.Create(2, 3, []int{1})
	require.NoError(t, err)

	obs := mat.NewDense(2, 2, nil)
	act := mat.NewDense(2, 1, nil)
	reward := mat.NewVecDense(2, nil)
	done := mat.NewVecDense(2, nil)
	err = buffer.Add(obs, act, obs, reward, done)
	assert.True(t, IsInvalidShape(err))

	obs = mat.NewDense(2, 3, nil)
	err = buffer.Add(obs, mat.NewDense(2, 2, nil), obs, reward, done)
	assert.True(t, IsInvalidShape(err))

	err = buffer.Add(obs, act, obs, mat.NewVecDense(1, nil), done)
	assert.True(t, IsInvalidShape(err))
	assert.Equal(t, 0, buffer.Len())
}

func TestNewInvalid(t *testing.T) {
	_, err := Config{Capacity: 0}.Create(1, 1, []int{1})
	assert.Error(t, err)
	_, err = Config{Capacity: 1}.Create(0, 1, []int{1})
	assert.Error(t, err)
	_, err = Config{Capacity: 1}.Create(1, 1, nil)
	assert.Error(t, err)
}

func BenchmarkSample(b *testing.B) {
	buffer, err := Config{Capacity: 10_000, Seed: 1}.Create(4, 17, []int{6})
	if err != nil {
		b.Fatal(err)
	}
	obs := mat.NewDense(4, 17, nil)
	act := mat.NewDense(4, 6, nil)
	vec := mat.NewVecDense(4, nil)
	for i := 0; i < 10_000; i++ {
		if err := buffer.Add(obs, act, obs, vec, vec); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := buffer.Sample(256); err != nil {
			b.Fatal(err)
		}
	}
}
