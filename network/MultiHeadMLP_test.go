package network

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/samuelfneumann/gosac/initwfn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newTestMLP(t *testing.T) *MultiHeadMLP {
	init, err := initwfn.NewGlorotU(1.0)
	require.NoError(t, err)

	net, err := NewMultiHeadMLP(3, []int{2, 1}, []int{5, 4},
		[]bool{true, true}, init, []*Activation{TanH(), TanH()})
	require.NoError(t, err)
	return net
}

// loss computes sum(head0 * c0) + sum(head1 * c1) so that the
// gradient with respect to each head is the constant c.
func loss(t *testing.T, net *MultiHeadMLP, x *mat.Dense, c []*mat.Dense) float64 {
	out, _, err := net.Forward(x)
	require.NoError(t, err)

	total := 0.0
	for i := range out {
		var prod mat.Dense
		prod.MulElem(out[i], c[i])
		total += mat.Sum(&prod)
	}
	return total
}

func TestMultiHeadMLPGradients(t *testing.T) {
	net := newTestMLP(t)
	x := mat.NewDense(4, 3, []float64{
		0.1, -0.2, 0.3,
		0.5, 0.4, -0.6,
		-0.7, 0.8, 0.9,
		0.0, -1.0, 0.2,
	})
	c := []*mat.Dense{
		mat.NewDense(4, 2, []float64{1, -1, 0.5, 2, -0.3, 0.7, 1.5, -2}),
		mat.NewDense(4, 1, []float64{0.2, -0.4, 1.1, 0.9}),
	}

	_, backward, err := net.Forward(x)
	require.NoError(t, err)
	net.ZeroGrad()
	dx, err := backward(c)
	require.NoError(t, err)

	const h = 1e-6
	for _, p := range net.Parameters() {
		for i := range p.Data() {
			orig := p.Data()[i]
			p.Data()[i] = orig + h
			up := loss(t, net, x, c)
			p.Data()[i] = orig - h
			down := loss(t, net, x, c)
			p.Data()[i] = orig

			assert.InDelta(t, (up-down)/(2*h), p.GradData()[i], 1e-5,
				"gradient of %v[%v]", p.Name(), i)
		}
	}

	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			orig := x.At(i, j)
			x.Set(i, j, orig+h)
			up := loss(t, net, x, c)
			x.Set(i, j, orig-h)
			down := loss(t, net, x, c)
			x.Set(i, j, orig)

			assert.InDelta(t, (up-down)/(2*h), dx.At(i, j), 1e-5,
				"input gradient (%v, %v)", i, j)
		}
	}
}

func TestMultiHeadMLPNilHeadGradient(t *testing.T) {
	net := newTestMLP(t)
	x := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})

	_, backward, err := net.Forward(x)
	require.NoError(t, err)
	dx, err := backward([]*mat.Dense{nil, nil})
	require.NoError(t, err)
	assert.Equal(t, 0.0, mat.Sum(dx))

	_, err = backward([]*mat.Dense{nil})
	assert.Error(t, err)
}

func TestMultiHeadMLPForwardShape(t *testing.T) {
	net := newTestMLP(t)
	_, _, err := net.Forward(mat.NewDense(2, 4, nil))
	assert.Error(t, err)

	out, _, err := net.Forward(mat.NewDense(2, 3, nil))
	require.NoError(t, err)
	require.Len(t, out, 2)
	r, c := out[0].Dims()
	assert.Equal(t, []int{2, 2}, []int{r, c})
	r, c = out[1].Dims()
	assert.Equal(t, []int{2, 1}, []int{r, c})
}

func TestPolyak(t *testing.T) {
	dest := newTestMLP(t)
	source := newTestMLP(t)
	orig := dest.Parameters()[0].Data()[0]

	require.NoError(t, Polyak(dest.Parameters(), source.Parameters(), 0))
	assert.Equal(t, orig, dest.Parameters()[0].Data()[0])

	require.NoError(t, Polyak(dest.Parameters(), source.Parameters(), 0.5))
	want := 0.5*orig + 0.5*source.Parameters()[0].Data()[0]
	assert.InDelta(t, want, dest.Parameters()[0].Data()[0], 1e-12)

	require.NoError(t, Polyak(dest.Parameters(), source.Parameters(), 1))
	for i, p := range dest.Parameters() {
		assert.Equal(t, source.Parameters()[i].Data(), p.Data())
	}

	assert.Error(t, Polyak(dest.Parameters(), source.Parameters(), 1.5))
}

func TestSetIncompatible(t *testing.T) {
	init, err := initwfn.NewZeroes()
	require.NoError(t, err)
	other, err := NewMultiHeadMLP(3, []int{2}, []int{5}, []bool{true}, init,
		[]*Activation{ReLU()})
	require.NoError(t, err)

	assert.Error(t, Set(newTestMLP(t).Parameters(), other.Parameters()))
	assert.Error(t, Compatible(newTestMLP(t).Parameters(),
		other.Parameters()))
	assert.NoError(t, Compatible(newTestMLP(t).Parameters(),
		newTestMLP(t).Parameters()))
}

func TestMultiHeadMLPGob(t *testing.T) {
	net := newTestMLP(t)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(net))

	var decoded MultiHeadMLP
	require.NoError(t, gob.NewDecoder(&buf).Decode(&decoded))

	x := mat.NewDense(1, 3, []float64{0.3, -0.1, 0.8})
	want, _, err := net.Forward(x)
	require.NoError(t, err)
	got, _, err := decoded.Forward(x)
	require.NoError(t, err)
	for i := range want {
		assert.True(t, mat.Equal(want[i], got[i]))
	}
}
