package sac

import "fmt"

// Stat identifies a statistic logged by a SAC agent
type Stat int

// Statistics logged by a SAC agent, in log column order
const (
	NumUpdates Stat = iota
	EntCoef
	ActorLoss
	CriticLoss
	QValue
	Reward
	EntCoefLoss // Only registered when the entropy coefficient is learned
	numStats
)

var statNames = [numStats]string{
	NumUpdates:  "num_updates",
	EntCoef:     "ent_coef",
	ActorLoss:   "actor_loss",
	CriticLoss:  "critic_loss",
	QValue:      "q_value",
	Reward:      "reward",
	EntCoefLoss: "ent_coef_loss",
}

// String implements the fmt.Stringer interface
func (s Stat) String() string {
	if s < 0 || s >= numStats {
		return fmt.Sprintf("Stat(%d)", int(s))
	}
	return statNames[s]
}

// registeredStats returns the statistics logged by an agent, which
// depend only on whether the entropy coefficient is learned
func registeredStats(autoEntCoef bool) []Stat {
	stats := []Stat{NumUpdates, EntCoef, ActorLoss, CriticLoss, QValue, Reward}
	if autoEntCoef {
		stats = append(stats, EntCoefLoss)
	}
	return stats
}

// Metrics is a record of the statistics of the most recent call to
// Train. The set of registered statistics is fixed when the record is
// created.
type Metrics struct {
	stats  []Stat
	values [numStats]float64
}

// newMetrics returns a zeroed record over stats
func newMetrics(stats []Stat) Metrics {
	return Metrics{stats: append([]Stat(nil), stats...)}
}

// Stats returns the registered statistics in log column order
func (m Metrics) Stats() []Stat {
	return append([]Stat(nil), m.stats...)
}

// Names returns the names of the registered statistics in log column
// order
func (m Metrics) Names() []string {
	names := make([]string, len(m.stats))
	for i, s := range m.stats {
		names[i] = s.String()
	}
	return names
}

// Values returns the values of the registered statistics in log
// column order
func (m Metrics) Values() []float64 {
	values := make([]float64, len(m.stats))
	for i, s := range m.stats {
		values[i] = m.values[s]
	}
	return values
}

// Has returns whether s is registered
func (m Metrics) Has(s Stat) bool {
	for _, registered := range m.stats {
		if registered == s {
			return true
		}
	}
	return false
}

// Get returns the value of s and whether s is registered
func (m Metrics) Get(s Stat) (float64, bool) {
	if !m.Has(s) {
		return 0, false
	}
	return m.values[s], true
}

// set sets the value of s. Values of unregistered statistics are
// dropped.
func (m *Metrics) set(s Stat, v float64) {
	if m.Has(s) {
		m.values[s] = v
	}
}
