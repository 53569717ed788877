package tracker

// registeredTracker registers a set of statistics with some Tracker so
// that the Tracker tracks those statistics only. registeredTracker
// itself is a Tracker.
//
// The Header() and Track() methods of a registeredTracker call those
// of the embedded Tracker with every unregistered statistic removed.
// This may be useful to export only a few statistics to a sink, for
// example only the losses to a metrics endpoint.
type registeredTracker struct {
	Tracker
	names map[string]bool
}

// Register registers a set of statistic names with a Tracker, to track
// those statistics only. Register returns a copy of the argument
// Tracker that is registered with the argument names.
//
// Note: the underlying concrete type of the registered Tracker is
// lost when registering names with a Tracker.
func Register(t Tracker, names ...string) Tracker {
	registered := make(map[string]bool, len(names))
	for _, name := range names {
		registered[name] = true
	}
	return &registeredTracker{t, registered}
}

// Header calls Header() on the embedded Tracker with the registered
// names only
func (r *registeredTracker) Header(names []string) error {
	var kept []string
	for _, name := range names {
		if r.names[name] {
			kept = append(kept, name)
		}
	}
	return r.Tracker.Header(kept)
}

// Track calls Track() on the embedded Tracker with the registered
// statistics only
func (r *registeredTracker) Track(row Row) error {
	kept := Row{TimeSteps: row.TimeSteps}
	for i, name := range row.Names {
		if r.names[name] {
			kept.Names = append(kept.Names, name)
			kept.Values = append(kept.Values, row.Values[i])
		}
	}
	return r.Tracker.Track(kept)
}
