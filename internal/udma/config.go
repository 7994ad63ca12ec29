package udma

// InterfaceConfig describes one peripheral-interface block read from the
// host's hierarchical config store (spec §6).
type InterfaceConfig struct {
	NbChannels int
	IDs        []int
	Offsets    []int
	Version    int
}

// Config is the uDMA controller's build-time configuration.
type Config struct {
	NbPeriphs      int
	L2ReadFIFOSize int
	Interfaces     map[string]InterfaceConfig

	// Factories overrides DefaultPeriphFactories per interface name; a nil
	// entry leaves the default generic body in place.
	Factories map[string]PeriphFactory

	// StrictClockGate, when true, makes an access to a gated-off
	// peripheral return Invalid instead of the bug-compatible OK (spec
	// §9's "allow a strict mode in tests").
	StrictClockGate bool

	// Observer, if non-nil, receives a report for every transfer that
	// completes or fails (spec §8 metrics). Any type with a matching
	// ObserveTransfer method satisfies this, such as gvsoc.MetricsObserver.
	Observer Observer
}
