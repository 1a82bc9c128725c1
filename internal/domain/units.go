package domain

// Unit conversion factors
const (
	AngstromToBohr = 1.8897259877
	BohrToAngstrom = 0.52917724924
)
