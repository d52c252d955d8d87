// Package mock provides test doubles for the ai capability interfaces.
//
// All mocks allow custom behavior injection via function fields and fall
// back to deterministic defaults, so tests stay reproducible without
// external services.
package mock
