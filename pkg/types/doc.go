// Package types defines the watchlist Record model, the Store interface that
// every table backend implements, configuration, and the standard errors shared
// by the mirror, the stores and the outer surfaces.
package types
