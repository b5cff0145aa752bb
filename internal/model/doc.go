// Package model defines the domain types shared by the fetcher, the
// synchronization service and the storage backends.
//
// Prices are kept as decimals end to end; only the append store converts them
// to Float64 columns.
package model
