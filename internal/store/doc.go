// Package store defines the store location record and the column layout sinks persist it in.
package store
