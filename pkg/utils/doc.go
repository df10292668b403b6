// Package utils holds small helpers shared across conceptgraph packages:
// panic recovery for background goroutines and string normalisation for
// labels and model output.
package utils
