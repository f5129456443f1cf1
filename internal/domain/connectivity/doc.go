// Package connectivity watches network reachability and reports transitions.
package connectivity
