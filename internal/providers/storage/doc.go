/*
Package storage persists the gate's state across launches.

A Store is a flat key-value map with whole-value writes. Memory backs tests
and ephemeral runs; SQLite (pure Go, modernc.org/sqlite) backs real ones.
State layers typed accessors over the well-known keys, encoding values as
JSON.
*/
package storage
