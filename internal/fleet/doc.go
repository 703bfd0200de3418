// Package fleet holds the fleet configuration document: the list of nodes
// with their transport, stack tags, beacon API ports and per-network
// settings.
//
// The document is read and written through the Store interface. FileStore
// keeps it in a YAML file, validates it with go-playground/validator before
// every save and replaces the file atomically. Fields this package does not
// know about are preserved across a load/save cycle.
package fleet
