// Package formats reads and writes Ragnarok Online model files.
package formats
