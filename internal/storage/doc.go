// Package storage answers whether the work directory still has room for
// another trial file.
package storage
