// Package store provides authsession.Store implementations. Every store
// keeps exactly one record under a fixed namespace and only performs whole
// record writes.
package store
