// Package connectors holds the connector drivers and the factory that maps
// a document source to its driver.
//
// Drivers pull documents from an external system and stream them on a
// channel. They know nothing about pairs, attempts or bookkeeping; the
// indexing runner owns all of that.
package connectors
