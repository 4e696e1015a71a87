// Package model defines the entities shared by the cache adapters, the
// system-of-record collections, job payloads and fan-out events.
//
// One struct serves all four: json tags give the wire shape used in job
// payloads and events, gorm tags give the record schema. Nested objects
// (notification settings, social links, blocked lists, message reactions)
// are stored as JSON in both tiers.
package model
