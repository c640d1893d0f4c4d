// Package audio persists audio clips in the audioFiles partition under a hard
// byte quota.
//
// # Quota
//
// Save never lets the sum of stored sizes exceed the quota. When a new clip
// does not fit, the oldest clips (by createdAt, ties broken by id) are evicted
// first. A clip larger than the whole quota is rejected without evicting.
//
// By default the save sequence (usage scan, eviction, write) is not atomic: if
// the final write fails the evicted clips stay evicted. WithAtomicSave runs the
// whole sequence in one store transaction instead.
//
// # Integrity
//
// Every entry carries a BLAKE2b-256 checksum of its payload; Get reports
// common.ErrCorrupted when it does not match.
//
// Key Types
//
//   - type Repository       interface used by services
//   - type StoreRepository  implementation over objectstore.Store
//   - type Payload          binary or encoded (base64 / data URL) clip data
package audio
