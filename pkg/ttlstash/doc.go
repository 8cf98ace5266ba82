// Package ttlstash provides a typed key-value store with per-key expiration
// on top of a synchronous string key-value backend.
//
// A Store keeps an in-memory mirror of a single JSON document stored under
// its namespace:
//
//	{"values": {"k": <json>}, "TTL": {"k": "<epoch-millis>"}}
//
// Every mutation writes the whole document back to the backend. Reads are
// served from the mirror, so a failing backend never affects them.
//
// Features:
//
//   - Availability probing of the requested engine, with a fallback from the
//     persistent engine to the session engine
//   - Per-key expiration: relative seconds, absolute instants, and calendar
//     offsets (today, this month, this year, structured deltas)
//   - Lazy expiry on read plus a sweep after every restore
//   - Cross-context sync: any change notification from the backend re-pulls
//     the document (last writer wins)
//   - Degraded mode: when the backend is unusable the store keeps working in
//     memory and reports a Status
//
// Backends live in the pkg/backend tree (memory, filedir, badgerkv, rediskv,
// sqlitekv). They are registered on a Host, the registry a Store resolves its
// engine from.
package ttlstash
