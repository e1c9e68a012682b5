// Package ws streams live rows to WebSocket clients at /ws/stream.
//
// Every broadcast interval each client receives
//
//	{"event": "snapshot", "data": { /* same schema as GET /api/v1/snapshot */ }}
//
// and, whenever the set of firing or recently resolved alerts changes,
//
//	{"event": "alerts", "data": [ /* same schema as GET /api/v1/alerts */ ]}
//
// A client may connect with ?types=temperature,humidity to receive only
// those rows. The first snapshot is sent as soon as the connection opens.
// The upgrader accepts all origins.
package ws
