// Package metrics provides per-socket kernel statistics and Prometheus
// collectors for realtime connections.
//
// # SocketStats
//
// SocketStats reports what the kernel knows about a stream socket: how many
// bytes are queued but not yet sent, and the kernel's smoothed RTT.
//
//   - Linux: SIOCOUTQ ioctl and TCP_INFO
//   - Darwin: TCP_CONNECTION_INFO
//   - elsewhere, or for non-TCP connections: zero values
//
// # Collector
//
// Collector exports connection lifecycle counters, RTT samples, traffic
// volume and admission refusals. A nil *Collector is valid and records
// nothing.
package metrics
