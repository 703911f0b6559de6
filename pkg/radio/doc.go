// Package radio defines the link-layer collaborators the aggregation protocol
// is built on:
//
// - Link: a broadcast-capable radio with a bounded frame size
// - Mux: demultiplexes inbound frames to per-channel receivers
// - Stubborn: a broadcast resent at a fixed interval until cancelled
// - Reliable: acknowledged unicast with a bounded number of retransmissions
//
// Concrete links live in sub-packages: medium (a simulated shared medium on
// virtual time) and udp (datagrams between real processes).
package radio
