// Package stream fans the render model out to WebSocket viewers.
//
// Every published RenderSnapshot is encoded once and queued on each viewer's
// buffered channel. A viewer whose buffer is full misses that frame; the
// polling controller is never blocked by a slow viewer. New viewers receive
// the most recent frame on connect.
package stream
