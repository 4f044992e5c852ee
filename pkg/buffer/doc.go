// Package buffer provides fixed-capacity sliding windows over the most
// recent values of a stream.
//
// RingBuffer keeps the last N values written to it and silently drops
// the oldest value when a new one arrives at capacity:
//
//	rb := buffer.RingN[float64](3)
//	rb.Add(1)
//	rb.Add(2)
//	rb.Add(3)
//	rb.Add(4)      // evicts 1
//	rb.Items()     // [2 3 4]
//	rb.Last(2)     // [3 4]
//
// A RingBuffer is owned by a single goroutine; callers that share one
// must serialize access themselves.
package buffer
