// Package diarize labels a stream of PCM chunks with speaker identities.
//
// An [Engine] runs each chunk through a fixed pipeline:
//
//	chunk → vad.Gate → voicefeat.Extractor → history (ring, 200)
//	      → classifier → speaker.Registry → Stability → Result
//
// The classifier starts in baseline mode: nearest centroid by Euclidean
// distance, minting "Speaker N" when the closest profile is farther than
// the sensitivity. Once the history holds MinClusterHistory records it
// switches to clustering mode: the most recent ClusterWindow vectors are
// standardized and clustered with DBSCAN, and the new record takes the
// label of its nearest window neighbor. Cluster label L maps to
// "Speaker L+1". Noise or any numeric failure falls back to baseline for
// that chunk.
//
// The reported speaker only changes when the Stability filter sees the
// same raw identity in 3 of the last 5 admitted chunks.
//
// An Engine is not safe for concurrent use. Drive it from one goroutine
// and hand [Engine.Snapshot] to other goroutines for saving.
package diarize
