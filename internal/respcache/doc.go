// Package respcache memoizes feedback between codes.
//
// A Cache has two layers: a read-only imported layer filled from a Store at startup and a live
// layer that the Oracle writes to as it computes new feedback. Lookups go live, then imported,
// then compute. The live layer's eviction is chosen explicitly by Policy:
//
//	unbounded  sharded map, grows for the whole process lifetime
//	bounded    ristretto cache capped at MaxEntries, never persisted
//	none       no live layer, every miss is recomputed
//
// Only the unbounded live layer is written back by Persist, and only when it holds entries the
// imported layer did not.
package respcache
