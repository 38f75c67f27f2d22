// Package incremental decides whether the file inputs of a unit of work
// changed since a previous run.
//
// # Core API
//
// Snapshot roots into Merkle-hashed trees and project them into a
// fingerprint with one of the sensitivity policies:
//
//	snapshotter := incremental.NewFileSystemSnapshotter(nil, nil, nil)
//	fingerprinter := incremental.NewFileCollectionFingerprinter(snapshotter, nil)
//	current, err := fingerprinter.Fingerprint([]string{"src"}, incremental.RelativePathFingerprinting{}, nil)
//
// Compare against the fingerprint of the previous run:
//
//	result, err := incremental.Status(current, previous, "Input", true, 100)
//	if result.HasChanges() {
//		fmt.Printf("Found %d changes\n", result.TotalChanges())
//	}
//
// Or push changes to a visitor directly. Returning false stops the
// comparison:
//
//	visitor := incremental.ChangeVisitorFunc(func(c incremental.FileChange) bool {
//		fmt.Println(c.Message())
//		return true
//	})
//	completed, err := incremental.CompareFingerprints(visitor, current, previous, "Input", true)
//
// # Persistence
//
// FilePersistentCache stores fingerprints and remembered file hashes
// between runs. DirectoryBuildCacheService and TarEntityPacker store and
// restore the outputs of a CacheableEntity.
//
// # Configuration
//
// Enable debug output:
//
//	incremental.SetDebugFlags("walk,merkle,compare")
//	incremental.SetVerboseLevel(2)
package incremental
