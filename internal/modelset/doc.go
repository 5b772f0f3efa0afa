// Package modelset holds the set of named model definitions and its persisted
// form, a Kubernetes ConfigMap manifest whose data map has one key per model.
//
// The manifest is the single source of truth. Store caches the parsed set and
// drops the cache whenever the manifest file changes on disk, so out-of-band
// edits (a human running kubectl edit on a checked-out copy, a git pull) are
// picked up by the next read.
package modelset
