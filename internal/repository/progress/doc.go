// Package progress implements persistence for the upgrade Progress.
//
// The FileRepository stores and loads the progress as JSON on disk and exposes a
// Repository interface that the action flow and the engine depend on.
package progress
