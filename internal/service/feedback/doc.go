// Package feedback packs diagnostics of an upgrade into a .tar.xz archive the
// user attaches to an issue report.
package feedback
