// Package action is the dist-upgrade framework core.
//
// An upgrader describes its work as a Plan: ordered stages of Actions. A Flow
// executes one Phase of that plan against a progress Store, so a run that
// reboots halfway is resumed at the first unfinished stage by the next run.
// CheckActions are evaluated before a conversion starts and block it when any
// of them fails.
package action
