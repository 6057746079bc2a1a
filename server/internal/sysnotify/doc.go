// Package sysnotify publishes operational notifications for administrators.
//
// A notification is published only if no notification of the same type is
// already pending (publish-if-first), so a failing webhook produces one entry
// until it is dismissed rather than one per event.
package sysnotify
