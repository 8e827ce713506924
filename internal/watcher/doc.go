// Package watcher reloads the configuration file while the daemon runs.
//
// The file's directory is watched with fsnotify (editors often replace the
// file instead of writing it in place), falling back to polling the file's
// modification time where fsnotify is unavailable. Bursts of events are
// debounced and reloads are throttled by a token bucket.
//
// Each accepted reload is diffed against the running configuration:
//   - global or suggester settings changed: the whole suggester is rebuilt
//   - a project was added or changed: that project is rebuilt
//   - a project was removed: its suggester data is dropped
//
// Files that fail to parse or validate are logged and ignored; the running
// configuration stays in place.
package watcher
