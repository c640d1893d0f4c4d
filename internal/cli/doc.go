// Package cli provides the interactive soundboard command-line client.
//
// App wires the soundboard service, the quota monitor and the thumbnail
// cache into a REPL. A background watcher pings the extraction service and
// flips the prompt between online and offline mode; clips already stored
// stay playable and listable while offline.
//
// Commands:
//   - add            extract a clip from a video URL and store it
//   - list | l       list stored clips in layout order
//   - show <id>      show one clip
//   - delete <id>    delete a clip and its cached images
//   - rename <id>    give a clip a new title
//   - reorder <ids>  reorder the active layout
//   - usage          show quota usage
//   - theme <name>   set the layout theme (light, dark, auto)
//   - thumbs-cleanup drop old cached thumbnails
//   - exit | quit
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
