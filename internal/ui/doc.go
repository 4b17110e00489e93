// Package ui implements the interactive city shell using bubbletea's Elm architecture.
//
// The shell shows every city in the dataset in one filterable list:
//  1. [ListView] : Browse cities, mark them, rate them, toggle theme and color mode
//  2. [CommentView] : Edit the comment of the selected city; list keys are ignored while it is open
//  3. [ExportView] : Monitor PDF export progress
//  4. [ResultView] : Show the written file or the failure
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the ExportEngine, providing non-blocking status reporting during exports.
//
// Keyboard navigation uses vim-style bindings (j/k, /, space, r, c, t, m, e, q) with contextual help displayed via
// charmbracelet/bubbles/help. Each visited city shows a swatch in its map color, so toggling the color mode is visible
// in the list.
package ui
