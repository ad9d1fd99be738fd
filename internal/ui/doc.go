// Package ui implements the interactive terminal front end for batch runs.
//
// The model walks through role selection, a confirmation prompt, a running view
// with a progress bar fed by [tasks.BatchRunner], and a result summary.
package ui
