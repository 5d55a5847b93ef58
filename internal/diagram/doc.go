// Package diagram implements the interactive diagram viewer: a pan/zoom
// transform driven by pointer and wheel input, a hotspot layer with a
// single active panel, and export of the rendered scene to SVG, PNG and PDF.
//
// Content space is the fixed coordinate system diagrams are authored in.
// Screen space is the canvas the viewer draws on. A View maps one onto
// the other:
//
//	screen = content*Scale + (X, Y)
//
// Wheel zoom keeps the content point under the cursor fixed on screen.
package diagram
