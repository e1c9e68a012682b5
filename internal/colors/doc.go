// Package colors holds the named RGB table and the small numeric helpers
// used to turn readings into display positions and colors.
//
// NumToRange scales a reading onto an output range (sparkline heights,
// LED rows), ConvertToRGB interpolates along a gradient and TriColors picks
// the low/normal/high palette from a five-color map.
package colors
