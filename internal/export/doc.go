// Package export writes session snapshots to the formats used downstream:
// a keypoint XML file per day, annotated PNGs, and colony counts filled into
// an existing Excel workbook.
//
// Output layout under the output directory:
//
//	Day 19/keypoints.xml
//	Day 19/Sample_23.png
//
// Snapshots without a day go under "Day unknown".
package export
