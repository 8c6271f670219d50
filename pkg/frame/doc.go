/*
Package frame holds the raw fact tables the KPI engine consumes.

A Frame is a small column-ordered table of Cells. Each Cell keeps the raw
text read from the source and, when the text is numeric, its value as a
Num. Num is a nullable float64: the engine never lets a missing value turn
into a silent zero.

# Ratios

Every ratio in the engine goes through SafeDivide:

	util := frame.SafeDivide(actual, capacity, 0.0) // 0 when capacity is 0 or null

# Forecast horizons

DC and store forecasts repeat the same target hour at several offsets.
AtHorizon(f, NextHour) keeps only the next-hour rows so demand is summed
once per hour.
*/
package frame
