// Package domain models seasonal lake water-quality forecasts produced by a
// pre-fitted Bayesian network.
//
// # Forecast Inputs
//
// The network is fitted externally (R bnlearn) and stored as an .rds file.
// Predictions are conditioned on evidence measured during the previous summer
// and, for the full network, on meteorological nodes for the season of
// interest:
//
//	chla_prev_summer     chlorophyll-a, previous summer mean (mg/l)
//	colour_prev_summer   water colour, previous summer mean (mg Pt/l)
//	tp_prev_summer       total phosphorus, previous summer mean (mg/l)
//	wind_speed           forecast wind speed for the season (m/s)
//	rain                 forecast precipitation for the season (mm)
//	sigma                SD of the Box-Cox transformed observations
//
// Three network variants are supported, see [Variant]:
//
//	full         all evidence, per-node SD read from a CSV file
//	nomet        no met nodes, per-node SD read from a CSV file
//	operational  no met nodes, no SD; forecasts TP, colour and cyano only
//
// # Engine Output
//
// The engine returns one row per forecast node with the node's WFD class
// boundary, the probability mass below and above it, the expected value and
// (full/nomet only) the standard deviation. The WFD class of each row is
// derived here with [Discretize] using the row's own threshold, so a single
// boundary yields classes 0 (below) and 1 (at or above).
//
// # Seasons
//
// Daily observations are aggregated into 6-month seasons by
// [DailyToSummerSeason]:
//
//	summer  May-Oct of year Y, labelled Y
//	winter  Nov of Y-1 to Apr of Y, labelled Y
//
// Missing values are NaN throughout. Aggregations skip NaN; a sum over a
// season with no data is 0, which is why callers can ask for zero aggregates
// of selected columns to be reported as missing.
package domain
