// Package output renders command results as a table, JSON or YAML.
//
// Commands hand a Formatter either a *Table they built themselves or a
// plain value. The table formatter lays out maps as KEY/VALUE rows, structs
// as FIELD/VALUE rows and string slices as one column; nested values are
// shown as compact JSON. JSON and YAML print the value as-is.
package output
