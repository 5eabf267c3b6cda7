/*
	Package sz provides types, constants and functions that have no other dependencies
	and can be used by all packages of the interpolation compressor: leveled logging,
	addressing of row-major grids, the table of axis orderings, block iteration over a
	grid, element data types, and parsing of "key=value" command arguments.
*/
package sz
