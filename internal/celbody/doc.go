// Package celbody implements method bodies, spreadsheet formulas and
// decision table conditions as CEL expressions.
//
// Every expression sees its method parameters by name, the call target as
// `target` and the call's properties as the map `env`. Formulas also see
// their named cell references, which are read lazily so that a branch not
// taken never touches its cells. Numbers compare across int and double.
//
// Compiled programs are cached per Compiler, keyed by expression and
// variable set, and are safe for concurrent evaluation.
package celbody
