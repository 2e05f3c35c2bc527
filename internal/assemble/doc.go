// Package assemble builds the generated package from pipeline artifacts and
// swaps it into its destination.
//
// Only the entries a package owns (see models.PackageEntries) are replaced;
// everything else in the destination is left alone. The new entries are
// staged in a hidden directory inside the destination so each rename stays
// on one filesystem. The state file is invalidated before the swap and
// committed only after it, so an interrupted run leaves a package without
// state.
package assemble
