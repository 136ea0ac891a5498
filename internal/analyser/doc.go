// Package analyser owns the state of the luminosity profile analysis: the
// latest normalised profile, the Gaussian center estimate and the operator's
// zero reference, plus the mapping of those positions onto a display axis.
//
// A Pipeline is driven synchronously. PushProfile and SetZero run to
// completion and notify observers only after the new state is committed.
// Pipeline is not safe for concurrent use; Station adds the locking needed
// when a serial reader and HTTP handlers share one pipeline.
package analyser
