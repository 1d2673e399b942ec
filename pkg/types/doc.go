// Package types defines the domain vocabulary of the scribo pipeline: the
// daemon configuration, the item states and fault kinds of the intake state
// machine, the outcome record written to the journal, the narrow interfaces
// through which the worker reaches external collaborators, and the sentinel
// errors shared across packages.
package types
