// Package common provides shared utilities and types used across the application.
package common

import "errors"

// Matching errors.
var (
	// ErrAmbiguousMatch means two proposals tied at the top confidence for
	// different candidate entries; a human reviewer must pick.
	ErrAmbiguousMatch = errors.New("multiple equally-confident match candidates")
	// ErrNoCandidates means no strategy produced a proposal.
	ErrNoCandidates = errors.New("no match candidates")
)
