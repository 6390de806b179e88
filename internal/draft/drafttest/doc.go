// Package drafttest provides fakes for testing code built on package draft:
// a manually advanced clock, an in-memory backend with call counting and
// gating, and a small form type with its converter.
package drafttest
