// Package utils provides common conversion helpers for prefork.
// The converters are strict: they return an error instead of a zero value so that
// directive validation can name the offending argument.
package utils
