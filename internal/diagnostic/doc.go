// Package diagnostic collects the problems found while resolving mapping
// annotations. Each problem carries a stable code (ATMA1xx), a severity and
// the source position of the annotation it concerns.
package diagnostic
