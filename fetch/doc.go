// Package fetch downloads web pages and extracts their readable text.
//
// The extraction is intentionally simple: scripts, styles, and navigation
// chrome are stripped, a set of common content containers is preferred over
// the raw body, and whitespace is collapsed. The result is the clean text a
// document is segmented from, plus the page title and a word count.
package fetch
