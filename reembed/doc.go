// Package reembed provides functionality for reembedding stored page
// segments with new or updated embedding models.
//
// This package supports batch processing of segment records, progress
// tracking, retry logic with exponential backoff, and vector normalization
// to keep stored vectors compatible with dot-product similarity search.
package reembed
