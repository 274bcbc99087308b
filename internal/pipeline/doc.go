// Package pipeline implements the document processing pipeline: validating
// an uploaded PDF, splitting it into fixed-size page-range chunks, extracting
// text per chunk, computing embedding vectors, and persisting chunks to the
// document store. Individual chunk failures are tolerated; the pipeline fails
// only when no chunk could be processed at all.
package pipeline
