// Package credits implements the cost model and charging rules for document
// processing and content generation. OCR is charged at most once per stored
// document; generation is charged on actual output, never the requested
// count.
package credits
