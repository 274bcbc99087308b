// Package gemini implements the provider.Client interface using Google's
// Gemini API. It maps Gemini API failures onto the provider package's error
// classification so the retry policy can tell quota exhaustion from
// transient unavailability.
package gemini
