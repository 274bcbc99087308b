// Package generation turns stored document chunks into quiz questions and
// flashcards. It selects chunks (all of them, or a similarity-filtered subset
// when a narrow-search keyword is given), distributes the requested item
// count across chunk groups, and prompts the provider once per group for a
// JSON array of items. Failures in one group drop only that group's output.
package generation
